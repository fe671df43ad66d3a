// Package archive bundles the member files of a multi-file transfer into a
// single zip container. Entries are written one at a time so the aggregate
// payload never has to be resident in memory beyond what deflate needs for
// the entry being compressed.
package archive

import (
	"archive/zip"
	"fmt"
	"io"

	"github.com/secureshare/secureshare/internal/common"
)

// Entry is one member file of a bundle.
type Entry struct {
	// Name is preserved byte-for-byte in the container.
	Name string
	Body io.Reader
}

// Assemble writes a zip container holding every entry, in order, to w.
// Any read, write, or encoding failure aborts the whole assembly and is
// reported as common.ErrAssembly; the caller must discard whatever was
// already written to w.
func Assemble(w io.Writer, entries []Entry) error {
	if len(entries) < 2 {
		return fmt.Errorf("%w: bundle needs at least two entries, got %d", common.ErrAssembly, len(entries))
	}

	zw := zip.NewWriter(w)

	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   e.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: creating entry %q: %v", common.ErrAssembly, e.Name, err)
		}
		if _, err := io.Copy(fw, e.Body); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: writing entry %q: %v", common.ErrAssembly, e.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: finalizing container: %v", common.ErrAssembly, err)
	}
	return nil
}
