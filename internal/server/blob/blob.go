// Package blob abstracts the byte-payload store behind transfers. Metadata
// lives in the database; the (encrypted) content itself is written to and
// read from an object store keyed by an opaque storage key.
package blob

import (
	"context"
	"io"
)

// Store is a streamed object store. Implementations must support payloads up
// to the service's size ceiling without buffering them whole in memory.
type Store interface {
	// Put streams r into the object identified by key. size is the exact
	// byte count expected; implementations may reject mismatches.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get opens a readable stream of the object's bytes. The caller owns the
	// returned ReadCloser and must close it on every path. Absent keys yield
	// common.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
