package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/secureshare/secureshare/internal/common"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestAssemble_RoundTrip(t *testing.T) {
	files := map[string][]byte{
		"report.pdf":    []byte("pdf bytes"),
		"photo (1).jpg": bytes.Repeat([]byte{0xAB}, 4096),
		"notes.txt":     []byte("line1\nline2\n"),
	}
	entries := []Entry{
		{Name: "report.pdf", Body: bytes.NewReader(files["report.pdf"])},
		{Name: "photo (1).jpg", Body: bytes.NewReader(files["photo (1).jpg"])},
		{Name: "notes.txt", Body: bytes.NewReader(files["notes.txt"])},
	}

	var buf bytes.Buffer
	if err := Assemble(&buf, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	if len(zr.File) != len(files) {
		t.Fatalf("expected %d entries, got %d", len(files), len(zr.File))
	}

	// Order and names must be preserved exactly.
	wantOrder := []string{"report.pdf", "photo (1).jpg", "notes.txt"}
	for i, f := range zr.File {
		if f.Name != wantOrder[i] {
			t.Errorf("entry %d name = %q, want %q", i, f.Name, wantOrder[i])
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %q: %v", f.Name, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading entry %q: %v", f.Name, err)
		}
		if !bytes.Equal(got, files[f.Name]) {
			t.Errorf("entry %q content mismatch", f.Name)
		}
	}
}

func TestAssemble_TooFewEntries(t *testing.T) {
	var buf bytes.Buffer
	err := Assemble(&buf, []Entry{{Name: "only.txt", Body: strings.NewReader("x")}})
	if !errors.Is(err, common.ErrAssembly) {
		t.Fatalf("want ErrAssembly, got %v", err)
	}
}

func TestAssemble_ReadFailure(t *testing.T) {
	var buf bytes.Buffer
	err := Assemble(&buf, []Entry{
		{Name: "a.txt", Body: strings.NewReader("ok")},
		{Name: "b.txt", Body: failingReader{}},
	})
	if !errors.Is(err, common.ErrAssembly) {
		t.Fatalf("want ErrAssembly, got %v", err)
	}
}
