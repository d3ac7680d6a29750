package pdfdoc

import (
	"archive/zip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

// archive writes zip entries with unique names in insertion order.
type archive struct {
	zw    *zip.Writer
	names map[string]bool
	buf   []byte
}

func newArchive(w io.Writer, chunk int) *archive {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})
	return &archive{zw: zw, names: make(map[string]bool), buf: make([]byte, chunk)}
}

// store copies r into an uncompressed entry.
func (a *archive) store(name string, r io.Reader) (int64, error) {
	return a.add(name, zip.Store, r)
}

// deflate copies r into a compressed entry.
func (a *archive) deflate(name string, r io.Reader) (int64, error) {
	return a.add(name, zip.Deflate, r)
}

func (a *archive) add(name string, method uint16, r io.Reader) (int64, error) {
	if a.names[name] {
		return 0, fmt.Errorf("archive: duplicate entry %q", name)
	}
	w, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return 0, fmt.Errorf("archive: create %s: %w", name, err)
	}
	a.names[name] = true
	n, err := io.CopyBuffer(w, r, a.buf)
	if err != nil {
		return n, fmt.Errorf("archive: write %s: %w", name, err)
	}
	return n, nil
}

// uniqueName returns name, or name with " (n)" before its extension when the
// archive already holds it.
func (a *archive) uniqueName(name string) string {
	if !a.names[name] {
		return name
	}
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := stem + " (" + strconv.Itoa(n) + ")" + ext
		if !a.names[candidate] {
			return candidate
		}
	}
}

func (a *archive) close() error {
	return a.zw.Close()
}
