package pdfdoc

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Input is an uploaded document: a name, the media type the caller declared,
// and a re-readable byte stream. It is not trusted until validated.
type Input struct {
	Name      string
	MediaType string
	r         io.ReadSeeker
}

// NewInput wraps r. The Input does not take ownership of r.
func NewInput(name, mediaType string, r io.ReadSeeker) Input {
	return Input{Name: name, MediaType: mediaType, r: r}
}

// Peek runs fn over the stream from offset 0 and restores the read position
// to where it was before the call, on every exit path including a panic in fn.
// A restore failure is reported only when fn itself succeeded.
func (in Input) Peek(fn func(r io.ReadSeeker) error) (err error) {
	if in.r == nil {
		return fmt.Errorf("pdfdoc: %s: no stream", in.Name)
	}
	start, err := in.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("pdfdoc: %s: tell: %w", in.Name, err)
	}
	defer func() {
		if _, serr := in.r.Seek(start, io.SeekStart); serr != nil && err == nil {
			err = fmt.Errorf("pdfdoc: %s: restore position: %w", in.Name, serr)
		}
	}()
	if _, err := in.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("pdfdoc: %s: rewind: %w", in.Name, err)
	}
	return fn(in.r)
}

// Rewind moves the read position back to offset 0.
func (in Input) Rewind() error {
	if in.r == nil {
		return fmt.Errorf("pdfdoc: %s: no stream", in.Name)
	}
	_, err := in.r.Seek(0, io.SeekStart)
	return err
}

// BaseName returns the file name without directories and without its last
// extension. Falls back to "document" when nothing is left.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return "document"
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." {
		return "document"
	}
	return name
}

// Validated is an Input that passed every Validator check. It shares the
// Input's stream; the read position is 0 when handed out.
type Validated struct {
	Input
	Pages int
	Size  int64
}
