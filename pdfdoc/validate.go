// CLAUDE:SUMMARY Format validator — extension, media type, magic bytes, streamed size ceiling, pdfcpu parse and encryption checks.
// CLAUDE:DEPENDS pdfdoc/input.go, pdfdoc/pdfcpu.go
// CLAUDE:EXPORTS Validator, ValidatorConfig, ValidateAll
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// Extension is the canonical file suffix.
	Extension = ".pdf"

	// MediaType is the canonical declared content type.
	MediaType = "application/pdf"

	// DefaultMaxBytes is the default per-document size ceiling (10 MiB).
	DefaultMaxBytes int64 = 10 * 1024 * 1024
)

// Magic is the leading signature of a PDF file.
var Magic = []byte("%PDF")

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	// MaxBytes is the per-document size ceiling (default: 10 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// ChunkSize is the read size used while counting bytes (default: 1 MiB).
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *ValidatorConfig) defaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1 << 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validator checks that inputs are well-formed, unencrypted PDFs.
type Validator struct {
	cfg    ValidatorConfig
	logger *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	cfg.defaults()
	return &Validator{cfg: cfg, logger: cfg.Logger}
}

// MaxBytes returns the configured size ceiling.
func (v *Validator) MaxBytes() int64 { return v.cfg.MaxBytes }

// Validate runs the checks in order and stops at the first failure.
// On success the stream is positioned at offset 0.
func (v *Validator) Validate(in Input) (*Validated, error) {
	if !strings.HasSuffix(strings.ToLower(in.Name), Extension) {
		return nil, newError(KindInvalidFormat, in.Name, "invalid extension: use .pdf", nil)
	}
	if !strings.EqualFold(in.MediaType, MediaType) {
		return nil, newError(KindInvalidFormat, in.Name,
			fmt.Sprintf("invalid content type %q: must be %s", in.MediaType, MediaType), nil)
	}

	if err := in.Peek(checkMagic); err != nil {
		return nil, v.wrap(in, KindInvalidFormat, "invalid header: not a PDF", err)
	}

	var size int64
	err := in.Peek(func(r io.ReadSeeker) error {
		n, err := countBytes(r, v.cfg.ChunkSize, v.cfg.MaxBytes)
		size = n
		if errors.Is(err, errSizeExceeded) {
			return newError(KindTooLarge, in.Name, fmt.Sprintf("file exceeds %d bytes", v.cfg.MaxBytes), nil)
		}
		return err
	})
	if err != nil {
		return nil, v.wrap(in, KindCorrupted, "unable to read upload", err)
	}

	var pages int
	err = in.Peek(func(r io.ReadSeeker) error {
		ctx, err := openContext(r)
		if err != nil {
			if isPasswordError(err) {
				return newError(KindEncrypted, in.Name, "password-protected PDF", err)
			}
			return newError(KindCorrupted, in.Name, "unable to read PDF structure", err)
		}
		if isEncrypted(ctx) {
			return newError(KindEncrypted, in.Name, "password-protected PDF", nil)
		}
		pages = ctx.PageCount
		return nil
	})
	if err != nil {
		return nil, v.wrap(in, KindCorrupted, "unable to read PDF structure", err)
	}

	if err := in.Rewind(); err != nil {
		return nil, newError(KindCorrupted, in.Name, "stream not rewindable", err)
	}

	v.logger.Debug("pdf validated", "file", in.Name, "pages", pages, "size", size)
	return &Validated{Input: in, Pages: pages, Size: size}, nil
}

// ValidateAll validates every input before any transformation starts and
// returns the first failure. Documents after a failing one are not read.
func (v *Validator) ValidateAll(ins []Input) ([]*Validated, error) {
	out := make([]*Validated, 0, len(ins))
	for _, in := range ins {
		doc, err := v.Validate(in)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// wrap keeps an *Error produced inside a check as-is and tags anything else.
func (v *Validator) wrap(in Input, kind Kind, detail string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(kind, in.Name, detail, err)
}

var errSizeExceeded = errors.New("size ceiling exceeded")

func checkMagic(r io.ReadSeeker) error {
	head := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, head); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(head, Magic) {
		return fmt.Errorf("bad signature %q", head)
	}
	return nil
}

// countBytes reads r in chunkSize pieces, failing as soon as the running
// total passes max.
func countBytes(r io.Reader, chunkSize int, max int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		total += int64(n)
		if total > max {
			return total, errSizeExceeded
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
