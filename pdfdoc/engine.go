// CLAUDE:SUMMARY Transformation engine — merge, range extraction, page explosion and image extraction over validated PDFs.
// Package pdfdoc validates uploaded PDFs and transforms them.
//
// Operations:
//   - Merge: concatenate documents' pages in request order
//   - ExtractRange: copy a 1-based inclusive page range into a new document
//   - ExplodeAll: one single-page document per page, packed in a zip
//   - ExtractImages: embedded images per page, one zip per document inside one zip
//
// All intermediate storage comes from a scratch.Manager. Every operation is
// all-or-nothing: on failure, whatever it allocated is released before the
// error is returned and no partial output escapes.
//
// Usage:
//
//	v := pdfdoc.NewValidator(pdfdoc.ValidatorConfig{})
//	docs, err := v.ValidateAll(inputs)
//	eng := pdfdoc.New(pdfdoc.Config{Scratch: mgr})
//	out, err := eng.Merge(ctx, docs)
//	defer out.Release()
package pdfdoc

import (
	"log/slog"

	"github.com/hazyhaar/pagekit/scratch"
)

// MinMergeCount is the smallest number of documents Merge accepts.
const MinMergeCount = 2

// Config configures an Engine.
type Config struct {
	// Scratch allocates intermediate storage (default: a Manager on os.TempDir()).
	Scratch *scratch.Manager `json:"-" yaml:"-"`

	// CopyChunk bounds the buffer used when copying into archive entries (default: 1 MiB).
	CopyChunk int `json:"copy_chunk" yaml:"copy_chunk"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Scratch == nil {
		c.Scratch = scratch.NewManager(scratch.Config{Logger: c.Logger})
	}
	if c.CopyChunk <= 0 {
		c.CopyChunk = 1 << 20
	}
}

// Engine runs transformations. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	cfg     Config
	scratch *scratch.Manager
	logger  *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg, scratch: cfg.Scratch, logger: cfg.Logger}
}

// Scratch returns the engine's scratch manager.
func (e *Engine) Scratch() *scratch.Manager { return e.scratch }

// releaseOnError releases r when *errp is non-nil. Use with defer.
func (e *Engine) releaseOnError(errp *error, r scratch.Resource) {
	if *errp == nil || r == nil {
		return
	}
	if err := r.Release(); err != nil {
		e.logger.Warn("pdfdoc: release after failure", "error", err)
	}
}
