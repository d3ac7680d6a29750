// CLAUDE:SUMMARY Transport-neutral PDF service — lifecycle-driven validate/merge/split/explode/images flows shared by HTTP, CLI and MCP.
// CLAUDE:EXPORTS Service, New, Option, Output, CheckResult, Operation names
//
// Package pdfsvc exposes the pdfdoc engine over HTTP (chi), MCP and local
// files. Every call runs inside a lifecycle.Request: validation, processing
// and streaming move it through its states, and the request's scratch bundle
// is released when it ends, whichever way it ends.
package pdfsvc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/hazyhaar/pagekit/idgen"
	"github.com/hazyhaar/pagekit/kit"
	"github.com/hazyhaar/pagekit/lifecycle"
	"github.com/hazyhaar/pagekit/observability"
	"github.com/hazyhaar/pagekit/pdfdoc"
	"github.com/hazyhaar/pagekit/scratch"
)

// Operation names, used in lifecycle summaries and the journal.
const (
	OpUpload     = "upload"
	OpMerge      = "merge"
	OpSplitRange = "split_range"
	OpExplode    = "explode"
	OpImages     = "images"
)

// MergedName is the file name of a merge result.
const MergedName = "merged.pdf"

// streamBuffer bounds each write while streaming an output.
const streamBuffer = 32 << 10

// Service wires a Validator and an Engine to the request lifecycle.
type Service struct {
	cfg       *Config
	validator *pdfdoc.Validator
	engine    *pdfdoc.Engine
	scratch   *scratch.Manager
	journal   *observability.Journal
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records every finished request in j.
func WithJournal(j *observability.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the service logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service from cfg. A nil cfg means DefaultConfig().
func New(cfg *Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.scratch = scratch.NewManager(scratch.Config{
		Dir:            cfg.ScratchDir,
		SpoolThreshold: cfg.SpoolThresholdBytes(),
		Logger:         s.logger,
	})
	s.validator = pdfdoc.NewValidator(pdfdoc.ValidatorConfig{
		MaxBytes: cfg.MaxFileBytes(),
		Logger:   s.logger,
	})
	s.engine = pdfdoc.New(pdfdoc.Config{Scratch: s.scratch, Logger: s.logger})
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *Config { return s.cfg }

// Scratch returns the scratch manager, for accounting.
func (s *Service) Scratch() *scratch.Manager { return s.scratch }

// Journal returns the request journal, or nil when journaling is off.
func (s *Service) Journal() *observability.Journal { return s.journal }

// RequestContext tags ctx with the transport, the operation and a fresh
// request id; an id already on ctx is kept. NewRequest then journals the
// request under that id.
func RequestContext(ctx context.Context, transport, op string) context.Context {
	ctx = kit.WithOperation(kit.WithTransport(ctx, transport), op)
	if kit.GetRequestID(ctx) == "" {
		ctx = kit.WithRequestID(ctx, idgen.Request())
	}
	return ctx
}

// NewRequest starts a request for op. The transport recorded in the journal
// is read from ctx (kit.WithTransport).
func (s *Service) NewRequest(ctx context.Context, op string) *lifecycle.Request {
	logger := s.logger
	if tid := kit.GetTraceID(ctx); tid != "" {
		logger = logger.With("trace_id", tid)
	}
	opts := []lifecycle.Option{
		lifecycle.WithBundle(s.scratch.Bundle()),
		lifecycle.WithLogger(logger),
	}
	if id := kit.GetRequestID(ctx); id != "" {
		opts = append(opts, lifecycle.WithID(id))
	}
	if s.journal != nil {
		opts = append(opts, lifecycle.WithObserver(s.journal.Observer(kit.GetTransport(ctx))))
	}
	return lifecycle.New(op, opts...)
}

// Output is a produced artifact waiting to be streamed. It is owned by the
// request that produced it and released with the request's bundle.
type Output struct {
	Name      string
	MediaType string
	Body      io.ReadSeeker
	// Checksum is "xxh64:<hex>" for single-document outputs, empty for archives.
	Checksum string
	release  func() error
}

// Release frees the scratch behind the output.
func (o *Output) Release() error {
	if o.release == nil {
		return nil
	}
	return o.release()
}

// CheckResult describes a document that passed validation.
type CheckResult struct {
	Message string `json:"message"`
	File    string `json:"file"`
	Pages   int    `json:"pages"`
	Size    int64  `json:"size_bytes"`
}

// Check validates one document without transforming it. The request is
// completed on success.
func (s *Service) Check(ctx context.Context, req *lifecycle.Request, in pdfdoc.Input) (*CheckResult, error) {
	docs, err := s.validate(req, []pdfdoc.Input{in})
	if err != nil {
		return nil, err
	}
	doc := docs[0]
	for _, st := range []lifecycle.State{lifecycle.Processing, lifecycle.Produced, lifecycle.Streaming, lifecycle.Completed} {
		if err := req.To(st); err != nil {
			return nil, err
		}
	}
	return &CheckResult{
		Message: fmt.Sprintf("file %s received successfully", doc.Name),
		File:    doc.Name,
		Pages:   doc.Pages,
		Size:    doc.Size,
	}, nil
}

// Merge validates ins and concatenates them in order into merged.pdf.
func (s *Service) Merge(ctx context.Context, req *lifecycle.Request, ins []pdfdoc.Input) (*Output, error) {
	if len(ins) < pdfdoc.MinMergeCount {
		return nil, s.reject(req, ins, pdfdoc.InvalidRequest("send at least %d PDFs", pdfdoc.MinMergeCount))
	}
	return s.produce(ctx, req, ins, func(ctx context.Context, docs []*pdfdoc.Validated) (*Output, error) {
		out, err := s.engine.Merge(ctx, docs)
		if err != nil {
			return nil, err
		}
		return spoolOutput(MergedName, pdfdoc.MediaType, out, true)
	})
}

// SplitRange validates in and copies the pages named by rangeText.
func (s *Service) SplitRange(ctx context.Context, req *lifecycle.Request, in pdfdoc.Input, rangeText string) (*Output, error) {
	r, err := pdfdoc.ParseRange(rangeText)
	if err != nil {
		return nil, s.reject(req, []pdfdoc.Input{in}, err)
	}
	return s.produce(ctx, req, []pdfdoc.Input{in}, func(ctx context.Context, docs []*pdfdoc.Validated) (*Output, error) {
		out, err := s.engine.ExtractRange(ctx, docs[0], r)
		if err != nil {
			return nil, err
		}
		return spoolOutput(r.FileName(), pdfdoc.MediaType, out, true)
	})
}

// Explode validates in and packs one single-page PDF per page into a zip.
func (s *Service) Explode(ctx context.Context, req *lifecycle.Request, in pdfdoc.Input) (*Output, error) {
	return s.produce(ctx, req, []pdfdoc.Input{in}, func(ctx context.Context, docs []*pdfdoc.Validated) (*Output, error) {
		out, err := s.engine.ExplodeAll(ctx, docs[0])
		if err != nil {
			return nil, err
		}
		return spoolOutput(pdfdoc.PagesArchiveName(docs[0].Name), "application/zip", out, false)
	})
}

// Images validates ins and extracts their embedded images into nested zips.
func (s *Service) Images(ctx context.Context, req *lifecycle.Request, ins []pdfdoc.Input) (*Output, error) {
	if len(ins) == 0 {
		return nil, s.reject(req, ins, pdfdoc.InvalidRequest("send at least 1 PDF"))
	}
	return s.produce(ctx, req, ins, func(ctx context.Context, docs []*pdfdoc.Validated) (*Output, error) {
		body, release, err := s.engine.ExtractImages(ctx, docs)
		if err != nil {
			return nil, err
		}
		return &Output{
			Name:      pdfdoc.ImagesArchiveName,
			MediaType: "application/zip",
			Body:      body,
			release:   func() error { release(); return nil },
		}, nil
	})
}

// Stream copies out to w in bounded chunks and ends the request: Completed
// when every byte was written, Aborted on a write error or a cancelled ctx.
func (s *Service) Stream(ctx context.Context, req *lifecycle.Request, out *Output, w io.Writer) (int64, error) {
	return s.stream(ctx, req, out, w, nil)
}

// stream is Stream with a commit step run after the last byte and before
// Completed. A commit failure aborts the request.
func (s *Service) stream(ctx context.Context, req *lifecycle.Request, out *Output, w io.Writer, commit func() error) (int64, error) {
	if err := req.To(lifecycle.Streaming); err != nil {
		return 0, err
	}
	buf := make([]byte, streamBuffer)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			req.Fail(lifecycle.Aborted, err)
			return total, err
		}
		n, rerr := out.Body.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			req.AddBytes(int64(wn))
			if werr == nil && wn < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				req.Fail(lifecycle.Aborted, werr)
				return total, werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			req.Fail(lifecycle.Aborted, rerr)
			return total, rerr
		}
	}
	if commit != nil {
		if err := commit(); err != nil {
			req.Fail(lifecycle.Aborted, err)
			return total, err
		}
	}
	if err := req.To(lifecycle.Completed); err != nil {
		return total, err
	}
	return total, nil
}

// validate moves req through Validating into Validated or Rejected.
func (s *Service) validate(req *lifecycle.Request, ins []pdfdoc.Input) ([]*pdfdoc.Validated, error) {
	req.SetFiles(inputNames(ins)...)
	if err := req.To(lifecycle.Validating); err != nil {
		return nil, err
	}
	docs, err := s.validator.ValidateAll(ins)
	if err != nil {
		req.Fail(lifecycle.Rejected, err)
		return nil, err
	}
	if err := req.To(lifecycle.Validated); err != nil {
		return nil, err
	}
	return docs, nil
}

// produce validates ins, then runs fn in the Processing state. The output is
// handed to the request bundle before the request reaches Produced.
func (s *Service) produce(ctx context.Context, req *lifecycle.Request, ins []pdfdoc.Input,
	fn func(context.Context, []*pdfdoc.Validated) (*Output, error)) (*Output, error) {
	docs, err := s.validate(req, ins)
	if err != nil {
		return nil, err
	}
	if err := req.To(lifecycle.Processing); err != nil {
		return nil, err
	}
	out, err := fn(ctx, docs)
	if err != nil {
		req.Fail(lifecycle.Failed, err)
		return nil, err
	}
	req.Bundle().Add(out)
	if err := req.To(lifecycle.Produced); err != nil {
		return nil, err
	}
	s.logger.Info("pdfsvc: output produced",
		"request_id", req.ID(), "operation", req.Operation(), "output", out.Name, "documents", len(docs))
	return out, nil
}

// reject ends req as Rejected for an argument error found before validation.
func (s *Service) reject(req *lifecycle.Request, ins []pdfdoc.Input, err error) error {
	req.SetFiles(inputNames(ins)...)
	req.Abandon(err)
	return err
}

func spoolOutput(name, mediaType string, sp *scratch.Spool, checksum bool) (*Output, error) {
	out := &Output{Name: name, MediaType: mediaType, Body: sp, release: sp.Release}
	if checksum {
		sum, err := xxh64(sp)
		if err != nil {
			sp.Release()
			return nil, fmt.Errorf("pdfsvc: checksum %s: %w", name, err)
		}
		out.Checksum = sum
	}
	return out, nil
}

// xxh64 hashes rs from offset 0 and rewinds it.
func xxh64(rs io.ReadSeeker) (string, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := xxhash.New()
	if _, err := io.Copy(h, rs); err != nil {
		return "", err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return "xxh64:" + hex.EncodeToString(h.Sum(nil)), nil
}

func inputNames(ins []pdfdoc.Input) []string {
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.Name
	}
	return names
}
