package pdfsvc

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/pagekit/horosafe"
	"github.com/hazyhaar/pagekit/lifecycle"
	"github.com/hazyhaar/pagekit/pdfdoc"
	"github.com/hazyhaar/pagekit/scratch"
)

// LocalJob is a transformation over files on disk, used by the CLI and MCP
// tools.
type LocalJob struct {
	Operation string   // OpMerge, OpSplitRange, OpExplode or OpImages
	Inputs    []string // input paths, in order
	Range     string   // page range, for OpSplitRange
	Output    string   // output file, or a directory receiving the default name; "" means the working directory
}

// LocalResult reports an output written to disk.
type LocalResult struct {
	RequestID string `json:"request_id"`
	Output    string `json:"output"`
	Bytes     int64  `json:"bytes"`
	Checksum  string `json:"checksum,omitempty"`
}

// RunLocal runs job and writes its output atomically: the file appears under
// its final name only once every byte is on disk.
func (s *Service) RunLocal(ctx context.Context, job LocalJob) (*LocalResult, error) {
	req := s.NewRequest(ctx, job.Operation)
	defer req.Abandon(nil)

	ins, err := OpenLocal(req, job.Inputs)
	if err != nil {
		return nil, s.reject(req, nil, err)
	}

	var out *Output
	switch job.Operation {
	case OpMerge:
		out, err = s.Merge(ctx, req, ins)
	case OpSplitRange, OpExplode:
		if len(ins) != 1 {
			return nil, s.reject(req, ins, pdfdoc.InvalidRequest("%s takes exactly 1 PDF", job.Operation))
		}
		if job.Operation == OpExplode {
			out, err = s.Explode(ctx, req, ins[0])
		} else {
			out, err = s.SplitRange(ctx, req, ins[0], job.Range)
		}
	case OpImages:
		out, err = s.Images(ctx, req, ins)
	default:
		return nil, s.reject(req, ins, pdfdoc.InvalidRequest("unknown operation %q", job.Operation))
	}
	if err != nil {
		return nil, err
	}

	dst, err := outputPath(job.Output, out.Name)
	if err != nil {
		req.Abandon(err)
		return nil, err
	}
	n, err := s.writeFile(ctx, req, out, dst)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pdfsvc: output written", "request_id", req.ID(), "output", dst, "bytes", n)
	return &LocalResult{RequestID: req.ID(), Output: dst, Bytes: n, Checksum: out.Checksum}, nil
}

// CheckLocal validates the PDF at path.
func (s *Service) CheckLocal(ctx context.Context, path string) (*CheckResult, error) {
	req := s.NewRequest(ctx, OpUpload)
	defer req.Abandon(nil)

	ins, err := OpenLocal(req, []string{path})
	if err != nil {
		return nil, s.reject(req, nil, err)
	}
	return s.Check(ctx, req, ins[0])
}

// OpenLocal opens paths as inputs. Each file is closed when req ends. The
// media type is derived from the extension, as a browser would declare it.
func OpenLocal(req *lifecycle.Request, paths []string) ([]pdfdoc.Input, error) {
	ins := make([]pdfdoc.Input, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, &pdfdoc.Error{Kind: pdfdoc.KindInvalidRequest, File: filepath.Base(p), Detail: "cannot open file", Err: err}
		}
		req.Bundle().Add(scratch.ReleaseFunc(f.Close))
		ins = append(ins, pdfdoc.NewInput(filepath.Base(p), mediaTypeOf(p), f))
	}
	return ins, nil
}

func mediaTypeOf(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return "application/octet-stream"
}

// outputPath resolves where an output named name goes for the user-supplied
// target.
func outputPath(target, name string) (string, error) {
	name = horosafe.SanitizeFilename(name, "output")
	if target == "" {
		return filepath.Abs(name)
	}
	fi, err := os.Stat(target)
	switch {
	case err == nil && fi.IsDir():
		return filepath.Join(target, name), nil
	case err == nil || errors.Is(err, os.ErrNotExist):
		if strings.HasSuffix(target, string(filepath.Separator)) {
			return "", pdfdoc.InvalidRequest("output directory %s does not exist", target)
		}
		return target, nil
	default:
		return "", fmt.Errorf("pdfsvc: stat output %s: %w", target, err)
	}
}

// writeFile streams out into a temp file next to dst and renames it into place
// before the request completes.
func (s *Service) writeFile(ctx context.Context, req *lifecycle.Request, out *Output, dst string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pagekit-*.part")
	if err != nil {
		req.Abandon(err)
		return 0, fmt.Errorf("pdfsvc: create output: %w", err)
	}
	req.Bundle().Add(scratch.ReleaseFunc(func() error {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}))

	commit := func() error {
		if err := tmp.Sync(); err != nil {
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), dst)
	}
	n, err := s.stream(ctx, req, out, tmp, commit)
	if err != nil {
		return n, fmt.Errorf("pdfsvc: write %s: %w", dst, err)
	}
	return n, nil
}
