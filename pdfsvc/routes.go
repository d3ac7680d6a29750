package pdfsvc

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagekit/kit"
	"github.com/hazyhaar/pagekit/lifecycle"
	"github.com/hazyhaar/pagekit/pdfdoc"
	"github.com/hazyhaar/pagekit/shield"
)

// Split modes accepted by POST /v1/split/.
const (
	ModeEach  = "each"
	ModeRange = "range"
)

// Handler returns the HTTP API behind the shield middleware stack.
//
//	GET  /v1/                  ping
//	GET  /v1/health            status, scratch and journal counters
//	POST /v1/upload            validate one PDF (field "file")
//	POST /v1/merge/merged-pdfs merge PDFs in order (field "files")
//	POST /v1/split/            split one PDF (fields "file", "mode", "range")
//	POST /v1/images/extract    extract images (field "files")
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.cfg.MaxUploadBytes()) {
		r.Use(mw)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/", s.handlePing)
		r.Get("/health", s.handleHealth)
		r.Post("/upload", s.handleUpload)
		r.Post("/merge/merged-pdfs", s.handleMerge)
		r.Post("/split", s.handleSplit)
		r.Post("/split/", s.handleSplit)
		r.Post("/images/extract", s.handleImages)
	})
	return r
}

func (s *Service) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": s.cfg.AppName + " is running"})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.scratch.Stats()
	body := map[string]any{
		"status": "ok",
		"app":    s.cfg.AppName,
		"scratch": map[string]int64{
			"opened":   st.Opened,
			"released": st.Released,
			"live":     st.Live(),
		},
	}
	if s.journal != nil {
		counts, err := s.journal.Counts(r.Context())
		if err != nil {
			shield.GetLogger(r.Context()).Warn("health: journal counts", "error", err)
		} else {
			body["requests"] = counts
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := RequestContext(r.Context(), kit.TransportHTTP, OpUpload)
	req := s.NewRequest(ctx, OpUpload)
	defer req.Abandon(nil)

	in, err := singleInput(r, req, "file")
	if err != nil {
		s.fail(w, r, req, nil, err)
		return
	}
	res, err := s.Check(ctx, req, in)
	if err != nil {
		writeFailure(w, r, req, err)
		return
	}
	w.Header().Set("X-Request-ID", req.ID())
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := RequestContext(r.Context(), kit.TransportHTTP, OpMerge)
	req := s.NewRequest(ctx, OpMerge)
	defer req.Abandon(nil)

	ins, err := formInputs(r, req, "files")
	if err != nil {
		s.fail(w, r, req, nil, err)
		return
	}
	out, err := s.Merge(ctx, req, ins)
	if err != nil {
		writeFailure(w, r, req, err)
		return
	}
	s.sendOutput(w, r, req, out)
}

func (s *Service) handleSplit(w http.ResponseWriter, r *http.Request) {
	ctx := RequestContext(r.Context(), kit.TransportHTTP, OpExplode)
	req := s.NewRequest(ctx, OpExplode)
	defer req.Abandon(nil)

	in, err := singleInput(r, req, "file")
	if err != nil {
		s.fail(w, r, req, nil, err)
		return
	}
	mode := strings.TrimSpace(r.FormValue("mode"))
	rangeText := r.FormValue("range")

	var out *Output
	switch mode {
	case ModeEach:
		out, err = s.Explode(ctx, req, in)
	case ModeRange:
		if strings.TrimSpace(rangeText) == "" {
			s.fail(w, r, req, []pdfdoc.Input{in}, pdfdoc.InvalidRequest("range is required when mode=%s", ModeRange))
			return
		}
		req.SetOperation(OpSplitRange)
		ctx = kit.WithOperation(ctx, OpSplitRange)
		out, err = s.SplitRange(ctx, req, in, rangeText)
	default:
		s.fail(w, r, req, []pdfdoc.Input{in}, pdfdoc.InvalidRequest("mode must be %q or %q", ModeEach, ModeRange))
		return
	}
	if err != nil {
		writeFailure(w, r, req, err)
		return
	}
	s.sendOutput(w, r, req, out)
}

func (s *Service) handleImages(w http.ResponseWriter, r *http.Request) {
	ctx := RequestContext(r.Context(), kit.TransportHTTP, OpImages)
	req := s.NewRequest(ctx, OpImages)
	defer req.Abandon(nil)

	ins, err := formInputs(r, req, "files")
	if err != nil {
		s.fail(w, r, req, nil, err)
		return
	}
	out, err := s.Images(ctx, req, ins)
	if err != nil {
		writeFailure(w, r, req, err)
		return
	}
	s.sendOutput(w, r, req, out)
}

// fail rejects req for an argument error and writes the error response.
func (s *Service) fail(w http.ResponseWriter, r *http.Request, req *lifecycle.Request, ins []pdfdoc.Input, err error) {
	s.reject(req, ins, err)
	writeFailure(w, r, req, err)
}
