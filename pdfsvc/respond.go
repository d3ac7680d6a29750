package pdfsvc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hazyhaar/pagekit/horosafe"
	"github.com/hazyhaar/pagekit/lifecycle"
	"github.com/hazyhaar/pagekit/pdfdoc"
	"github.com/hazyhaar/pagekit/shield"
)

// errorBody is the JSON payload of every failed call.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	File   string `json:"file,omitempty"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch pdfdoc.KindOf(err) {
	case pdfdoc.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case pdfdoc.KindEncrypted:
		return http.StatusUnsupportedMediaType
	case pdfdoc.KindRangeInvalid:
		return http.StatusUnprocessableEntity
	case pdfdoc.KindInvalidFormat, pdfdoc.KindCorrupted, pdfdoc.KindJoinFailure,
		pdfdoc.KindNoImagesFound, pdfdoc.KindExtractionFailure, pdfdoc.KindInvalidRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, r *http.Request, req *lifecycle.Request, err error) {
	status := StatusFor(err)
	body := errorBody{Code: "internal", Detail: "internal error"}
	var e *pdfdoc.Error
	if errors.As(err, &e) {
		body = errorBody{Code: string(e.Kind), Detail: e.Detail, File: e.File}
	}
	logger := shield.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "request_id", req.ID(), "error", err)
	} else {
		logger.Info("request refused", "request_id", req.ID(), "code", body.Code, "error", err)
	}
	writeJSON(w, status, body)
}

// sendOutput writes the download headers and streams out. Failures after the
// headers are sent can only be logged.
func (s *Service) sendOutput(w http.ResponseWriter, r *http.Request, req *lifecycle.Request, out *Output) {
	h := w.Header()
	h.Set("Content-Type", out.MediaType)
	h.Set("Content-Disposition", horosafe.ContentDisposition(out.Name))
	h.Set("X-Request-ID", req.ID())
	if out.Checksum != "" {
		h.Set("X-Content-Checksum", out.Checksum)
	}
	if sz, ok := out.Body.(interface{ Size() (int64, error) }); ok {
		if n, err := sz.Size(); err == nil {
			h.Set("Content-Length", strconv.FormatInt(n, 10))
		}
	}
	w.WriteHeader(http.StatusOK)

	n, err := s.Stream(r.Context(), req, out, w)
	if err != nil {
		shield.GetLogger(r.Context()).Warn("stream aborted",
			"request_id", req.ID(), "output", out.Name, "bytes", n, "error", err)
	}
}
