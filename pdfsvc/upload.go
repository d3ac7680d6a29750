package pdfsvc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hazyhaar/pagekit/lifecycle"
	"github.com/hazyhaar/pagekit/pdfdoc"
	"github.com/hazyhaar/pagekit/scratch"
)

// formMemory is the part of a multipart form kept in memory; the rest goes to
// temp files that the request bundle removes.
const formMemory = 8 << 20

// formInputs parses the multipart body of r and returns the files of field,
// in the order the client sent them. Open files and the form's temp files are
// added to the request bundle.
func formInputs(r *http.Request, req *lifecycle.Request, field string) ([]pdfdoc.Input, error) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &pdfdoc.Error{
				Kind:   pdfdoc.KindTooLarge,
				Detail: fmt.Sprintf("request body exceeds %d bytes", mbe.Limit),
			}
		}
		return nil, pdfdoc.InvalidRequest("parse multipart form: %v", err)
	}
	form := r.MultipartForm
	req.Bundle().Add(scratch.ReleaseFunc(form.RemoveAll))

	headers := form.File[field]
	ins := make([]pdfdoc.Input, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, &pdfdoc.Error{Kind: pdfdoc.KindCorrupted, File: fh.Filename, Detail: "unable to read upload", Err: err}
		}
		req.Bundle().Add(scratch.ReleaseFunc(f.Close))
		ins = append(ins, pdfdoc.NewInput(fh.Filename, fh.Header.Get("Content-Type"), f))
	}
	return ins, nil
}

// singleInput is formInputs for endpoints that take exactly one file.
func singleInput(r *http.Request, req *lifecycle.Request, field string) (pdfdoc.Input, error) {
	ins, err := formInputs(r, req, field)
	if err != nil {
		return pdfdoc.Input{}, err
	}
	if len(ins) != 1 {
		return pdfdoc.Input{}, pdfdoc.InvalidRequest("send 1 PDF in field %q", field)
	}
	return ins[0], nil
}
