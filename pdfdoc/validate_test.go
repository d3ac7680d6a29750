package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/pagekit/internal/pdftest"
)

func TestValidate_Accepts(t *testing.T) {
	// WHAT: A well-formed PDF passes and reports pages, size and position 0.
	// WHY: Transformations read the same stream right after validation.
	raw := pdftest.Text("v", 3)
	r := bytes.NewReader(raw)
	v := NewValidator(ValidatorConfig{})

	doc, err := v.Validate(NewInput("Report.PDF", "Application/PDF", r))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if doc.Pages != 3 {
		t.Errorf("pages = %d, want 3", doc.Pages)
	}
	if doc.Size != int64(len(raw)) {
		t.Errorf("size = %d, want %d", doc.Size, len(raw))
	}
	pos, _ := r.Seek(0, io.SeekCurrent)
	if pos != 0 {
		t.Errorf("position = %d, want 0", pos)
	}
}

func TestValidate_Rejects(t *testing.T) {
	good := pdftest.Text("v", 1)
	tests := []struct {
		name      string
		file      string
		mediaType string
		data      []byte
		max       int64
		want      error
	}{
		{"extension", "report.txt", MediaType, good, 0, ErrInvalidFormat},
		{"media type", "report.pdf", "text/plain", good, 0, ErrInvalidFormat},
		{"magic", "report.pdf", MediaType, []byte("GIF89a not a pdf at all"), 0, ErrInvalidFormat},
		{"short file", "report.pdf", MediaType, []byte("%P"), 0, ErrInvalidFormat},
		{"too large", "report.pdf", MediaType, good, 64, ErrTooLarge},
		{"corrupted", "report.pdf", MediaType, []byte("%PDF-1.4\ngarbage without objects\n"), 0, ErrCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(ValidatorConfig{MaxBytes: tt.max, ChunkSize: 16})
			r := bytes.NewReader(tt.data)
			_, err := v.Validate(NewInput(tt.file, tt.mediaType, r))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var e *Error
			if !errors.As(err, &e) || e.File != tt.file {
				t.Errorf("error does not name %q: %v", tt.file, err)
			}
			if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
				t.Errorf("position = %d after rejection, want 0", pos)
			}
		})
	}
}

func TestValidate_Encrypted(t *testing.T) {
	// WHAT: A password-protected PDF is rejected as Encrypted, not Corrupted.
	// WHY: Clients get 415 for encryption and 400 for damage.
	conf := model.NewAESConfiguration("user", "owner", 256)
	var enc bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(pdftest.Text("secret", 1)), &enc, conf); err != nil {
		t.Skipf("pdfcpu could not encrypt fixture: %v", err)
	}

	v := NewValidator(ValidatorConfig{})
	_, err := v.Validate(pdfInput("locked.pdf", enc.Bytes()))
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("err = %v, want encrypted", err)
	}
}

func TestValidate_SizeBoundary(t *testing.T) {
	// WHAT: A file of exactly MaxBytes passes; one byte more fails.
	// WHY: The ceiling is inclusive.
	raw := pdftest.Text("b", 1)
	v := NewValidator(ValidatorConfig{MaxBytes: int64(len(raw)), ChunkSize: 7})
	if _, err := v.Validate(pdfInput("a.pdf", raw)); err != nil {
		t.Fatalf("exact size rejected: %v", err)
	}
	v = NewValidator(ValidatorConfig{MaxBytes: int64(len(raw)) - 1, ChunkSize: 7})
	if _, err := v.Validate(pdfInput("a.pdf", raw)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want too large", err)
	}
}

func TestValidateAll_FirstFailure(t *testing.T) {
	// WHAT: Batch validation stops at the first bad document and names it.
	v := NewValidator(ValidatorConfig{})
	ins := []Input{
		pdfInput("a.pdf", pdftest.Text("a", 1)),
		NewInput("b.doc", MediaType, bytes.NewReader(pdftest.Text("b", 1))),
		NewInput("c.doc", MediaType, bytes.NewReader(pdftest.Text("c", 1))),
	}
	docs, err := v.ValidateAll(ins)
	if docs != nil {
		t.Fatal("expected no documents on failure")
	}
	var e *Error
	if !errors.As(err, &e) || e.File != "b.doc" {
		t.Fatalf("err = %v, want failure naming b.doc", err)
	}
}

func TestInputPeek_RestoresOnPanic(t *testing.T) {
	r := bytes.NewReader([]byte("%PDF-1.4 abcdef"))
	r.Seek(5, io.SeekStart)
	in := NewInput("x.pdf", MediaType, r)

	func() {
		defer func() { recover() }()
		in.Peek(func(rs io.ReadSeeker) error {
			io.ReadAll(rs)
			panic("parser blew up")
		})
	}()
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 5 {
		t.Fatalf("position = %d, want 5", pos)
	}
}

func TestBaseName(t *testing.T) {
	tests := map[string]string{
		"report.pdf":            "report",
		"dir/sub/Scan 01.PDF":   "Scan 01",
		`C:\Users\me\taxes.pdf`: "taxes",
		"archive.tar.pdf":       "archive.tar",
		".pdf":                  "document",
		"":                      "document",
		"noext":                 "noext",
	}
	for in, want := range tests {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorIs_Kind(t *testing.T) {
	err := newError(KindRangeInvalid, "a.pdf", "bad", nil)
	if !errors.Is(err, ErrRangeInvalid) {
		t.Error("expected kind match")
	}
	if errors.Is(err, ErrCorrupted) {
		t.Error("unexpected match on another kind")
	}
	if KindOf(err) != KindRangeInvalid {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error has no kind")
	}
	if !strings.Contains(err.Error(), "a.pdf") {
		t.Errorf("message %q does not name the file", err.Error())
	}
}

func TestIsPasswordError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("pdfcpu read: %w", pdfcpu.ErrWrongPassword), true},
		{errors.New("pdfcpu: please provide owner password and optional user password"), true},
		{errors.New("pdfcpu: invalid Encrypt dict"), false},
		{errors.New("pdfcpu: dereferenceDict: wrong type for encrypt entry"), false},
	}
	for _, tt := range tests {
		if got := isPasswordError(tt.err); got != tt.want {
			t.Errorf("isPasswordError(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
