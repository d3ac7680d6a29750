// CLAUDE:SUMMARY Error taxonomy for document validation and transformation — Kind tags, Error type, kind sentinels.
package pdfdoc

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The string value is the wire code.
type Kind string

const (
	KindInvalidFormat     Kind = "invalid_format"
	KindTooLarge          Kind = "too_large"
	KindEncrypted         Kind = "encrypted"
	KindCorrupted         Kind = "corrupted"
	KindRangeInvalid      Kind = "range_invalid"
	KindJoinFailure       Kind = "join_failure"
	KindNoImagesFound     Kind = "no_images_found"
	KindExtractionFailure Kind = "extraction_failure"
	KindInvalidRequest    Kind = "invalid_request"
)

// Error is a tagged failure. File names the offending document when the
// failure is document-specific.
type Error struct {
	Kind   Kind
	Detail string
	File   string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("pdfdoc: %s: %s", e.Kind, e.Detail)
	if e.File != "" {
		msg = fmt.Sprintf("pdfdoc: %s: %s: %s", e.Kind, e.File, e.Detail)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.File == "" && t.Detail == ""
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidFormat     = &Error{Kind: KindInvalidFormat}
	ErrTooLarge          = &Error{Kind: KindTooLarge}
	ErrEncrypted         = &Error{Kind: KindEncrypted}
	ErrCorrupted         = &Error{Kind: KindCorrupted}
	ErrRangeInvalid      = &Error{Kind: KindRangeInvalid}
	ErrJoinFailure       = &Error{Kind: KindJoinFailure}
	ErrNoImagesFound     = &Error{Kind: KindNoImagesFound}
	ErrExtractionFailure = &Error{Kind: KindExtractionFailure}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
)

func newError(kind Kind, file, detail string, cause error) *Error {
	return &Error{Kind: kind, File: file, Detail: detail, Err: cause}
}

// InvalidRequest builds a caller argument error.
func InvalidRequest(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRequest, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Code returns the wire code of the error kind.
func (e *Error) Code() string { return string(e.Kind) }
