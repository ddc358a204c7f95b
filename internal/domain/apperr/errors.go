// Package apperr defines the error kinds shared by the marketplace domain.
// Domain packages wrap one of these kinds in their own sentinel errors so
// callers can branch on the kind with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrValidation     = errors.New("validation failed")
	ErrWindowExceeded = errors.New("refund window exceeded")
	ErrUnauthorized   = errors.New("unauthorized")
)

// kindError is a sentinel with a fixed message that matches its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error whose message is msg and which matches kind
// under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Newf is New with formatting. Use it for request-scoped errors, not sentinels.
func Newf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Kind returns the kind an error belongs to, or nil if it carries none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidState, ErrValidation, ErrWindowExceeded, ErrUnauthorized} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
