package errs

import (
	"errors"
	"net/http"
)

// Error kinds shared by every layer. Domain packages wrap these so callers can
// classify with errors.Is without knowing the concrete sentinel.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrBadHierarchy     = errors.New("bad hierarchy")
	ErrExhaustedRetries = errors.New("exhausted retries")
	ErrValidation       = errors.New("validation failure")
)

// Kind attaches a kind sentinel to err while keeping err's own message.
func Kind(kind error, err error) error {
	if err == nil {
		return nil
	}
	if kind == nil || errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string   { return e.err.Error() }
func (e *kindError) Unwrap() []error { return []error{e.err, e.kind} }

// StatusCode maps an error chain to the HTTP status a transport should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadHierarchy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrExhaustedRetries):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
