package errs

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Wrap prefixes err with msg. errors.Is and errors.As still see err.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf is Wrap with a formatted prefix.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithStack records the current goroutine's stack on err. Errors that already
// carry a stack are returned unchanged, so the innermost capture wins.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := stackOf(err); ok {
		return err
	}
	return &stackError{err: err, stack: debug.Stack()}
}

type stackError struct {
	err   error
	stack []byte
}

func (e *stackError) Error() string { return e.err.Error() }
func (e *stackError) Unwrap() error { return e.err }

func stackOf(err error) ([]byte, bool) {
	var se *stackError
	if !errors.As(err, &se) {
		return nil, false
	}
	return se.stack, true
}

// KindName names the first kind sentinel found in err's chain, or "internal".
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBadHierarchy):
		return "bad_hierarchy"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrExhaustedRetries):
		return "exhausted_retries"
	default:
		return "internal"
	}
}

// Loggable renders err as a slog group with its message, kind, wrap chain and
// stack when one was recorded:
//
//	logging.Error(ctx, "repack failed", slog.Any("err", errs.Loggable(err)))
func Loggable(err error) slog.LogValuer { return loggable{err: err} }

type loggable struct{ err error }

func (l loggable) LogValue() slog.Value {
	if l.err == nil {
		return slog.GroupValue()
	}
	attrs := []slog.Attr{
		slog.String("message", l.err.Error()),
		slog.String("kind", KindName(l.err)),
		slog.Any("chain", chain(l.err)),
	}
	if stack, ok := stackOf(l.err); ok {
		attrs = append(attrs, slog.String("stack", string(stack)))
	}
	return slog.GroupValue(attrs...)
}

// chain lists the messages along the single-unwrap path, outermost first.
func chain(err error) []string {
	var out []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
