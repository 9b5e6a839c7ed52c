// Package logging carries a *slog.Logger and a set of attributes on a
// context, so deep calls log with the request's component, op and actor
// without threading a logger through every signature.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type stateKey struct{}

// state is immutable once stored; every With* call stores a new one.
type state struct {
	logger *slog.Logger
	attrs  []slog.Attr
}

var discard = slog.New(slog.DiscardHandler)

// New builds the process logger. format "json" selects the JSON handler,
// anything else the text handler.
func New(w io.Writer, format string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel reads debug, info, warn or error. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func load(ctx context.Context) state {
	if ctx == nil {
		return state{}
	}
	st, _ := ctx.Value(stateKey{}).(state)
	return st
}

func store(ctx context.Context, st state) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stateKey{}, st)
}

// WithLogger sets the logger used by Info, Warn and Error. Attributes
// already on ctx are kept.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	st := load(ctx)
	st.logger = logger
	return store(ctx, st)
}

// WithAttrs adds attrs to every later log line from ctx. A key already
// present is overwritten in place.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	st := load(ctx)
	st.attrs = merge(st.attrs, attrs)
	return store(ctx, st)
}

// WithActor tags ctx with the user performing a hierarchy or import step.
func WithActor(ctx context.Context, actorID uint64, actorType string) context.Context {
	attrs := []slog.Attr{slog.Uint64("actor_id", actorID)}
	if actorType = strings.TrimSpace(actorType); actorType != "" {
		attrs = append(attrs, slog.String("actor_type", actorType))
	}
	return WithAttrs(ctx, attrs...)
}

// Logger returns ctx's logger, or one that discards everything.
func Logger(ctx context.Context) *slog.Logger {
	if st := load(ctx); st.logger != nil {
		return st.logger
	}
	return discard
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, msg, attrs)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, msg, attrs)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, msg, attrs)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, msg, attrs)
}

func emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if ctx == nil {
		ctx = context.Background()
	}
	st := load(ctx)
	logger := st.logger
	if logger == nil {
		logger = discard
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, merge(st.attrs, attrs)...)
}

// merge returns base followed by extra in a new slice. An extra attr whose
// key is already present replaces the earlier value at its position.
func merge(base, extra []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, attr := range extra {
		replaced := false
		if attr.Key != "" {
			for i := range out {
				if out[i].Key == attr.Key {
					out[i] = attr
					replaced = true
					break
				}
			}
		}
		if !replaced {
			out = append(out, attr)
		}
	}
	return out
}
