package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// MultiHandler fans a record out to every sink enabled for its level. A sink
// that fails does not stop the others; all failures are joined and returned.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil sinks.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{
		handlers: slices.DeleteFunc(slices.Clone(handlers), func(h slog.Handler) bool { return h == nil }),
	}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.handlers, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = fn(h)
	}
	return &MultiHandler{handlers: out}
}
