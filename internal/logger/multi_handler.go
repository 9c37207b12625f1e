package logger

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler sends each record to every child handler. Records are
// cloned per child so shared state never leaks between them.
type MultiHandler struct {
	children []slog.Handler
}

// NewMultiHandler builds a MultiHandler from the non-nil handlers given.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	children := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			children = append(children, h)
		}
	}
	return &MultiHandler{children: children}
}

// Enabled reports whether at least one child accepts the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, child := range m.children {
		if child.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to every child whose level accepts it.
// Errors from individual children are joined; one failing child does not
// stop delivery to the rest.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, child := range m.children {
		if !child.Enabled(ctx, r.Level) {
			continue
		}
		if err := child.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies the attributes to every child.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.children))
	for i, child := range m.children {
		next[i] = child.WithAttrs(attrs)
	}
	return &MultiHandler{children: next}
}

// WithGroup applies the group to every child.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.children))
	for i, child := range m.children {
		next[i] = child.WithGroup(name)
	}
	return &MultiHandler{children: next}
}
