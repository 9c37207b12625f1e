package logger

import (
	"context"
	"log/slog"

	"github.com/garyellow/ossu-tracker-go/internal/ctxutil"
)

// ContextHandler wraps another slog.Handler and stamps every record with the
// tracing values carried by the context, so call sites never pass request_id
// or curriculum by hand.
//
// Attributes added when present in the context:
//   - request_id: correlates all log lines of one HTTP request
//   - client_key: caller identity (remote IP), set by the rate limit middleware
//   - curriculum: the curriculum a sync or extraction run is processing
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler wraps handler with context-value extraction.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle copies the known context values onto the record, then delegates.
// Context cancellation does not stop record processing (slog.Handler contract).
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if requestID := ctxutil.GetRequestID(ctx); requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}

	if clientKey := ctxutil.GetClientKey(ctx); clientKey != "" {
		r.AddAttrs(slog.String("client_key", clientKey))
	}

	if curriculum := ctxutil.GetCurriculum(ctx); curriculum != "" {
		r.AddAttrs(slog.String("curriculum", curriculum))
	}

	return h.handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
