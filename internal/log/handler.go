package log

import (
	"context"
	"log/slog"

	"github.com/layoffproof/layoff-tracker/internal/reqctx"
)

// ContextHandler wraps an slog.Handler and copies the identifiers stored by
// reqctx (request_id, user_id, job) onto every record.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.inner.Handle(ctx, r)
	}
	for _, kv := range [...]struct{ key, value string }{
		{"request_id", reqctx.RequestID(ctx)},
		{"user_id", reqctx.UserID(ctx)},
		{"job", reqctx.Job(ctx)},
	} {
		if kv.value != "" {
			r.AddAttrs(slog.String(kv.key, kv.value))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
