package observability

import (
	"context"
	"log/slog"

	"github.com/geocoder89/idprint/internal/actorctx"
	"go.opentelemetry.io/otel/trace"
)

// contextHandler copies request scoped values onto each record: the active
// span and the authenticated caller.
type contextHandler struct {
	slog.Handler
}

func withContext(h slog.Handler) slog.Handler {
	return contextHandler{Handler: h}
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	if p, ok := actorctx.PrincipalFrom(ctx); ok {
		r.AddAttrs(slog.Group("actor",
			slog.String("id", p.UserID),
			slog.String("role", p.Role),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
