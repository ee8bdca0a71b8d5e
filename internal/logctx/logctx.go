// Package logctx enriches slog records with data carried in the context.
package logctx

import (
	"context"
	"log/slog"
)

// Handler adds the invocation group to every record whose context carries
// an Invocation.
type Handler struct {
	slog.Handler
}

// NewHandler wraps h.
func NewHandler(h slog.Handler) Handler {
	return Handler{Handler: h}
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if inv, ok := InvocationFrom(ctx); ok {
		r.AddAttrs(slog.Group("invocation",
			slog.String("id", inv.ID),
			slog.String("operation", inv.Operation),
			slog.String("config_id", inv.ConfigID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type invocationKey struct{}

// Invocation identifies one run of one operation.
type Invocation struct {
	ID        string
	Operation string
	ConfigID  string
}

func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation stored in ctx, if any.
func InvocationFrom(ctx context.Context) (*Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(*Invocation)
	return inv, ok
}
