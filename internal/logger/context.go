package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// WithRequestID stores the id RequestIDMiddleware assigned to the request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFrom returns the request id in ctx, or "" outside a request.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromCtx is the logger every layer starts from: the global logger, tagged
// with request_id when ctx carries one.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if id := RequestIDFrom(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	return l
}
