// Package requestctx carries per-request values from the transport into the domain.
package requestctx

import (
	"context"

	"github.com/rs/zerolog"
)

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logger returns the request logger attached with zerolog's WithContext, or fallback when
// ctx carries none (jobs, tests).
func Logger(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	if id := RequestID(ctx); id != "" {
		return fallback.With().Str("requestId", id).Logger()
	}
	return fallback
}
