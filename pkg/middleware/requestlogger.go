package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/pointledger/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, caller,
// trace_id and span_id in the request context. Mount it after RequestLogging,
// Tracing and Auth so those values are present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if caller := CallerFromContext(ctx); caller != "" {
				ctx = logger.WithCaller(ctx, caller)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
