package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mahmudulhsn/shopping-cart/pkg/logger"
)

// SessionIDHeader identifies the cart session a request operates on.
const SessionIDHeader = "X-Session-ID"

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, session_id, trace_id and span_id. Mount it after
// RequestLogging and Tracing so those fields are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get(SessionIDHeader); id != "" {
				ctx = logger.WithSessionID(ctx, id)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
