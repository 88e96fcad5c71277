// Package middleware contains HTTP middleware for the status server.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/quizforge/internal/api/shared"
	"github.com/phrazzld/quizforge/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context and a logger
// carrying it, so handlers can log with logger.FromContext.
func NewTraceMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			reqLog := log.With(slog.String("trace_id", traceID))
			reqLog.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			ctx = logger.WithLogger(ctx, reqLog)
			w.Header().Set("X-Trace-ID", traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
