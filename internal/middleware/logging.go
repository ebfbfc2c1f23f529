package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MetricsSink receives completed request observations.
type MetricsSink interface {
	HTTPRequest(method, route string, status int, duration time.Duration)
}

// Logging logs each request on completion and, when sink is non-nil,
// records it against the chi route pattern so metric cardinality stays
// bounded regardless of path parameters.
func Logging(logger *zap.Logger, sink MetricsSink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}

			logger.Info("Request completed",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", duration),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", GetRequestID(r.Context())),
			)

			if sink != nil {
				sink.HTTPRequest(r.Method, route, ww.Status(), duration)
			}
		})
	}
}
