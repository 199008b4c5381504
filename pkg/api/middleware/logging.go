// Package middleware holds the HTTP middleware of the REST API.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/metrics"
)

// RequestLogger logs every request through the structured logger and
// records API metrics. Server errors log at warn level, everything else at
// debug.
func RequestLogger(m metrics.APIMetrics) func(http.Handler) http.Handler {
	if m == nil {
		m = metrics.NewNoopAPIMetrics()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			m.RecordRequestStart()
			defer func() {
				m.RecordRequestEnd()

				duration := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := routePattern(r)
				m.RecordRequest(r.Method, route, status, duration)

				entry := logger.WithFields(logger.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"route":       route,
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": duration.Milliseconds(),
					"remote":      r.RemoteAddr,
					"request_id":  chimiddleware.GetReqID(r.Context()),
				})
				if status >= http.StatusInternalServerError {
					entry.Warn("request failed")
				} else {
					entry.Debug("request served")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// routePattern returns the matched chi pattern, which keeps metric label
// cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
