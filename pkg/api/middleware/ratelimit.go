package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/marmos91/dittovault/internal/ratelimiter"
	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/metrics"
)

// RateLimit throttles requests per client IP with limiter. Rejected
// requests get 429 and a Retry-After header. Run it after chi's RealIP so
// proxied clients are keyed by their own address.
func RateLimit(limiter *ratelimiter.RateLimiter, m metrics.APIMetrics) func(http.Handler) http.Handler {
	if m == nil {
		m = metrics.NewNoopAPIMetrics()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil || limiter.Unlimited() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			m.RecordRateLimited(routePattern(r))
			wait := limiter.Reserve(key)
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(models.Response{
				Error: &models.ErrorBody{Code: models.CodeRateLimited, Message: "too many requests"},
			})
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
