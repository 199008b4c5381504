package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// APIMetrics provides observability for the REST API.
//
// This interface is optional - if not provided to the API server, a no-op
// implementation is used.
type APIMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - method: HTTP method
	//   - route: chi route pattern (e.g. "/api/v1/uploads/{id}/chunks/{hash}")
	//   - status: HTTP status code written
	//   - duration: Time taken to serve the request
	RecordRequest(method, route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request gauge.
	RecordRequestStart()

	// RecordRequestEnd decrements the in-flight request gauge.
	RecordRequestEnd()

	// RecordRateLimited counts requests rejected by the rate limiter.
	RecordRateLimited(route string)
}

type apiMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	rateLimited      *prometheus.CounterVec
}

// NewAPIMetrics creates a new Prometheus-backed APIMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewAPIMetrics() APIMetrics {
	if !IsEnabled() {
		return NewNoopAPIMetrics()
	}

	reg := GetRegistry()

	return &apiMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_api_requests_total",
				Help: "Total number of API requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittovault_api_request_duration_seconds",
				Help: "Duration of API requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"method", "route"},
		),
		requestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittovault_api_requests_in_flight",
				Help: "Number of API requests currently being served",
			},
		),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_api_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
	}
}

func (m *apiMetrics) RecordRequest(method, route string, code int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, httpCode(code)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func httpCode(code int) string {
	return strconv.Itoa(code)
}

func (m *apiMetrics) RecordRequestStart() { m.requestsInFlight.Inc() }
func (m *apiMetrics) RecordRequestEnd()   { m.requestsInFlight.Dec() }

func (m *apiMetrics) RecordRateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}

// NewNoopAPIMetrics returns an APIMetrics that discards everything.
func NewNoopAPIMetrics() APIMetrics {
	return noopAPIMetrics{}
}

type noopAPIMetrics struct{}

func (noopAPIMetrics) RecordRequest(string, string, int, time.Duration) {}
func (noopAPIMetrics) RecordRequestStart()                              {}
func (noopAPIMetrics) RecordRequestEnd()                                {}
func (noopAPIMetrics) RecordRateLimited(string)                         {}
