package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittovault/pkg/store/content/s3"
)

// s3Metrics is the Prometheus implementation of s3.S3Metrics. Failed
// requests are counted under outcome="error"; there is no separate error
// counter.
type s3Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// NewS3Metrics returns nil when metrics are disabled, which makes the S3
// backend fall back to its no-op implementation.
func NewS3Metrics() s3.S3Metrics {
	if !IsEnabled() {
		return nil
	}
	factory := promauto.With(GetRegistry())

	return &s3Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittovault_s3_requests_total",
			Help: "S3 requests by object operation and outcome",
		}, []string{"operation", "outcome"}),

		// 5ms up to roughly 19s; chunk objects are at most a few MiB
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittovault_s3_request_duration_seconds",
			Help:    "S3 request latency by object operation",
			Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 10),
		}, []string{"operation"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dittovault_s3_object_bytes_total",
			Help: "Chunk object bytes written (put) and read (get)",
		}, []string{"operation"}),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.requests.WithLabelValues(operation, status(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *s3Metrics) RecordBytes(operation string, n int64) {
	m.bytes.WithLabelValues(operation).Add(float64(n))
}
