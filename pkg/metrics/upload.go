package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittovault/pkg/upload"
)

// uploadMetrics is the Prometheus implementation of upload.Metrics.
type uploadMetrics struct {
	sessionsTotal    *prometheus.CounterVec
	chunksUploaded   prometheus.Counter
	bytesUploaded    prometheus.Counter
	finalizeTotal    *prometheus.CounterVec
	finalizeDuration prometheus.Histogram
}

// NewUploadMetrics creates a new Prometheus-backed upload.Metrics instance.
//
// Returns nil if metrics are not enabled.
func NewUploadMetrics() upload.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &uploadMetrics{
		sessionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_upload_sessions_total",
				Help: "Upload session lifecycle events",
			},
			[]string{"event"}, // init, finalize, cancel, expired
		),
		chunksUploaded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittovault_upload_chunks_total",
				Help: "Total number of chunks accepted through upload sessions",
			},
		),
		bytesUploaded: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittovault_upload_bytes_total",
				Help: "Total chunk bytes accepted through upload sessions",
			},
		),
		finalizeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_upload_finalize_total",
				Help: "Finalize attempts by status",
			},
			[]string{"status"},
		),
		finalizeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittovault_upload_finalize_duration_seconds",
				Help: "Duration of finalize transactions in seconds, retries included",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
				},
			},
		),
	}
}

func (m *uploadMetrics) RecordSession(event string) {
	m.sessionsTotal.WithLabelValues(event).Inc()
}

func (m *uploadMetrics) RecordExpired(count int) {
	m.sessionsTotal.WithLabelValues("expired").Add(float64(count))
}

func (m *uploadMetrics) RecordChunkUpload(bytes int64) {
	m.chunksUploaded.Inc()
	m.bytesUploaded.Add(float64(bytes))
}

func (m *uploadMetrics) ObserveFinalize(duration time.Duration, err error) {
	m.finalizeTotal.WithLabelValues(status(err)).Inc()
	m.finalizeDuration.Observe(duration.Seconds())
}
