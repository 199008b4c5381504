package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittovault/pkg/cas"
)

// casMetrics is the Prometheus implementation of cas.Metrics.
//
// It tracks:
//   - Chunk operation counts and latency
//   - Bytes written and read
//   - Deduplicated puts (chunk already stored)
//   - Read cache effectiveness
//   - Reclaimed chunks and bytes
type casMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
	dedupTotal        prometheus.Counter
	cacheTotal        *prometheus.CounterVec
	reclaimedChunks   prometheus.Counter
	reclaimedBytes    prometheus.Counter
}

// NewCASMetrics creates a new Prometheus-backed cas.Metrics instance.
//
// Returns nil if metrics are not enabled, which makes the chunk store use
// its no-op implementation.
func NewCASMetrics() cas.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &casMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_operations_total",
				Help: "Total number of chunk store operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittovault_chunk_operation_duration_seconds",
				Help: "Duration of chunk store operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_bytes_total",
				Help: "Total chunk bytes by direction",
			},
			[]string{"operation"},
		),
		dedupTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_dedup_total",
				Help: "Total number of puts of chunks that were already stored",
			},
		),
		cacheTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_cache_requests_total",
				Help: "Total chunk read cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		reclaimedChunks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_reclaimed_total",
				Help: "Total number of unreferenced chunks reclaimed",
			},
		),
		reclaimedBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittovault_chunk_reclaimed_bytes_total",
				Help: "Total bytes freed by chunk reclamation",
			},
		),
	}
}

func (m *casMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *casMetrics) RecordBytes(operation string, bytes int64) {
	m.bytesTotal.WithLabelValues(operation).Add(float64(bytes))
}

func (m *casMetrics) RecordDedup() {
	m.dedupTotal.Inc()
}

func (m *casMetrics) RecordCacheHit(hit bool) {
	if hit {
		m.cacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.cacheTotal.WithLabelValues("miss").Inc()
}

func (m *casMetrics) RecordReclaim(chunks int, bytes int64) {
	m.reclaimedChunks.Add(float64(chunks))
	m.reclaimedBytes.Add(float64(bytes))
}
