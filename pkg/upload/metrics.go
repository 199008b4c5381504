package upload

import "time"

// Metrics provides observability for upload sessions.
//
// If not provided, metrics collection is skipped.
type Metrics interface {
	// RecordSession counts session lifecycle events: init, finalize, cancel
	RecordSession(event string)

	// RecordExpired counts sessions removed by the sweeper
	RecordExpired(count int)

	// RecordChunkUpload records one accepted chunk upload
	RecordChunkUpload(bytes int64)

	// ObserveFinalize records finalize latency and outcome
	ObserveFinalize(duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordSession(string)                 {}
func (noopMetrics) RecordExpired(int)                    {}
func (noopMetrics) RecordChunkUpload(int64)              {}
func (noopMetrics) ObserveFinalize(time.Duration, error) {}
