package cas

import "time"

// Metrics provides observability for chunk store operations.
//
// If not provided, metrics collection is skipped.
type Metrics interface {
	// ObserveOperation records a put or get with its duration and outcome
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes moved to or from the backend
	RecordBytes(operation string, bytes int64)

	// RecordDedup counts a Put that found the chunk already stored
	RecordDedup()

	// RecordCacheHit records a read cache lookup
	RecordCacheHit(hit bool)

	// RecordReclaim records one reclaimer pass
	RecordReclaim(chunks int, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
func (noopMetrics) RecordDedup()                                  {}
func (noopMetrics) RecordCacheHit(bool)                           {}
func (noopMetrics) RecordReclaim(int, int64)                      {}
