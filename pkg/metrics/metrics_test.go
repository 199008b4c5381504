package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The registry is process-global and collectors register once, so every
// constructor is called exactly once in this test.
func TestPrometheusMetrics(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())

	chunks := NewCASMetrics()
	require.NotNil(t, chunks)
	chunks.ObserveOperation("put", time.Millisecond, nil)
	chunks.ObserveOperation("put", time.Millisecond, errors.New("boom"))
	chunks.RecordDedup()
	chunks.RecordCacheHit(true)
	chunks.RecordReclaim(2, 100)

	m := chunks.(*casMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("put", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("put", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dedupTotal))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.reclaimedBytes))

	uploads := NewUploadMetrics()
	require.NotNil(t, uploads)
	uploads.RecordSession("init")
	uploads.RecordExpired(3)
	uploads.RecordChunkUpload(10)
	uploads.ObserveFinalize(time.Millisecond, nil)
	u := uploads.(*uploadMetrics)
	assert.Equal(t, 3.0, testutil.ToFloat64(u.sessionsTotal.WithLabelValues("expired")))
	assert.Equal(t, 10.0, testutil.ToFloat64(u.bytesUploaded))

	api := NewAPIMetrics()
	api.RecordRequest(http.MethodGet, "/api/v1/nodes/{id}", http.StatusNotFound, time.Millisecond)
	a := api.(*apiMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.requestsTotal.WithLabelValues("GET", "/api/v1/nodes/{id}", "404")))

	require.NotNil(t, NewS3Metrics())

	handler := Handler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dittovault_upload_sessions_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
