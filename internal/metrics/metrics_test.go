package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.PhotoRead("blob")
	m.Mail("sent")
	m.AllocationConflict()
	m.Exhausted()
	m.Registered()
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.PhotoRead("blob")
	m.PhotoRead("blob")
	m.Exhausted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PhotoReads.WithLabelValues("blob")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AllocationExhausted))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "directory_photo_reads_total")
	// instances do not share a registry
	assert.NotPanics(t, func() { New() })
}
