package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordToggle(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordToggle("like", true)
	m.RecordToggle("like", true)
	m.RecordToggle("like", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.togglesTotal.WithLabelValues("like", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.togglesTotal.WithLabelValues("like", "false")))
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetricsCollector()

	m.RecordHTTPRequest("GET", "/post/:id/", 200, 10*time.Millisecond, 512)
	m.RecordHTTPRequest("GET", "/post/:id/", 404, time.Millisecond, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/post/:id/", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/post/:id/", "4xx")))
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewMetricsCollector()
	b := NewMetricsCollector()

	a.RecordPostView()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.postViewsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.postViewsTotal))
}

func TestGetStatusCategory(t *testing.T) {
	assert.Equal(t, "2xx", getStatusCategory(201))
	assert.Equal(t, "3xx", getStatusCategory(302))
	assert.Equal(t, "5xx", getStatusCategory(503))
	assert.Equal(t, "unknown", getStatusCategory(0))
}
