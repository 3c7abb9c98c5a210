package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.DatasetLoad("historical", "ok")
		m.CacheHit()
		m.CacheMiss()
		m.AssistantCall("ok", time.Second)
		m.AssistantTokens(10, 20)
		m.BreakerState("assistant", BreakerOpen)
		m.SocketClients(3)
	})
	assert.Nil(t, m.Registry())

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Instrument("/x", h))
}

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.DatasetLoad("historical", "ok")
	m.DatasetLoad("historical", "ok")
	m.DatasetLoad("sectoral", "missing")
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.AssistantTokens(100, 40)
	m.BreakerState("assistant", BreakerHalfOpen)
	m.SocketClients(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.datasetLoads.WithLabelValues("historical", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.datasetLoads.WithLabelValues("sectoral", "missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheMisses))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.assistantTokens.WithLabelValues("input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("assistant")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.socketClients))
}

func TestInstrumentRecordsStatus(t *testing.T) {
	m := New()
	h := m.Instrument("/api/briefing", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/briefing", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/briefing", "503")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.CacheHit()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "energy_bundle_cache_hits_total 1"))
}
