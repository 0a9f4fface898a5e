package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBacktest(t *testing.T) {
	m := NewMetrics()
	m.ObserveBacktest(10*time.Millisecond, 3, nil)
	m.ObserveBacktest(time.Millisecond, 0, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BacktestsTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TradesSimulated))
}

func TestObserveFetch(t *testing.T) {
	m := NewMetrics()
	m.ObserveFetch("alpaca", 100, nil)
	m.ObserveFetch("alpaca", 0, errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("alpaca")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("alpaca")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.BarsFetched))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBacktest(time.Second, 1, nil)
		m.ObserveScreening(time.Second, 1)
		m.ObserveFetch("csv", 1, nil)
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveScreening(time.Second, 12)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stratlab_screening_combinations_total 12"))
}
