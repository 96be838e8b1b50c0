package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
)

func newManager(t *testing.T, obs config.Observability) *Manager {
	t.Helper()
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, config.Config{Observability: obs}, zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)
	return mgr
}

func TestRecordScenarioExposesGauge(t *testing.T) {
	mgr := newManager(t, config.Observability{
		ServiceName:     "orderlens",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		TraceExporter:   "none",
	})
	require.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())

	mgr.RecordScenario("orders-with-customers", "naive", 11)
	mgr.RecordScenario("orders-with-customers", "naive", 6)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `orderlens_scenario_round_trips{scenario="orders-with-customers",variant="naive"} 6`)
	assert.Contains(t, string(body), `orderlens_scenario_runs_total{scenario="orders-with-customers",variant="naive"} 2`)
}

func TestDisabledManager(t *testing.T) {
	mgr := newManager(t, config.Observability{TraceExporter: "none", MetricsExporter: "none", EnableTracing: true, EnableMetrics: true})

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.NotPanics(t, func() { mgr.RecordScenario("x", "naive", 1) })

	var nilMgr *Manager
	assert.NotPanics(t, func() { nilMgr.RecordScenario("x", "naive", 1) })
}
