package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database/dbtest"
	"github.com/Additional-Code/orderlens/internal/observability"
	"github.com/Additional-Code/orderlens/internal/presentation/http/response"
	"github.com/Additional-Code/orderlens/internal/store"
)

func get(t *testing.T, h http.Handler, path string) (int, response.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	conns := dbtest.Open(t)
	e := NewEcho(config.Config{}, nil, conns, zap.NewNop())

	code, env := get(t, e, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	require.NoError(t, conns.Close())
	code, env = get(t, e, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unavailable", env.Error.Kind)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	e := NewEcho(config.Config{}, nil, nil, zap.NewNop())

	code, env := get(t, e, "/nowhere")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Kind)
}

func TestMetricsRoute(t *testing.T) {
	cfg := config.Config{Observability: config.Observability{
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		TraceExporter:   "none",
		PrometheusPath:  "/metrics",
	}}
	lc := fxtest.NewLifecycle(t)
	obs, err := observability.NewManager(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	obs.RecordScenario("orders-page", "efficient", 1)

	e := NewEcho(cfg, obs, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orderlens_scenario_round_trips")
}

func TestRoundTripsWarnsOverBudget(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := NewEcho(config.Config{}, nil, nil, zap.NewNop())
	e.Use(RoundTrips(zap.New(core), 2))
	e.GET("/busy", func(c echo.Context) error {
		tally := store.TallyFrom(c.Request().Context())
		for i := 0; i < 3; i++ {
			tally.Record(store.Statement{SQL: "SELECT 1"})
		}
		return response.New(c).WithData("ok").Build()
	})

	code, env := get(t, e, "/busy")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, env.Meta["round_trips"])
	assert.Equal(t, 1, logs.FilterMessage("request exceeded round-trip budget").Len())
}
