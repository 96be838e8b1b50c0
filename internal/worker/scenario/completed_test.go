package scenario

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/messaging"
	scenariosvc "github.com/Additional-Code/orderlens/internal/service/scenario"
)

func newHandler(t *testing.T, budget int) (messaging.Handler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	counter, err := noop.NewMeterProvider().Meter("test").Int64Counter("over_budget")
	require.NoError(t, err)
	return handleCompleted(zap.New(core), budget, counter), logs
}

func message(t *testing.T, ev scenariosvc.ScenarioCompletedEvent) messaging.Message {
	t.Helper()
	msg, err := messaging.NewEvent(context.Background(), scenariosvc.EventScenarioCompleted, ev.Scenario, ev)
	require.NoError(t, err)
	return msg
}

func TestCompletedWithinBudget(t *testing.T) {
	h, logs := newHandler(t, 10)

	err := h(context.Background(), message(t, scenariosvc.ScenarioCompletedEvent{Scenario: "orders-page", RoundTrips: 1}))
	require.NoError(t, err)

	entries := logs.FilterMessage("scenario completed event processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestCompletedOverBudget(t *testing.T) {
	h, logs := newHandler(t, 10)

	err := h(context.Background(), message(t, scenariosvc.ScenarioCompletedEvent{Scenario: "full-order-report", RoundTrips: 201}))
	require.NoError(t, err)

	entries := logs.FilterMessage("scenario exceeded round-trip budget").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, 201, entries[0].ContextMap()["round_trips"])
}

func TestCompletedRejectsGarbage(t *testing.T) {
	h, _ := newHandler(t, 10)

	err := h(context.Background(), messaging.Message{Topic: "orderlens.scenarios", Value: []byte("{")})
	var permanent *backoff.PermanentError
	assert.ErrorAs(t, err, &permanent, "undecodable values are not retried")
}

func TestNewCompletedHandlerBindsEvent(t *testing.T) {
	reg, err := NewCompletedHandler(zap.NewNop(), config.Config{})
	require.NoError(t, err)
	assert.Equal(t, scenariosvc.EventScenarioCompleted, reg.Event)
	assert.NotNil(t, reg.Handler)
}
