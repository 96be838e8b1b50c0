package scenario

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/messaging"
	scenariosvc "github.com/Additional-Code/orderlens/internal/service/scenario"
	"github.com/Additional-Code/orderlens/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/orderlens/worker/scenario")

// Module registers scenario worker handlers.
var Module = fx.Module("worker_scenario",
	fx.Provide(
		fx.Annotate(
			NewCompletedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewCompletedHandler logs every finished scenario run and flags runs that
// spent more round trips than the configured budget.
func NewCompletedHandler(logger *zap.Logger, cfg config.Config) (worker.HandlerRegistration, error) {
	overBudget, err := otel.Meter("github.com/Additional-Code/orderlens/worker/scenario").Int64Counter(
		"orderlens.scenario.over_budget",
		metric.WithDescription("Scenario runs above the round-trip budget"),
	)
	if err != nil {
		return worker.HandlerRegistration{}, err
	}

	return worker.HandlerRegistration{
		Event:   scenariosvc.EventScenarioCompleted,
		Handler: handleCompleted(logger, cfg.Audit.RoundTripBudget, overBudget),
	}, nil
}

func handleCompleted(logger *zap.Logger, budget int, overBudget metric.Int64Counter) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.scenarios.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event scenariosvc.ScenarioCompletedEvent
		if err := msg.Decode(&event); err != nil {
			logger.Error("failed to decode scenario completed", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return messaging.Permanent(err)
		}
		span.SetAttributes(
			attribute.String("scenario.name", event.Scenario),
			attribute.Int("scenario.round_trips", event.RoundTrips),
		)

		fields := []zap.Field{
			zap.String("run_id", event.RunID),
			zap.String("scenario", event.Scenario),
			zap.String("variant", string(event.Variant)),
			zap.Int("round_trips", event.RoundTrips),
			zap.Int("issues", event.Issues),
			zap.Int64("duration_ms", event.DurationMS),
		}
		if budget > 0 && event.RoundTrips > budget {
			overBudget.Add(ctx, 1, metric.WithAttributes(attribute.String("scenario", event.Scenario)))
			logger.Warn("scenario exceeded round-trip budget", append(fields, zap.Int("budget", budget))...)
			return nil
		}
		logger.Info("scenario completed event processed", fields...)

		return nil
	}
}
