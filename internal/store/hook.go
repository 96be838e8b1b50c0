package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Additional-Code/orderlens/store"

// Hook observes every statement bun sends to the database: it traces it,
// counts it, and records it into the context's Tally.
type Hook struct {
	tracer  trace.Tracer
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

var _ bun.QueryHook = (*Hook)(nil)

// NewHook builds the hook against the global tracer and meter providers.
func NewHook() (*Hook, error) {
	meter := otel.Meter(instrumentationName)
	calls, err := meter.Int64Counter("orderlens.db.round_trips",
		metric.WithDescription("Statements sent to the database"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("orderlens.db.round_trip.duration",
		metric.WithDescription("Statement latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return &Hook{
		tracer:  otel.Tracer(instrumentationName),
		calls:   calls,
		latency: latency,
	}, nil
}

// BeforeQuery opens a client span for the statement.
func (h *Hook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	ctx, _ = h.tracer.Start(ctx, "db."+strings.ToLower(event.Operation()), trace.WithSpanKind(trace.SpanKindClient))
	return ctx
}

// AfterQuery closes the span and records the round trip.
func (h *Hook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	op := event.Operation()
	failed := event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.statement", event.Query),
	)
	if failed {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, "statement failed")
	}
	span.End()

	attrs := metric.WithAttributes(attribute.String("db.operation", op))
	h.calls.Add(ctx, 1, attrs)
	h.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)

	if t := TallyFrom(ctx); t != nil {
		t.Record(Statement{
			SQL:       event.Query,
			Operation: op,
			Duration:  elapsed,
			Failed:    failed,
		})
	}
}
