package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/audit"
	"github.com/Additional-Code/orderlens/internal/cache"
	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/messaging"
	"github.com/Additional-Code/orderlens/internal/observability"
	repo "github.com/Additional-Code/orderlens/internal/repository/order"
	"github.com/Additional-Code/orderlens/internal/scenario"
	"github.com/Additional-Code/orderlens/internal/store"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderlens/service/scenario")

// DefaultPageSize is the page size used when Params.Size is zero.
const DefaultPageSize = repo.DefaultPageSize

// Params are the inputs a scenario may use.
type Params struct {
	Page      int     `json:"page" validate:"gte=0"`
	Size      int     `json:"size" validate:"gte=0,lte=1000"`
	Status    string  `json:"status" validate:"omitempty,max=32"`
	IDs       []int64 `json:"ids" validate:"omitempty,max=1000,dive,gt=0"`
	NewStatus string  `json:"new_status" validate:"omitempty,max=32"`
}

// Report is the outcome of one scenario run.
type Report struct {
	RunID      string        `json:"run_id"`
	Scenario   string        `json:"scenario"`
	Variant    Variant       `json:"variant"`
	Pattern    string        `json:"pattern"`
	RoundTrips int           `json:"round_trips"`
	Rows       int           `json:"rows"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	Statements []string      `json:"statements"`
	Issues     []audit.Issue `json:"issues"`
	Result     any           `json:"result,omitempty"`
}

// Comparison pairs a naive run with its efficient counterpart.
type Comparison struct {
	Naive     *Report `json:"naive"`
	Efficient *Report `json:"efficient"`
	// Saved is the number of round trips the efficient variant avoided.
	Saved int `json:"saved"`
}

// Service runs scenarios and keeps their reports.
type Service struct {
	scenarios *scenario.Scenarios
	repo      *repo.Repository
	auditor   *audit.Auditor
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	validate  *validator.Validate
	registry  map[string]Definition
	obs       *observability.Manager
}

// Deps defines dependencies for constructing Service.
type Deps struct {
	fx.In

	Scenarios  *scenario.Scenarios
	Repository *repo.Repository
	Auditor    *audit.Auditor
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
	Obs        *observability.Manager `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scenarios: d.Scenarios,
		repo:      d.Repository,
		auditor:   d.Auditor,
		cache:     d.Cache,
		cacheTTL:  d.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: d.Publisher,
		validate:  validator.New(),
		registry:  newRegistry(),
		obs:       d.Obs,
	}
}

// List returns every scenario, naive variants first.
func (s *Service) List() []Definition {
	return sortedDefinitions(s.registry)
}

// Lookup returns the named scenario.
func (s *Service) Lookup(name string) (Definition, error) {
	def, ok := s.registry[name]
	if !ok {
		return Definition{}, errorbank.NotFound(fmt.Sprintf("scenario %q not found", name), errorbank.WithDetail("scenario", name))
	}
	return def, nil
}

// Run executes a scenario, audits the statements it issued, caches the
// report and announces it on the message bus.
func (s *Service) Run(ctx context.Context, name string, p Params) (*Report, error) {
	def, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if err := s.check(def, p); err != nil {
		return nil, err
	}

	ctx, span := serviceTracer.Start(ctx, "ScenarioService.Run", trace.WithAttributes(
		attribute.String("scenario.name", def.Name),
		attribute.String("scenario.variant", string(def.Variant)),
	))
	defer span.End()

	runCtx, tally := store.WithTally(ctx)
	started := time.Now().UTC()
	result, rows, err := def.run(runCtx, s, p)
	elapsed := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scenario failed")
		return nil, errorbank.Internal("scenario failed",
			errorbank.WithCause(err),
			errorbank.WithDetail("scenario", def.Name),
			errorbank.WithDetail("round_trips", tally.Calls()),
		)
	}

	statements := tally.SQL()
	issues := s.auditor.Audit(statements)
	if issues == nil {
		issues = []audit.Issue{}
	}

	report := &Report{
		RunID:      uuid.NewString(),
		Scenario:   def.Name,
		Variant:    def.Variant,
		Pattern:    def.Pattern,
		RoundTrips: len(statements),
		Rows:       rows,
		Duration:   elapsed,
		StartedAt:  started,
		Statements: statements,
		Issues:     issues,
		Result:     result,
	}
	span.SetAttributes(
		attribute.Int("scenario.round_trips", report.RoundTrips),
		attribute.Int("scenario.issues", len(report.Issues)),
	)

	s.obs.RecordScenario(def.Name, string(def.Variant), report.RoundTrips)
	s.logger.Info("scenario completed",
		zap.String("scenario", def.Name),
		zap.String("run_id", report.RunID),
		zap.Int("round_trips", report.RoundTrips),
		zap.Int("rows", report.Rows),
		zap.Duration("duration", elapsed),
	)

	if err := s.storeInCache(ctx, report); err != nil {
		s.logger.Warn("report cache write failed", zap.String("scenario", def.Name), zap.Error(err))
	}
	s.publishCompleted(ctx, report)

	return report, nil
}

// Compare runs a naive scenario and then its efficient counterpart with
// the same parameters.
func (s *Service) Compare(ctx context.Context, name string, p Params) (*Comparison, error) {
	def, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if def.Counterpart == "" {
		return nil, errorbank.Unprocessable(fmt.Sprintf("scenario %q has no counterpart", name))
	}

	naiveName, efficientName := def.Name, def.Counterpart
	if def.Variant == VariantEfficient {
		naiveName, efficientName = efficientName, naiveName
	}

	naive, err := s.Run(ctx, naiveName, p)
	if err != nil {
		return nil, err
	}
	efficient, err := s.Run(ctx, efficientName, p)
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Naive:     naive,
		Efficient: efficient,
		Saved:     naive.RoundTrips - efficient.RoundTrips,
	}, nil
}

// LastReport returns the most recent cached report for a scenario.
func (s *Service) LastReport(ctx context.Context, name string) (*Report, error) {
	if _, err := s.Lookup(name); err != nil {
		return nil, err
	}

	var report Report
	err := cache.GetJSON(ctx, s.cache, cacheKey(name), &report)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, errorbank.NotFound(fmt.Sprintf("no report recorded for %q", name), errorbank.WithDetail("scenario", name))
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load report", errorbank.WithCause(err))
	}
	return &report, nil
}

func (s *Service) check(def Definition, p Params) error {
	if err := s.validate.Struct(p); err != nil {
		return errorbank.BadRequest("invalid scenario parameters", errorbank.WithCause(err))
	}
	for _, field := range def.requires {
		switch field {
		case needStatus:
			if p.Status == "" {
				return errorbank.BadRequest("status is required", errorbank.WithDetail("scenario", def.Name))
			}
		case needNewStatus:
			if p.NewStatus == "" {
				return errorbank.BadRequest("new_status is required", errorbank.WithDetail("scenario", def.Name))
			}
		}
	}
	return nil
}

func (s *Service) publishCompleted(ctx context.Context, report *Report) {
	if s.publisher == nil {
		return
	}
	event := ScenarioCompletedEvent{
		RunID:       report.RunID,
		Scenario:    report.Scenario,
		Variant:     report.Variant,
		RoundTrips:  report.RoundTrips,
		Issues:      len(report.Issues),
		DurationMS:  report.Duration.Milliseconds(),
		CompletedAt: report.StartedAt.Add(report.Duration),
	}
	msg, err := messaging.NewEvent(ctx, EventScenarioCompleted, report.Scenario, event)
	if err != nil {
		s.logger.Error("encode scenario completed", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish scenario completed", zap.Error(err))
	}
}

// storeInCache keeps the report without its result payload.
func (s *Service) storeInCache(ctx context.Context, report *Report) error {
	cached := *report
	cached.Result = nil
	return cache.SetJSON(ctx, s.cache, cacheKey(report.Scenario), &cached, s.cacheTTL)
}

func cacheKey(name string) string {
	return "reports:" + name
}

// EventScenarioCompleted is the event type of ScenarioCompletedEvent.
const EventScenarioCompleted = "scenario.completed"

// ScenarioCompletedEvent is emitted after every scenario run.
type ScenarioCompletedEvent struct {
	RunID       string    `json:"run_id"`
	Scenario    string    `json:"scenario"`
	Variant     Variant   `json:"variant"`
	RoundTrips  int       `json:"round_trips"`
	Issues      int       `json:"issues"`
	DurationMS  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}
