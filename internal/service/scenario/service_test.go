package scenario_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orderlens/internal/audit"
	"github.com/Additional-Code/orderlens/internal/cache"
	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database/dbtest"
	"github.com/Additional-Code/orderlens/internal/messaging"
	repo "github.com/Additional-Code/orderlens/internal/repository/order"
	"github.com/Additional-Code/orderlens/internal/scenario"
	"github.com/Additional-Code/orderlens/internal/seeder"
	service "github.com/Additional-Code/orderlens/internal/service/scenario"
	"github.com/Additional-Code/orderlens/internal/store"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

const (
	numOrders     = 4
	itemsPerOrder = 2
)

type recordingClient struct {
	mu       sync.Mutex
	messages []messaging.Message
}

func (c *recordingClient) Publish(_ context.Context, msg messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *recordingClient) Topic() string { return "orderlens.scenarios" }

func (c *recordingClient) events(t *testing.T) []service.ScenarioCompletedEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]service.ScenarioCompletedEvent, 0, len(c.messages))
	for _, m := range c.messages {
		require.Equal(t, service.EventScenarioCompleted, m.Event())
		var ev service.ScenarioCompletedEvent
		require.NoError(t, m.Decode(&ev))
		assert.Equal(t, ev.Scenario, string(m.Key))
		out = append(out, ev)
	}
	return out
}

type fixture struct {
	svc       *service.Service
	publisher *recordingClient
	db        *store.DB
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conns := dbtest.Open(t)

	cfg := config.Config{
		Seed:  config.Seed{Customers: 2, Products: 3, Orders: numOrders, ItemsPerOrder: itemsPerOrder},
		Audit: config.Audit{RepeatThreshold: 1, RoundTripBudget: 10},
		Cache: config.Cache{DefaultTTL: time.Minute},
	}

	_, err := seeder.New(cfg, conns, nil).Seed(context.Background())
	require.NoError(t, err)

	hook, err := store.NewHook()
	require.NoError(t, err)
	store.Instrument(conns, hook)

	auditor, err := audit.New(cfg, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := store.New(conns)
	publisher := &recordingClient{}
	svc := service.NewService(service.Deps{
		Scenarios:  scenario.New(db),
		Repository: repo.NewRepository(conns),
		Auditor:    auditor,
		Cache:      cache.NewRedisStore(client, time.Minute),
		Config:     cfg,
		Publisher:  publisher,
	})
	return fixture{svc: svc, publisher: publisher, db: db}
}

func requireKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, errorbank.KindOf(err))
}

func TestListNaiveFirst(t *testing.T) {
	f := newFixture(t)

	defs := f.svc.List()
	require.Len(t, defs, 11)
	assert.Equal(t, service.VariantNaive, defs[0].Variant)
	assert.Equal(t, service.VariantEfficient, defs[len(defs)-1].Variant)

	for _, d := range defs {
		if d.Counterpart == "" {
			continue
		}
		other, err := f.svc.Lookup(d.Counterpart)
		require.NoError(t, err, d.Name)
		assert.NotEqual(t, d.Variant, other.Variant, d.Name)
	}
}

func TestRunReportsRoundTripsAndIssues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.svc.Run(ctx, "orders-with-customers", service.Params{})
	require.NoError(t, err)

	assert.Equal(t, 1+numOrders, report.RoundTrips)
	assert.Len(t, report.Statements, 1+numOrders)
	assert.Equal(t, numOrders, report.Rows)
	assert.NotEmpty(t, report.RunID)

	var found bool
	for _, issue := range report.Issues {
		if issue.Type == "N_PLUS_ONE" {
			found = true
			assert.Equal(t, numOrders, issue.Count)
		}
	}
	assert.True(t, found, "expected an N_PLUS_ONE finding")

	cached, err := f.svc.LastReport(ctx, "orders-with-customers")
	require.NoError(t, err)
	assert.Equal(t, report.RunID, cached.RunID)
	assert.Equal(t, report.RoundTrips, cached.RoundTrips)
	assert.Nil(t, cached.Result)

	events := f.publisher.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "orders-with-customers", events[0].Scenario)
	assert.Equal(t, 1+numOrders, events[0].RoundTrips)
}

func TestRunEfficientVariantHasNoRepeats(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Run(context.Background(), "orders-with-details-eager", service.Params{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.RoundTrips)
	for _, issue := range report.Issues {
		assert.NotEqual(t, "N_PLUS_ONE", issue.Type)
	}
}

func TestCompareFullReport(t *testing.T) {
	f := newFixture(t)

	cmp, err := f.svc.Compare(context.Background(), "full-order-report", service.Params{})
	require.NoError(t, err)

	naive := 1 + 2*numOrders + numOrders*itemsPerOrder
	assert.Equal(t, naive, cmp.Naive.RoundTrips)
	assert.Equal(t, 3, cmp.Efficient.RoundTrips)
	assert.Equal(t, naive-3, cmp.Saved)
}

func TestCompareFromEfficientName(t *testing.T) {
	f := newFixture(t)

	cmp, err := f.svc.Compare(context.Background(), "update-order-statuses-batched", service.Params{IDs: []int64{1, 2, 3}, NewStatus: "shipped"})
	require.NoError(t, err)

	assert.Equal(t, "update-order-statuses", cmp.Naive.Scenario)
	assert.Equal(t, 3, cmp.Naive.RoundTrips)
	assert.Equal(t, 1, cmp.Efficient.RoundTrips)
}

func TestUpdateResultsCountStatementsAndRows(t *testing.T) {
	f := newFixture(t)

	cmp, err := f.svc.Compare(context.Background(), "update-order-statuses", service.Params{IDs: []int64{1, 2, 999}, NewStatus: "shipped"})
	require.NoError(t, err)

	naive, err := json.Marshal(cmp.Naive.Result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statements":3}`, string(naive))
	assert.Zero(t, cmp.Naive.Rows)

	efficient, err := json.Marshal(cmp.Efficient.Result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"statements":1,"updated":2}`, string(efficient))
	assert.Equal(t, 2, cmp.Efficient.Rows)
}

func TestCompareWithoutCounterpart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Compare(context.Background(), "orders-by-status", service.Params{Status: "pending"})
	requireKind(t, err, errorbank.KindUnprocessableEntity)
}

func TestRunErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, "no-such-scenario", service.Params{})
	requireKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.Run(ctx, "orders-by-status", service.Params{})
	requireKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.Run(ctx, "update-order-statuses", service.Params{IDs: []int64{1}})
	requireKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.Run(ctx, "orders-paginated", service.Params{Page: -1, Size: 5})
	requireKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.Run(ctx, "update-order-statuses", service.Params{IDs: []int64{0}, NewStatus: "x"})
	requireKind(t, err, errorbank.KindBadRequest)
}

func TestRunStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Execute(ctx, "DROP TABLE order_items"))

	_, err := f.svc.Run(ctx, "orders-with-details", service.Params{})
	requireKind(t, err, errorbank.KindInternal)
}

func TestLastReportMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LastReport(context.Background(), "orders-page")
	requireKind(t, err, errorbank.KindNotFound)

	_, err = f.svc.LastReport(context.Background(), "unknown")
	requireKind(t, err, errorbank.KindNotFound)
}

func TestPaginationPastMaxOffsetIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := service.Params{Page: math.MaxInt/2 + 1, Size: 2}

	var report *service.Report
	var err error
	require.NotPanics(t, func() {
		report, err = f.svc.Run(ctx, "orders-paginated", p)
	})
	require.NoError(t, err)
	assert.Zero(t, report.Rows)
	assert.Equal(t, 1, report.RoundTrips)

	report, err = f.svc.Run(ctx, "orders-page", p)
	require.NoError(t, err)
	assert.Zero(t, report.Rows)
	assert.Zero(t, report.RoundTrips)
}

func TestOmittedSizeUsesDefaultPageSize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	naive, err := f.svc.Run(ctx, "orders-paginated", service.Params{})
	require.NoError(t, err)
	assert.Equal(t, numOrders, naive.Rows)

	efficient, err := f.svc.Run(ctx, "orders-page", service.Params{})
	require.NoError(t, err)
	assert.Equal(t, numOrders, efficient.Rows)
	require.Len(t, efficient.Statements, 1)
	assert.Contains(t, efficient.Statements[0], fmt.Sprintf("LIMIT %d", service.DefaultPageSize))
}
