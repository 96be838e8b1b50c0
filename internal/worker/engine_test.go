package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/messaging"
)

// feedClient delivers its messages once, then fails every later Consume
// until the context ends.
type feedClient struct {
	mu       sync.Mutex
	messages []messaging.Message
	calls    int
}

func (c *feedClient) Publish(context.Context, messaging.Message) error { return nil }

func (c *feedClient) Consume(ctx context.Context, h messaging.Handler) error {
	c.mu.Lock()
	c.calls++
	pending := c.messages
	c.messages = nil
	c.mu.Unlock()

	for _, m := range pending {
		if err := h(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *feedClient) Topic() string { return "orderlens.scenarios" }

func event(name string) messaging.Message {
	return messaging.Message{Headers: map[string]string{messaging.EventHeader: name}}
}

func enabledConfig() config.Config {
	return config.Config{Messaging: config.Messaging{
		Driver:  "kafka",
		Workers: config.Worker{Enabled: true, Concurrency: 1},
	}}
}

func TestEngineDispatchesByEvent(t *testing.T) {
	got := make(chan string, 2)
	client := &feedClient{messages: []messaging.Message{event("scenario.completed"), event("order.created")}}
	engine := NewEngine(Params{
		Client: client,
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{{
			Event: "scenario.completed",
			Handler: func(_ context.Context, m messaging.Message) error {
				got <- m.Event()
				return nil
			},
		}},
	})

	require.NoError(t, engine.Start(context.Background()))
	select {
	case name := <-got:
		assert.Equal(t, "scenario.completed", name)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	require.NoError(t, engine.Stop(context.Background()))
	assert.Empty(t, got, "unhandled events are skipped")
}

func TestEngineDisabled(t *testing.T) {
	cfg := enabledConfig()
	cfg.Messaging.Driver = "noop"
	client := &feedClient{}
	engine := NewEngine(Params{
		Client:        client,
		Logger:        zap.NewNop(),
		Config:        cfg,
		Registrations: []HandlerRegistration{{Event: "scenario.completed", Handler: func(context.Context, messaging.Message) error { return nil }}},
	})

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Stop(context.Background()))
	assert.Zero(t, client.calls)
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	engine := NewEngine(Params{
		Logger: zap.NewNop(),
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Event: "scenario.completed", Handler: func(context.Context, messaging.Message) error { return boom }},
			{Event: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})

	assert.ErrorIs(t, engine.Dispatch(context.Background(), event("scenario.completed")), boom)
	assert.NoError(t, engine.Dispatch(context.Background(), event("other")))
}

func TestBackOffGrowsAndCaps(t *testing.T) {
	b := newBackOff()

	var last time.Duration
	for i := 0; i < 20; i++ {
		next := b.NextBackOff()
		assert.NotEqual(t, backoff.Stop, next, "consume retries never give up")
		assert.LessOrEqual(t, next, 45*time.Second)
		last = next
	}
	assert.Greater(t, last, time.Second)
}
