package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/messaging"
)

// HandlerRegistration binds one event type to its handler.
type HandlerRegistration struct {
	Event   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs consume loops and dispatches events to their handlers.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	workers  config.Worker
	enabled  bool
	handlers map[string]messaging.Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.Start,
			OnStop:  engine.Stop,
		})
	}),
)

// NewEngine constructs the worker Engine. Later registrations for the same
// event replace earlier ones.
func NewEngine(p Params) *Engine {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Event == "" || r.Handler == nil {
			continue
		}
		handlers[r.Event] = r.Handler
	}

	return &Engine{
		client:   p.Client,
		logger:   p.Logger,
		workers:  p.Config.Messaging.Workers,
		enabled:  p.Config.Messaging.Driver != "noop" && p.Config.Messaging.Workers.Enabled,
		handlers: handlers,
	}
}

// Start launches the configured number of consume loops.
func (e *Engine) Start(context.Context) error {
	if !e.enabled {
		e.logger.Info("worker engine disabled")
		return nil
	}
	if len(e.handlers) == 0 {
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	n := max(e.workers.Concurrency, 1)
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go func(id int) {
			defer e.wg.Done()
			e.consumeLoop(ctx, id)
		}(i)
	}

	e.logger.Info("worker engine started", zap.Int("workers", n), zap.Int("events", len(e.handlers)))
	return nil
}

// Stop cancels the loops and waits for them, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// Dispatch hands msg to the handler registered for its event type.
// Messages of unknown type are skipped.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	handler, ok := e.handlers[msg.Event()]
	if !ok {
		e.logger.Debug("skipping unhandled event",
			zap.String("event", msg.Event()),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}
	return handler(ctx, msg)
}

func (e *Engine) consumeLoop(ctx context.Context, id int) {
	policy := newBackOff()
	log := e.logger.With(zap.Int("worker", id))

	for {
		err := e.client.Consume(ctx, e.Dispatch)
		if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
			return
		}

		wait := policy.NextBackOff()
		log.Error("consume loop error", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// newBackOff starts at one second, caps at thirty and never gives up.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
