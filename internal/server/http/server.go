package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database"
	"github.com/Additional-Code/orderlens/internal/observability"
	"github.com/Additional-Code/orderlens/internal/presentation/http/response"
	"github.com/Additional-Code/orderlens/internal/store"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// NewEcho configures the Echo router with basic middleware.
func NewEcho(cfg config.Config, obs *observability.Manager, conns *database.Connections, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.Use(RoundTrips(logger, cfg.Audit.RoundTripBudget))

	e.GET("/health", health(conns))

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// health reports whether the database answers pings.
func health(conns *database.Connections) echo.HandlerFunc {
	return func(c echo.Context) error {
		b := response.New(c)
		if conns != nil {
			if err := conns.Ping(c.Request().Context()); err != nil {
				return b.WithError(errorbank.Unavailable("database unavailable", errorbank.WithCause(err))).Build()
			}
		}
		return b.WithData(map[string]string{"status": "ok"}).Build()
	}
}

// errorHandler renders errors that escape handlers, such as unknown routes,
// in the same envelope as handled ones.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
			_ = c.JSON(he.Code, response.Envelope{Error: &response.ErrorBody{
				Kind:    strings.ToLower(strings.ReplaceAll(http.StatusText(he.Code), " ", "_")),
				Message: fmt.Sprint(he.Message),
			}})
			return
		}
		logger.Error("http request failed", zap.Error(err), zap.String("path", c.Path()))
		_ = response.New(c).WithError(err).Build()
	}
}

// RoundTrips attaches a statement tally to every request and logs the
// number of database round trips the request cost. Requests above budget
// are logged at warn level.
func RoundTrips(logger *zap.Logger, budget int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, tally := store.WithTally(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)

			calls := tally.Calls()
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("round_trips", calls),
			}
			if budget > 0 && calls > budget {
				logger.Warn("request exceeded round-trip budget", append(fields, zap.Int("budget", budget))...)
			} else {
				logger.Debug("request served", fields...)
			}
			return err
		}
	}
}

// Run binds the HTTP listener on start, so a taken port fails startup,
// and shuts the server down gracefully on stop.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			logger.Info("starting HTTP server", zap.String("addr", lis.Addr().String()))
			go func() {
				if err := server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
