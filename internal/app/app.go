package app

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/audit"
	"github.com/Additional-Code/orderlens/internal/cache"
	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database"
	"github.com/Additional-Code/orderlens/internal/logger"
	"github.com/Additional-Code/orderlens/internal/messaging"
	"github.com/Additional-Code/orderlens/internal/observability"
	repositoryorder "github.com/Additional-Code/orderlens/internal/repository/order"
	"github.com/Additional-Code/orderlens/internal/scenario"
	grpcserver "github.com/Additional-Code/orderlens/internal/server/grpc"
	httpserver "github.com/Additional-Code/orderlens/internal/server/http"
	serviceorder "github.com/Additional-Code/orderlens/internal/service/order"
	servicescenario "github.com/Additional-Code/orderlens/internal/service/scenario"
	"github.com/Additional-Code/orderlens/internal/store"
	transporthttp "github.com/Additional-Code/orderlens/internal/transport/http"
	"github.com/Additional-Code/orderlens/internal/worker"
	workerscenario "github.com/Additional-Code/orderlens/internal/worker/scenario"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	store.Module,
	audit.Module,
	scenario.Module,
	repositoryorder.Module,
	serviceorder.Module,
	servicescenario.Module,
)

// Logging routes Fx lifecycle events through the application logger.
var Logging = fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	Logging,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	Logging,
	worker.Module,
	workerscenario.Module,
)

// Module is the default application wiring (HTTP and gRPC).
var Module = HTTP
