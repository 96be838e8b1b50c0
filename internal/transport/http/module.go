package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/orderlens/internal/transport/http/order"
	scenariotransport "github.com/Additional-Code/orderlens/internal/transport/http/scenario"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	scenariotransport.Module,
)
