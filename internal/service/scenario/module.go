package scenario

import "go.uber.org/fx"

// Module provides the scenario service to Fx.
var Module = fx.Provide(NewService)
