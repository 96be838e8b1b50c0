package order

import "go.uber.org/fx"

// Module provides the order handler and mounts its routes on the server.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
