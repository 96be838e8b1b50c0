package scenario

import "go.uber.org/fx"

// Module provides the scenarios over the store's Querier.
var Module = fx.Provide(New)
