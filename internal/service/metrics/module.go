package metrics

import "go.uber.org/fx"

// Module exports the metrics service constructors.
var Module = fx.Provide(NewService)
