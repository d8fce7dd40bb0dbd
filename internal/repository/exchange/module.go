package exchange

import "go.uber.org/fx"

// Module provides the exchange repository to Fx.
var Module = fx.Provide(NewRepository)
