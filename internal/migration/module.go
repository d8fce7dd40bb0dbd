package migration

import "go.uber.org/fx"

// Module exports the migrator constructor.
var Module = fx.Provide(New)
