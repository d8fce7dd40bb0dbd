package seeder

import "go.uber.org/fx"

// Module exports the seeder constructor.
var Module = fx.Provide(New)
