package http

import (
	"go.uber.org/fx"

	metricstransport "github.com/Additional-Code/meridian/internal/transport/http/metrics"
	ordertransport "github.com/Additional-Code/meridian/internal/transport/http/order"
	stocktransport "github.com/Additional-Code/meridian/internal/transport/http/stock"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	stocktransport.Module,
	metricstransport.Module,
)
