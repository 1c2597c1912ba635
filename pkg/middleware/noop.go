package middleware

import (
	"github.com/peter-kozarec/candlestep/pkg/bus"
)

var Noop bus.Handler = func(bus.Event) error { return nil }
