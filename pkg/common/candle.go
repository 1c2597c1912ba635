package common

import (
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

// Candle is one immutable OHLC price window. OpenTime and CloseTime share a single time unit.
type Candle struct {
	OpenTime  int64       `json:"open_time"`
	Open      fixed.Point `json:"open"`
	High      fixed.Point `json:"high"`
	Low       fixed.Point `json:"low"`
	Close     fixed.Point `json:"close"`
	CloseTime int64       `json:"close_time"`
}

// Contains reports whether price was reached anywhere inside the window.
// The window carries no intra-candle ordering, so touching high and low are indistinguishable.
func (c Candle) Contains(price fixed.Point) bool {
	return c.Low.Lte(price) && price.Lte(c.High)
}

func (c Candle) Valid() bool {
	return c.Low.Lte(c.High) &&
		c.Low.Lte(c.Open) && c.Open.Lte(c.High) &&
		c.Low.Lte(c.Close) && c.Close.Lte(c.High) &&
		c.OpenTime <= c.CloseTime
}
