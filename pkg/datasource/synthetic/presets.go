package synthetic

import (
	"time"

	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

// NewEURUSDGenerator mimics EUR/USD minute candles: low volatility, five price digits.
func NewEURUSDGenerator(seed int64, options ...Option) *CandleGenerator {
	const (
		eurUsdStartPrice = 1.0550
		eurUsdVolatility = 0.07
		eurUsdDigits     = 5
	)

	return NewCandleGenerator(seed, fixed.FromFloat64(eurUsdStartPrice), time.Minute,
		append([]Option{
			WithVolatility(eurUsdVolatility),
			WithPriceDigits(eurUsdDigits),
		}, options...)...)
}

// NewCryptoGenerator mimics a volatile crypto pair quoted with two digits.
func NewCryptoGenerator(seed int64, startPrice fixed.Point, interval time.Duration, options ...Option) *CandleGenerator {
	const cryptoVolatility = 0.8

	return NewCandleGenerator(seed, startPrice, interval,
		append([]Option{
			WithVolatility(cryptoVolatility),
		}, options...)...)
}
