package synthetic

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const (
	secondsPerYear    = 365.25 * 24 * 3600
	defaultMaxCandles = 100_000
)

var (
	ErrInvalidInterval = errors.New("candle interval must be positive")
	ErrInvalidPrice    = errors.New("start price must be positive")
)

type Option func(*CandleGenerator)

// WithDrift sets the annualized drift of the price path.
func WithDrift(mu float64) Option {
	return func(g *CandleGenerator) {
		g.mu = mu
	}
}

// WithVolatility sets the annualized volatility of the price path.
func WithVolatility(sigma float64) Option {
	return func(g *CandleGenerator) {
		g.sigma = sigma
	}
}

// WithSubsteps sets how many path points make up one candle.
func WithSubsteps(substeps int) Option {
	return func(g *CandleGenerator) {
		if substeps > 0 {
			g.substeps = substeps
		}
	}
}

func WithPriceDigits(digits int) Option {
	return func(g *CandleGenerator) {
		g.digits = digits
	}
}

// WithMaxCandles bounds selections without an end time.
func WithMaxCandles(maxCandles int) Option {
	return func(g *CandleGenerator) {
		g.maxCandles = maxCandles
	}
}

// CandleGenerator produces candles from a geometric brownian motion. The same seed and selection
// always yield the same series.
type CandleGenerator struct {
	seed       int64
	startPrice fixed.Point
	interval   time.Duration

	mu         float64
	sigma      float64
	substeps   int
	digits     int
	maxCandles int
}

func NewCandleGenerator(seed int64, startPrice fixed.Point, interval time.Duration, options ...Option) *CandleGenerator {
	g := &CandleGenerator{
		seed:       seed,
		startPrice: startPrice,
		interval:   interval,
		mu:         0,
		sigma:      0.2,
		substeps:   16,
		digits:     2,
		maxCandles: defaultMaxCandles,
	}

	for _, option := range options {
		option(g)
	}

	return g
}

func (g *CandleGenerator) Load(ctx context.Context, selection datasource.Selection) ([]common.Candle, error) {
	if g.interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if !g.startPrice.IsPos() {
		return nil, ErrInvalidPrice
	}

	rng := rand.New(rand.NewSource(g.seed)) // #nosec G404

	step := g.interval / time.Duration(g.substeps)
	deltaT := step.Seconds() / secondsPerYear
	drift := (g.mu - 0.5*g.sigma*g.sigma) * deltaT
	diffusion := g.sigma * math.Sqrt(deltaT)

	price, _ := g.startPrice.Float64()
	openTime := selection.From
	if openTime.IsZero() {
		openTime = time.UnixMilli(0).UTC()
	}

	var candles []common.Candle
	for len(candles) < g.maxCandles {
		if !selection.To.IsZero() && openTime.After(selection.To) {
			break
		}
		if len(candles)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		open, high, low := price, price, price
		for i := 0; i < g.substeps; i++ {
			price *= math.Exp(drift + diffusion*rng.NormFloat64())
			high = math.Max(high, price)
			low = math.Min(low, price)
		}

		candles = append(candles, common.Candle{
			OpenTime:  openTime.UnixMilli(),
			Open:      g.round(open),
			High:      g.round(high),
			Low:       g.round(low),
			Close:     g.round(price),
			CloseTime: openTime.Add(g.interval).UnixMilli() - 1,
		})
		openTime = openTime.Add(g.interval)
	}

	return candles, datasource.Validate(candles)
}

func (g *CandleGenerator) round(price float64) fixed.Point {
	return fixed.FromFloat64(price).Round(g.digits)
}
