package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peter-kozarec/candlestep/pkg/common"
)

var ErrInvalidPeriod = errors.New("invalid resample period")

// Resample merges candles into buckets of period aligned to the unix epoch. A bucket opens with
// its first candle and closes with its last one, so a partial bucket at either end keeps the
// times it actually covers.
func Resample(candles []common.Candle, period time.Duration) ([]common.Candle, error) {
	periodMs := period.Milliseconds()
	if periodMs <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}

	var resampled []common.Candle
	bucketStart := int64(-1)
	for _, c := range candles {
		start := c.OpenTime - ((c.OpenTime%periodMs)+periodMs)%periodMs
		if len(resampled) == 0 || start != bucketStart {
			bucketStart = start
			resampled = append(resampled, c)
			continue
		}

		bar := &resampled[len(resampled)-1]
		if c.High.Gt(bar.High) {
			bar.High = c.High
		}
		if c.Low.Lt(bar.Low) {
			bar.Low = c.Low
		}
		bar.Close = c.Close
		bar.CloseTime = c.CloseTime
	}
	return resampled, nil
}

// Resampler loads candles from another loader and hands them over resampled.
type Resampler struct {
	loader Loader
	period time.Duration
}

func NewResampler(loader Loader, period time.Duration) *Resampler {
	return &Resampler{
		loader: loader,
		period: period,
	}
}

func (r *Resampler) Load(ctx context.Context, selection Selection) ([]common.Candle, error) {
	candles, err := r.loader.Load(ctx, selection)
	if err != nil {
		return nil, err
	}
	return Resample(candles, r.period)
}
