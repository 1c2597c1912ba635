package datasource

import (
	"context"
	"time"

	"github.com/peter-kozarec/candlestep/pkg/common"
)

// Selection names the slice of history a backtest runs on.
type Selection struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
}

// Loader hands over candles already filtered to the selection and ordered by time.
type Loader interface {
	Load(ctx context.Context, selection Selection) ([]common.Candle, error)
}
