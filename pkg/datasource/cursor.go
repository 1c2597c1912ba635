package datasource

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/candlestep/pkg/common"
)

var (
	ErrNotStarted    = errors.New("cursor has not been stepped yet")
	ErrExhausted     = errors.New("cursor is past the end of the series")
	ErrNotMonotonic  = errors.New("candle times are not monotonically increasing")
	ErrInvalidCandle = errors.New("invalid candle")
)

const beforeFirst = -1

// Cursor walks a fixed candle series one tick at a time.
type Cursor struct {
	candles []common.Candle
	idx     int
}

func NewCursor(candles []common.Candle) *Cursor {
	return &Cursor{
		candles: candles,
		idx:     beforeFirst,
	}
}

// Step advances by one candle and reports whether a candle is available. Once it returns
// false the cursor is terminal and stays there.
func (c *Cursor) Step() bool {
	if c.idx < len(c.candles) {
		c.idx++
	}
	return c.idx < len(c.candles)
}

func (c *Cursor) Current() (common.Candle, error) {
	switch {
	case c.idx == beforeFirst:
		return common.Candle{}, ErrNotStarted
	case c.idx >= len(c.candles):
		return common.Candle{}, ErrExhausted
	}
	return c.candles[c.idx], nil
}

// MustCurrent is Current for callers that already checked Step; a misuse is a programming error.
func (c *Cursor) MustCurrent() common.Candle {
	candle, err := c.Current()
	if err != nil {
		panic(fmt.Sprintf("cursor at index %d: %v", c.idx, err))
	}
	return candle
}

// PeekNext returns the candle the next Step would expose without moving.
func (c *Cursor) PeekNext() (common.Candle, bool) {
	next := c.idx + 1
	if next >= len(c.candles) {
		return common.Candle{}, false
	}
	return c.candles[next], true
}

// Last returns the most recently consumed candle, which stays valid after the series ends.
func (c *Cursor) Last() (common.Candle, bool) {
	if c.idx == beforeFirst || len(c.candles) == 0 {
		return common.Candle{}, false
	}
	return c.candles[min(c.idx, len(c.candles)-1)], true
}

func (c *Cursor) Index() int {
	return c.idx
}

func (c *Cursor) Len() int {
	return len(c.candles)
}

func (c *Cursor) Done() bool {
	return c.idx >= len(c.candles)
}

// Validate checks the series is well formed and strictly increasing in open time.
func Validate(candles []common.Candle) error {
	for idx, candle := range candles {
		if !candle.Valid() {
			return fmt.Errorf("%w at index %d", ErrInvalidCandle, idx)
		}
		if idx > 0 && candle.OpenTime <= candles[idx-1].OpenTime {
			return fmt.Errorf("%w at index %d", ErrNotMonotonic, idx)
		}
	}
	return nil
}
