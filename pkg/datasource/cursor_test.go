package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

func candle(openTime int64, price int) common.Candle {
	p := fixed.FromInt(price, 0)
	return common.Candle{
		OpenTime:  openTime,
		Open:      p,
		High:      p.Add(fixed.One),
		Low:       p.Sub(fixed.One),
		Close:     p,
		CloseTime: openTime + 59,
	}
}

func TestCursor_CurrentBeforeStep(t *testing.T) {
	c := NewCursor([]common.Candle{candle(0, 100)})

	_, err := c.Current()
	assert.ErrorIs(t, err, ErrNotStarted)

	_, ok := c.Last()
	assert.False(t, ok)
}

func TestCursor_StepAndCurrent(t *testing.T) {
	candles := []common.Candle{candle(0, 100), candle(60, 101), candle(120, 102)}
	c := NewCursor(candles)

	for i, want := range candles {
		require.True(t, c.Step(), "step %d", i)
		got, err := c.Current()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		again, _ := c.Current()
		assert.Equal(t, got, again, "Current must be repeatable")
		assert.Equal(t, i, c.Index())
	}

	assert.False(t, c.Step())
	assert.False(t, c.Step(), "end of series is terminal")
	assert.True(t, c.Done())

	_, err := c.Current()
	assert.ErrorIs(t, err, ErrExhausted)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, candles[2], last)
}

func TestCursor_PeekNext(t *testing.T) {
	candles := []common.Candle{candle(0, 100), candle(60, 101)}
	c := NewCursor(candles)

	next, ok := c.PeekNext()
	require.True(t, ok)
	assert.Equal(t, candles[0], next)
	assert.Equal(t, beforeFirst, c.Index(), "peek must not advance")

	require.True(t, c.Step())
	next, ok = c.PeekNext()
	require.True(t, ok)
	assert.Equal(t, candles[1], next)

	require.True(t, c.Step())
	_, ok = c.PeekNext()
	assert.False(t, ok)
}

func TestCursor_Empty(t *testing.T) {
	c := NewCursor(nil)
	assert.False(t, c.Step())
	assert.Equal(t, 0, c.Len())
	_, err := c.Current()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCursor_MustCurrentPanics(t *testing.T) {
	c := NewCursor([]common.Candle{candle(0, 100)})
	assert.Panics(t, func() { c.MustCurrent() })
	c.Step()
	assert.NotPanics(t, func() { c.MustCurrent() })
}

func TestCursor_Validate(t *testing.T) {
	assert.NoError(t, Validate([]common.Candle{candle(0, 100), candle(60, 100)}))
	assert.ErrorIs(t, Validate([]common.Candle{candle(60, 100), candle(60, 100)}), ErrNotMonotonic)

	broken := candle(0, 100)
	broken.High = fixed.Zero
	assert.ErrorIs(t, Validate([]common.Candle{broken}), ErrInvalidCandle)
}
