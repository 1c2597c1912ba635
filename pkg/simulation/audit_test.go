package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

func TestAudit(t *testing.T) {
	audit := NewAudit()
	assert.True(t, audit.MaxDrawdown().IsZero())
	assert.True(t, audit.Volatility().IsZero())

	for i, pnl := range []int{-5, 10, 4, 12} {
		audit.AddSnapshot(int64(i)*60_000, fixed.FromInt(pnl, 0))
	}

	from, to := audit.Span()
	assert.Equal(t, int64(0), from)
	assert.Equal(t, int64(180_000), to)
	assert.Equal(t, 4, audit.Len())

	// flat start counts as the first peak
	assert.True(t, audit.MaxDrawdown().Eq(fixed.FromInt(6, 0)), audit.MaxDrawdown().String())

	// changes 15, -6, 8: population deviation sqrt(686/9)
	assert.True(t, audit.Volatility().Eq(fixed.MustParse("8.7305")), audit.Volatility().String())
}
