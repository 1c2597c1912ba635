package simulation

import (
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

type pnlSnapshot struct {
	t   int64
	pnl fixed.Point
}

// Audit keeps the per-tick unrealized PnL curve of a run.
type Audit struct {
	snapshots []pnlSnapshot
}

func NewAudit() *Audit {
	return &Audit{}
}

func (a *Audit) AddSnapshot(t int64, pnl fixed.Point) {
	a.snapshots = append(a.snapshots, pnlSnapshot{t: t, pnl: pnl})
}

func (a *Audit) Len() int {
	return len(a.snapshots)
}

// MaxDrawdown is the largest peak-to-trough fall of the curve, starting from a flat account.
func (a *Audit) MaxDrawdown() fixed.Point {
	curve := make([]fixed.Point, 0, len(a.snapshots)+1)
	curve = append(curve, fixed.Zero)
	for _, snapshot := range a.snapshots {
		curve = append(curve, snapshot.pnl)
	}
	return fixed.MaxDrawdown(curve)
}

// Volatility is the standard deviation of the tick-over-tick PnL changes, rounded to 4 places.
func (a *Audit) Volatility() fixed.Point {
	if len(a.snapshots) < 2 {
		return fixed.Zero
	}
	changes := make([]fixed.Point, 0, len(a.snapshots)-1)
	for i := 1; i < len(a.snapshots); i++ {
		changes = append(changes, a.snapshots[i].pnl.Sub(a.snapshots[i-1].pnl))
	}
	return fixed.StdDev(changes, fixed.Mean(changes)).Round(4)
}

func (a *Audit) Span() (int64, int64) {
	if len(a.snapshots) == 0 {
		return 0, 0
	}
	return a.snapshots[0].t, a.snapshots[len(a.snapshots)-1].t
}
