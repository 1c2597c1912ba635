package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/ledger"
	"github.com/peter-kozarec/candlestep/pkg/order"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

func p(s string) fixed.Point {
	return fixed.MustParse(s)
}

func series(windows ...[3]string) *datasource.Cursor {
	candles := make([]common.Candle, 0, len(windows))
	for i, w := range windows {
		candles = append(candles, common.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      p(w[2]),
			High:      p(w[1]),
			Low:       p(w[0]),
			Close:     p(w[2]),
			CloseTime: int64(i+1)*60_000 - 1,
		})
	}
	return datasource.NewCursor(candles)
}

func testConfiguration() Configuration {
	cfg := DefaultConfiguration()
	cfg.InitialBalance = p("10000")
	cfg.Symbol = "X"
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestSimulator_BuyAndHold(t *testing.T) {
	cursor := series([3]string{"99", "101", "100"}, [3]string{"105", "115", "110"}, [3]string{"115", "125", "120"})

	strategy := StrategyFunc(func(_ context.Context, s *Session) error {
		if s.Cursor().Index() != 0 {
			return nil
		}
		o, err := order.NewMarket(s.Symbol(), common.OrderSideBuy, fixed.One)
		if err != nil {
			return err
		}
		return s.Orders().AddOrder(o)
	})

	sim := NewSimulator(zap.NewNop(), testConfiguration(), cursor, strategy, WithLogOptions(bus.WithClock(fixedClock)))
	report, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.FinalBalance.Eq(p("10010")), "got %s", report.FinalBalance)
	assert.True(t, report.RealizedPnL.Eq(p("10")))
	assert.True(t, report.TotalReturn.Eq(p("0.1")))
	assert.Equal(t, 1, report.Fills)
	assert.Equal(t, 1, report.Reductions)
	assert.Equal(t, 3, report.Ticks)
	assert.Equal(t, sim.Log().Len(), report.Events)
	assert.Equal(t, int64(3), sim.Log().MaxTick())

	events := sim.Log().Events()
	assert.Equal(t, bus.TopicSimulationFinished, events[len(events)-1].Type)

	var ticks, fills int
	for _, event := range events {
		switch event.Type {
		case bus.TopicPriceTick:
			ticks++
		case bus.TopicOrderFilled:
			fills++
			filled := event.Data.(order.Filled)
			assert.True(t, filled.Order.FillPrice.Eq(p("110")))
			assert.Equal(t, int64(2), filled.Tick)
		}
	}
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, fills)
}

func TestSimulator_OneCancelOtherExit(t *testing.T) {
	cursor := series(
		[3]string{"99", "101", "100"},
		[3]string{"95", "105", "100"},
		[3]string{"105", "112", "111"},
		[3]string{"85", "95", "90"},
	)

	strategy := StrategyFunc(func(_ context.Context, s *Session) error {
		if s.Cursor().Index() != 0 {
			return nil
		}
		entry, err := order.NewMarket(s.Symbol(), common.OrderSideBuy, fixed.One)
		if err != nil {
			return err
		}
		exit, err := order.NewOneCancelOther(s.Symbol(), common.OrderSideBuy, fixed.One, p("100"), p("90"), p("110"))
		if err != nil {
			return err
		}
		return s.Orders().AddOrders(entry, exit)
	})

	sim := NewSimulator(zap.NewNop(), testConfiguration(), cursor, strategy)
	report, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.FinalBalance.Eq(p("10010")), "got %s", report.FinalBalance)
	assert.Equal(t, 2, report.Fills)
	assert.Equal(t, 0, report.CancelledAtEnd)
}

func TestSimulator_StrategyClosesPositions(t *testing.T) {
	cursor := series([3]string{"99", "101", "100"}, [3]string{"95", "105", "100"}, [3]string{"75", "85", "80"}, [3]string{"75", "85", "80"})

	strategy := StrategyFunc(func(_ context.Context, s *Session) error {
		switch s.Cursor().Index() {
		case 0:
			o, err := order.NewMarket(s.Symbol(), common.OrderSideSell, p("2"))
			if err != nil {
				return err
			}
			return s.Orders().AddOrder(o)
		case 2:
			return s.ClosePositions()
		}
		return nil
	})

	sim := NewSimulator(zap.NewNop(), testConfiguration(), cursor, strategy)
	report, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.RealizedPnL.Eq(p("40")), "got %s", report.RealizedPnL)
	assert.Equal(t, 1, report.LiquidationFills)
	assert.Equal(t, 2, report.Fills)
}

func TestSimulator_OverdrawFailsRun(t *testing.T) {
	cursor := series([3]string{"99", "101", "100"}, [3]string{"99", "101", "100"})

	strategy := StrategyFunc(func(_ context.Context, s *Session) error {
		if s.Cursor().Index() != 0 {
			return nil
		}
		o, err := order.NewMarket(s.Symbol(), common.OrderSideSell, fixed.One, order.WithPositionSide(common.PositionSideLong))
		if err != nil {
			return err
		}
		return s.Orders().AddOrder(o)
	})

	sim := NewSimulator(zap.NewNop(), testConfiguration(), cursor, strategy)
	_, err := sim.Run(context.Background())
	assert.ErrorIs(t, err, ledger.ErrOverdraw)
	assert.Equal(t, 1, sim.Orders().Len())
	assert.True(t, sim.Positions().Balance().Current.Eq(p("10000")))

	_, err = sim.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestSimulator_EmptySeries(t *testing.T) {
	sim := NewSimulator(zap.NewNop(), testConfiguration(), datasource.NewCursor(nil), StrategyFunc(func(context.Context, *Session) error {
		t.Fatal("strategy must not run without candles")
		return nil
	}))

	report, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Ticks)
	assert.True(t, report.FinalBalance.Eq(p("10000")))
}

func TestSimulator_IndependentRuns(t *testing.T) {
	run := func() *Simulator {
		sim := NewSimulator(zap.NewNop(), testConfiguration(),
			series([3]string{"99", "101", "100"}, [3]string{"99", "101", "100"}),
			StrategyFunc(func(context.Context, *Session) error { return nil }))
		_, err := sim.Run(context.Background())
		require.NoError(t, err)
		return sim
	}

	a, b := run(), run()
	assert.Equal(t, a.Log().Len(), b.Log().Len())
	for i, event := range a.Log().Events() {
		assert.Equal(t, event.ID, b.Log().Events()[i].ID)
	}
	assert.NotEqual(t, a.ExecutionID(), b.ExecutionID())
}

func TestSimulator_GateHandshake(t *testing.T) {
	gate := NewChannelGate()
	cursor := series([3]string{"99", "101", "100"}, [3]string{"99", "101", "100"}, [3]string{"99", "101", "100"})
	sim := NewSimulator(zap.NewNop(), testConfiguration(), cursor, StrategyFunc(func(context.Context, *Session) error { return nil }), WithGate(gate))

	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(context.Background())
		done <- err
	}()

	for i := int64(1); i <= 3; i++ {
		require.Eventually(t, func() bool {
			return gate.State() == GateAwaiting && gate.Waits() == i
		}, time.Second, time.Millisecond)
		gate.Continue()
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulation did not finish")
	}
	assert.Equal(t, GateReady, gate.State())
}

func TestSimulator_GateRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gate := NewChannelGate()
	sim := NewSimulator(zap.NewNop(), testConfiguration(), series([3]string{"99", "101", "100"}), StrategyFunc(func(context.Context, *Session) error { return nil }), WithGate(gate))

	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return gate.State() == GateAwaiting }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("simulation did not stop")
	}
}

func TestSimulator_InvalidConfigurationFailsRun(t *testing.T) {
	cfg := testConfiguration()
	cfg.InitialBalance = fixed.Zero

	sim := NewSimulator(zap.NewNop(), cfg, series([3]string{"99", "101", "100"}), StrategyFunc(func(context.Context, *Session) error {
		t.Fatal("strategy must not run with an invalid configuration")
		return nil
	}))

	_, err := sim.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, sim.Log().Len())
}

func TestTotalReturn(t *testing.T) {
	assert.True(t, totalReturn(ledger.Balance{Initial: fixed.Zero, Current: p("5")}).IsZero())
	assert.True(t, totalReturn(ledger.Balance{Initial: p("10000"), Current: p("10010")}).Eq(p("0.1")))
}
