package simulation

import (
	"context"

	"github.com/peter-kozarec/candlestep/pkg/bus"
	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/ledger"
	"github.com/peter-kozarec/candlestep/pkg/order"
)

// Strategy decides on new orders once per tick, after fills of that tick have been booked.
type Strategy interface {
	Update(ctx context.Context, session *Session) error
}

type StrategyFunc func(ctx context.Context, session *Session) error

func (f StrategyFunc) Update(ctx context.Context, session *Session) error {
	return f(ctx, session)
}

// Session is the view of the running core handed to a strategy.
type Session struct {
	symbol    string
	cursor    *datasource.Cursor
	bus       *bus.Bus
	orders    *order.Manager
	positions *ledger.Manager
}

func (s *Session) Symbol() string {
	return s.symbol
}

func (s *Session) Candle() common.Candle {
	return s.cursor.MustCurrent()
}

func (s *Session) Cursor() *datasource.Cursor {
	return s.cursor
}

func (s *Session) Bus() *bus.Bus {
	return s.bus
}

func (s *Session) Orders() *order.Manager {
	return s.orders
}

func (s *Session) Positions() *ledger.Manager {
	return s.positions
}

// ClosePositions queues orders that flatten every open side at the next candle's close.
func (s *Session) ClosePositions() error {
	return s.orders.ClosePositions(s.symbol, s.Candle(), s.positions.Exposures()...)
}
