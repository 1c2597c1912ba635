package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/order"
	"github.com/peter-kozarec/candlestep/pkg/simulation"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

// Bracket enters long every few candles and protects each entry with a stop loss and a take
// profit placed around the average entry price.
type Bracket struct {
	logger *zap.Logger

	every      int
	allocation fixed.Point
	stopLoss   fixed.Point
	takeProfit fixed.Point
}

func NewBracket(logger *zap.Logger) *Bracket {
	return &Bracket{
		logger:     logger.Named("strategy.bracket"),
		every:      30,
		allocation: fixed.MustParse("0.1"),
		stopLoss:   fixed.MustParse("0.01"),
		takeProfit: fixed.MustParse("0.02"),
	}
}

func (b *Bracket) Update(_ context.Context, session *simulation.Session) error {
	orders := session.Orders()
	if orders.Len() > 0 {
		return nil
	}

	c := session.Candle()
	long := session.Positions().Position(common.PositionSideLong)

	if long.IsActive() {
		stopLoss := long.AveragePrice.Mul(fixed.One.Sub(b.stopLoss)).Round(4)
		takeProfit := long.AveragePrice.Mul(fixed.One.Add(b.takeProfit)).Round(4)
		exit, err := order.NewOneCancelOther(session.Symbol(), common.OrderSideBuy, long.Quantity, c.Close, stopLoss, takeProfit,
			order.WithCreatedAt(c.CloseTime),
			order.WithPriceAtCreation(c.Close),
			order.WithReason("bracket exit"))
		if err != nil {
			return err
		}
		return orders.AddOrder(exit)
	}

	if session.Cursor().Index()%b.every != 0 {
		return nil
	}

	quantity, err := order.QuantityFromNotional(session.Positions().Balance().Current.Mul(b.allocation), c.Close)
	if err != nil {
		return err
	}
	if !quantity.IsPos() {
		b.logger.Debug("balance too small to enter", zap.String("close", c.Close.String()))
		return nil
	}

	entry, err := order.NewMarket(session.Symbol(), common.OrderSideBuy, quantity,
		order.WithCreatedAt(c.CloseTime),
		order.WithPriceAtCreation(c.Close),
		order.WithReason("bracket entry"))
	if err != nil {
		return err
	}
	return orders.AddOrder(entry)
}
