package ledger

import (
	"errors"
	"fmt"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const priceScale = 4

var (
	ErrInvalidQuantity     = errors.New("fill quantity must be positive")
	ErrOverdraw            = errors.New("insufficient position to reduce")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Balance is the cash of one run. Margin is the collateral held against open short notional.
type Balance struct {
	Initial fixed.Point `json:"initial"`
	Current fixed.Point `json:"current"`
	Margin  fixed.Point `json:"margin"`
}

func (b Balance) PnL() fixed.Point {
	return b.Current.Sub(b.Initial).Round(priceScale)
}

// Position is the open quantity of one side and its weighted average entry price.
type Position struct {
	Side         common.PositionSide `json:"side"`
	Quantity     fixed.Point         `json:"quantity"`
	AveragePrice fixed.Point         `json:"averagePrice"`

	balance *Balance
}

func NewPosition(side common.PositionSide, balance *Balance) *Position {
	return &Position{
		Side:         side,
		Quantity:     fixed.Zero,
		AveragePrice: fixed.Zero,
		balance:      balance,
	}
}

// Validate checks a fill of quantity at price coming from an order of the given side.
func (p *Position) Validate(side common.OrderSide, quantity, price fixed.Point) error {
	if !quantity.IsPos() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	if side != p.Side.OpeningSide() {
		if quantity.Gt(p.Quantity) {
			return fmt.Errorf("%w: %s position holds %s, fill wants %s", ErrOverdraw, p.Side, p.Quantity, quantity)
		}
		return nil
	}
	if p.Side == common.PositionSideLong && p.balance != nil {
		if cost := quantity.Mul(price); cost.Gt(p.balance.Current) {
			return fmt.Errorf("%w: cost %s exceeds %s", ErrInsufficientBalance, cost, p.balance.Current)
		}
	}
	return nil
}

// Update validates and applies a fill, increasing when side opens this position and decreasing otherwise.
func (p *Position) Update(side common.OrderSide, quantity, price fixed.Point) error {
	if err := p.Validate(side, quantity, price); err != nil {
		return err
	}
	if side == p.Side.OpeningSide() {
		p.increase(quantity, price)
	} else {
		p.decrease(quantity, price)
	}
	return nil
}

// Increase adds quantity bought (long) or sold (short) at price.
func (p *Position) Increase(quantity, price fixed.Point) error {
	return p.Update(p.Side.OpeningSide(), quantity, price)
}

// Decrease removes quantity at price. It never reduces below zero.
func (p *Position) Decrease(quantity, price fixed.Point) error {
	return p.Update(p.Side.OpeningSide().Reverse(), quantity, price)
}

func (p *Position) increase(quantity, price fixed.Point) {
	total := p.Quantity.Add(quantity)
	p.AveragePrice = p.Quantity.Mul(p.AveragePrice).Add(quantity.Mul(price)).Div(total).Round(priceScale)
	p.Quantity = total
	if p.balance == nil {
		return
	}

	notional := quantity.Mul(price)
	switch p.Side {
	case common.PositionSideLong:
		p.balance.Current = p.balance.Current.Sub(notional)
	case common.PositionSideShort:
		p.balance.Margin = p.balance.Margin.Add(notional)
	}
}

func (p *Position) decrease(quantity, price fixed.Point) {
	p.Quantity = p.Quantity.Sub(quantity)
	if p.Quantity.IsZero() {
		p.AveragePrice = fixed.Zero
	}
	if p.balance == nil {
		return
	}

	notional := quantity.Mul(price)
	switch p.Side {
	case common.PositionSideLong:
		p.balance.Current = p.balance.Current.Add(notional)
	case common.PositionSideShort:
		p.balance.Margin = p.balance.Margin.Sub(notional)
		if p.Quantity.IsZero() {
			p.balance.Current = p.balance.Current.Add(p.balance.Margin)
			p.balance.Margin = fixed.Zero
		}
	}
}

func (p Position) IsActive() bool {
	return p.Quantity.IsPos()
}

func (p Position) Value(price fixed.Point) fixed.Point {
	return p.Quantity.Mul(price).Round(priceScale)
}

func (p Position) PnL(price fixed.Point) fixed.Point {
	if p.Side == common.PositionSideShort {
		return p.Quantity.Mul(p.AveragePrice.Sub(price)).Round(priceScale)
	}
	return p.Quantity.Mul(price.Sub(p.AveragePrice)).Round(priceScale)
}

// snapshot detaches the position from the balance it books against.
func (p Position) snapshot() Position {
	p.balance = nil
	return p
}
