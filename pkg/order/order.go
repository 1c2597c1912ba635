package order

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/utility"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

var (
	ErrUnknownKind     = errors.New("unknown order kind")
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrInvalidPrice    = errors.New("order price must be positive")
	ErrNoLegs          = errors.New("one-cancel-other order needs a stop loss or a take profit")
)

const quantityScale = 4

// Order is a pending instruction to trade. It stays Open until a candle fills it or
// the manager cancels it.
type Order struct {
	ID           string
	Kind         Kind
	Status       Status
	Side         common.OrderSide
	PositionSide common.PositionSide
	Symbol       string
	Quantity     fixed.Point
	Price        fixed.Point

	CreatedAt int64
	FilledAt  int64
	FillPrice fixed.Point

	PriceAtCreation fixed.Point
	Reason          string

	StopLoss           fixed.Point
	TakeProfit         fixed.Point
	StopLossQuantity   fixed.Point
	TakeProfitQuantity fixed.Point

	// GroupID links the legs spawned by one one-cancel-other order; a fill of one cancels the rest.
	GroupID string

	positionSideSet bool
}

type Option func(*Order)

func WithPositionSide(side common.PositionSide) Option {
	return func(o *Order) {
		o.PositionSide = side
		o.positionSideSet = true
	}
}

func WithCreatedAt(createdAt int64) Option {
	return func(o *Order) {
		o.CreatedAt = createdAt
	}
}

func WithReason(reason string) Option {
	return func(o *Order) {
		o.Reason = reason
	}
}

func WithPriceAtCreation(price fixed.Point) Option {
	return func(o *Order) {
		o.PriceAtCreation = price
	}
}

func WithStopLossQuantity(quantity fixed.Point) Option {
	return func(o *Order) {
		o.StopLossQuantity = quantity
	}
}

func WithTakeProfitQuantity(quantity fixed.Point) Option {
	return func(o *Order) {
		o.TakeProfitQuantity = quantity
	}
}

func WithID(id string) Option {
	return func(o *Order) {
		o.ID = id
	}
}

func newOrder(kind Kind, symbol string, side common.OrderSide, quantity, price fixed.Point, options ...Option) (*Order, error) {
	o := &Order{
		ID:       utility.NewShortID(),
		Kind:     kind,
		Status:   StatusOpen,
		Side:     side,
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
		FilledAt: -1,
	}

	for _, option := range options {
		option(o)
	}

	if !o.positionSideSet {
		o.PositionSide = side.PositionSide()
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewMarket fills at the close of the next processed candle.
func NewMarket(symbol string, side common.OrderSide, quantity fixed.Point, options ...Option) (*Order, error) {
	return newOrder(KindMarket, symbol, side, quantity, fixed.Zero, options...)
}

func NewLimit(symbol string, side common.OrderSide, quantity, price fixed.Point, options ...Option) (*Order, error) {
	return newOrder(KindLimit, symbol, side, quantity, price, options...)
}

func NewStop(symbol string, side common.OrderSide, quantity, price fixed.Point, options ...Option) (*Order, error) {
	return newOrder(KindStop, symbol, side, quantity, price, options...)
}

func NewTakeProfit(symbol string, side common.OrderSide, quantity, price fixed.Point, options ...Option) (*Order, error) {
	return newOrder(KindTakeProfit, symbol, side, quantity, price, options...)
}

// NewClosePosition behaves like a market order but marks the fill as a liquidation.
func NewClosePosition(symbol string, side common.OrderSide, quantity fixed.Point, options ...Option) (*Order, error) {
	return newOrder(KindClosePosition, symbol, side, quantity, fixed.Zero, options...)
}

// NewOneCancelOther triggers when a candle reaches price and then spawns its stop loss and take
// profit legs as limit orders on the opposite side. A zero stopLoss or takeProfit disables that leg.
func NewOneCancelOther(symbol string, side common.OrderSide, quantity, price, stopLoss, takeProfit fixed.Point, options ...Option) (*Order, error) {
	legs := func(o *Order) {
		o.StopLoss = stopLoss
		o.TakeProfit = takeProfit
	}
	return newOrder(KindOneCancelOther, symbol, side, quantity, price, append([]Option{legs}, options...)...)
}

// QuantityFromNotional converts an amount of quote currency into a quantity at price, rounded to 4 places.
func QuantityFromNotional(amount, price fixed.Point) (fixed.Point, error) {
	if !price.IsPos() {
		return fixed.Zero, ErrInvalidPrice
	}
	return amount.Div(price).Round(quantityScale), nil
}

func (o *Order) Validate() error {
	if !o.Quantity.IsPos() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, o.Quantity)
	}

	switch o.Kind {
	case KindMarket, KindClosePosition:
		return nil
	case KindLimit, KindStop, KindTakeProfit:
		if !o.Price.IsPos() {
			return fmt.Errorf("%s %w: %s", o.Kind, ErrInvalidPrice, o.Price)
		}
		return nil
	case KindOneCancelOther:
		if !o.Price.IsPos() {
			return fmt.Errorf("%s %w: %s", o.Kind, ErrInvalidPrice, o.Price)
		}
		if o.StopLoss.IsNeg() || o.TakeProfit.IsNeg() {
			return fmt.Errorf("%s legs %w", o.Kind, ErrInvalidPrice)
		}
		if o.StopLoss.IsZero() && o.TakeProfit.IsZero() {
			return ErrNoLegs
		}
		if o.StopLossQuantity.IsNeg() || o.TakeProfitQuantity.IsNeg() {
			return fmt.Errorf("%s legs %w", o.Kind, ErrInvalidQuantity)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, o.Kind)
	}
}

func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}

// TryFill reports whether c fills the order and at which price. The order itself is not modified.
// Price levels count as reached anywhere inside [low, high]; the candle does not tell which
// extreme came first.
func (o *Order) TryFill(c common.Candle) (fixed.Point, bool, error) {
	switch o.Kind {
	case KindMarket, KindClosePosition:
		return c.Close, true, nil
	case KindLimit, KindStop, KindTakeProfit, KindOneCancelOther:
		if c.Contains(o.Price) {
			return o.Price, true, nil
		}
		return fixed.Zero, false, nil
	default:
		return fixed.Zero, false, fmt.Errorf("%w: %s", ErrUnknownKind, o.Kind)
	}
}

// Legs builds the orders a triggered one-cancel-other order spawns: stop loss first, then take profit.
func (o *Order) Legs(c common.Candle) ([]*Order, error) {
	if o.Kind != KindOneCancelOther {
		return nil, nil
	}

	var legs []*Order
	for _, leg := range []struct {
		price    fixed.Point
		quantity fixed.Point
		reason   string
	}{
		{o.StopLoss, o.StopLossQuantity, "stop loss"},
		{o.TakeProfit, o.TakeProfitQuantity, "take profit"},
	} {
		if leg.price.IsZero() {
			continue
		}
		quantity := leg.quantity
		if quantity.IsZero() {
			quantity = o.Quantity
		}
		limit, err := NewLimit(o.Symbol, o.Side.Reverse(), quantity, leg.price,
			WithPositionSide(o.PositionSide),
			WithCreatedAt(c.CloseTime),
			WithPriceAtCreation(c.Close),
			WithReason(fmt.Sprintf("%s of %s", leg.reason, o.ID)))
		if err != nil {
			return nil, fmt.Errorf("unable to create %s leg of %s: %w", leg.reason, o.ID, err)
		}
		limit.GroupID = o.ID
		legs = append(legs, limit)
	}
	return legs, nil
}

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %s at %s, position side = %s", o.Kind, o.Side, o.Quantity, o.Symbol, o.Price, o.PositionSide)
}

// Record is the flat projection observers receive. Times are converted from milliseconds to seconds.
type Record struct {
	ID                 string              `json:"id"`
	Type               Kind                `json:"type"`
	Status             Status              `json:"status"`
	Side               common.OrderSide    `json:"side"`
	PositionSide       common.PositionSide `json:"positionSide"`
	Symbol             string              `json:"symbol"`
	Quantity           fixed.Point         `json:"quantity"`
	Price              fixed.Point         `json:"price"`
	FillPrice          *fixed.Point        `json:"fillPrice,omitempty"`
	CreatedAt          int64               `json:"createdAt"`
	FilledAt           int64               `json:"filledAt"`
	PriceAtCreation    *fixed.Point        `json:"priceAtCreation,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	StopLoss           *fixed.Point        `json:"stopLoss,omitempty"`
	TakeProfit         *fixed.Point        `json:"takeProfit,omitempty"`
	StopLossQuantity   *fixed.Point        `json:"stopLossQuantity,omitempty"`
	TakeProfitQuantity *fixed.Point        `json:"takeProfitQuantity,omitempty"`
	GroupID            string              `json:"groupId,omitempty"`
}

func (o Order) Record() Record {
	r := Record{
		ID:           o.ID,
		Type:         o.Kind,
		Status:       o.Status,
		Side:         o.Side,
		PositionSide: o.PositionSide,
		Symbol:       o.Symbol,
		Quantity:     o.Quantity,
		Price:        o.Price,
		CreatedAt:    floorDiv(o.CreatedAt, 1000),
		FilledAt:     floorDiv(o.FilledAt, 1000),
		Reason:       o.Reason,
		GroupID:      o.GroupID,
	}
	r.FillPrice = optional(o.FillPrice)
	r.PriceAtCreation = optional(o.PriceAtCreation)
	r.StopLoss = optional(o.StopLoss)
	r.TakeProfit = optional(o.TakeProfit)
	r.StopLossQuantity = optional(o.StopLossQuantity)
	r.TakeProfitQuantity = optional(o.TakeProfitQuantity)
	return r
}

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Record())
}

func optional(p fixed.Point) *fixed.Point {
	if p.IsZero() {
		return nil
	}
	return &p
}

// floorDiv rounds toward negative infinity so the unfilled marker -1 stays negative.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
