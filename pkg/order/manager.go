package order

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const managerComponentName = "order.manager"

var (
	ErrDuplicateOrder = errors.New("order id already exists")
	ErrOrderNotFound  = errors.New("order not found")
)

// FillValidator checks a fill against the ledger before it is committed.
type FillValidator interface {
	ValidateFill(o Order) error
}

// Filled is the payload of an order.filled event.
type Filled struct {
	Order Order `json:"order"`
	Tick  int64 `json:"tick"`
}

// Exposure is an open quantity on one position side.
type Exposure struct {
	Side     common.PositionSide
	Quantity fixed.Point
}

// Manager owns the open orders and the fill history of one run.
// Orders are kept in insertion order so that every pass over them is reproducible.
type Manager struct {
	logger    *zap.Logger
	bus       *bus.Bus
	validator FillValidator

	open    []*Order
	index   map[string]*Order
	history []*Order

	cause string
	token bus.Token
}

// NewManager creates a manager that parents the events it publishes on the latest price.tick event.
// A nil validator accepts every fill.
func NewManager(logger *zap.Logger, b *bus.Bus, validator FillValidator) *Manager {
	m := &Manager{
		logger:    logger.Named(managerComponentName),
		bus:       b,
		validator: validator,
		index:     make(map[string]*Order),
	}
	m.token = b.Subscribe(bus.TopicPriceTick, func(event bus.Event) error {
		m.cause = event.ID
		return nil
	})
	return m
}

func (m *Manager) Close() {
	m.bus.Unsubscribe(m.token)
}

func (m *Manager) AddOrder(o *Order) error {
	return m.add(m.cause, o)
}

// AddOrders inserts all orders and announces them with one order.new event.
// Nothing is inserted when any of them is invalid or already known.
func (m *Manager) AddOrders(orders ...*Order) error {
	return m.add(m.cause, orders...)
}

func (m *Manager) add(parentID string, orders ...*Order) error {
	if len(orders) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("order %s: %w", o.ID, err)
		}
		if _, ok := m.index[o.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
		}
		if _, ok := seen[o.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
		}
		seen[o.ID] = struct{}{}
	}

	snapshot := make([]Order, 0, len(orders))
	for _, o := range orders {
		o.Status = StatusOpen
		m.open = append(m.open, o)
		m.index[o.ID] = o
		snapshot = append(snapshot, *o)
	}

	if _, err := m.bus.Publish(bus.TopicOrderNew, snapshot, parentID); err != nil {
		return fmt.Errorf("unable to publish new orders: %w", err)
	}
	return nil
}

// ProcessOrders evaluates a snapshot of the open orders against c, oldest first.
// Orders added while the pass runs wait for the next candle. A rejected fill aborts the
// pass: that order stays open and the ledger is left untouched.
func (m *Manager) ProcessOrders(c common.Candle) error {
	snapshot := slices.Clone(m.open)

	for _, o := range snapshot {
		if _, ok := m.index[o.ID]; !ok {
			continue
		}

		price, ok, err := o.TryFill(c)
		if err != nil {
			return fmt.Errorf("order %s: %w", o.ID, err)
		}
		if !ok {
			continue
		}

		filled := *o
		filled.Status = StatusFilled
		filled.FillPrice = price
		filled.FilledAt = c.CloseTime

		var legs []*Order
		if o.Kind == KindOneCancelOther {
			if legs, err = o.Legs(c); err != nil {
				return err
			}
		} else if m.validator != nil {
			if err := m.validator.ValidateFill(filled); err != nil {
				return fmt.Errorf("unable to fill order %s: %w", o.ID, err)
			}
		}

		m.remove(o.ID)
		*o = filled
		m.history = append(m.history, o)

		m.logger.Debug("order filled",
			zap.String("id", o.ID),
			zap.Stringer("kind", o.Kind),
			zap.Stringer("side", o.Side),
			zap.Stringer("quantity", o.Quantity),
			zap.Stringer("price", o.FillPrice))

		event, err := m.bus.Publish(bus.TopicOrderFilled, Filled{Order: filled, Tick: m.bus.Log().CurrentTick()}, m.cause)
		if err != nil {
			return fmt.Errorf("order %s filled with errors: %w", o.ID, err)
		}

		if err := m.add(event.ID, legs...); err != nil {
			return fmt.Errorf("unable to add legs of %s: %w", o.ID, err)
		}
		if err := m.cancelGroup(o.GroupID, event.ID); err != nil {
			return err
		}
	}
	return nil
}

// cancelGroup withdraws the open siblings of a filled leg.
func (m *Manager) cancelGroup(groupID, parentID string) error {
	if groupID == "" {
		return nil
	}

	var cancelled []Order
	for _, o := range slices.Clone(m.open) {
		if o.GroupID != groupID {
			continue
		}
		m.remove(o.ID)
		o.Status = StatusCancelled
		cancelled = append(cancelled, *o)
	}
	if len(cancelled) == 0 {
		return nil
	}

	if _, err := m.bus.Publish(bus.TopicOrderCancelled, cancelled, parentID); err != nil {
		return fmt.Errorf("unable to publish cancelled siblings of group %s: %w", groupID, err)
	}
	return nil
}

// CancelAllOrders withdraws every open order. Calling it on an empty book does nothing.
func (m *Manager) CancelAllOrders() error {
	if len(m.open) == 0 {
		return nil
	}

	cancelled := make([]Order, 0, len(m.open))
	for _, o := range m.open {
		o.Status = StatusCancelled
		cancelled = append(cancelled, *o)
	}
	m.open = nil
	clear(m.index)

	if _, err := m.bus.Publish(bus.TopicOrderCancelled, cancelled, m.cause); err != nil {
		return fmt.Errorf("unable to publish cancelled orders: %w", err)
	}
	return nil
}

func (m *Manager) CancelOrder(id string) error {
	o, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	m.remove(id)
	o.Status = StatusCancelled

	if _, err := m.bus.Publish(bus.TopicOrderCancelled, []Order{*o}, m.cause); err != nil {
		return fmt.Errorf("unable to publish cancelled order: %w", err)
	}
	return nil
}

// ClosePositions submits one ClosePosition order per non-empty exposure; they fill at the
// close of the next processed candle.
func (m *Manager) ClosePositions(symbol string, c common.Candle, exposures ...Exposure) error {
	var orders []*Order
	for _, exposure := range exposures {
		if !exposure.Quantity.IsPos() {
			continue
		}
		o, err := NewClosePosition(symbol, exposure.Side.OpeningSide().Reverse(), exposure.Quantity,
			WithPositionSide(exposure.Side),
			WithCreatedAt(c.CloseTime),
			WithPriceAtCreation(c.Close),
			WithReason("close position"))
		if err != nil {
			return err
		}
		orders = append(orders, o)
	}
	return m.add(m.cause, orders...)
}

// OrdersBySide returns the open orders of one side, oldest first.
func (m *Manager) OrdersBySide(side common.OrderSide) []*Order {
	var orders []*Order
	for _, o := range m.open {
		if o.Side == side {
			orders = append(orders, o)
		}
	}
	slices.SortStableFunc(orders, func(a, b *Order) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	return orders
}

func (m *Manager) Orders() []*Order {
	return slices.Clone(m.open)
}

func (m *Manager) History() []*Order {
	return slices.Clone(m.history)
}

func (m *Manager) Get(id string) (*Order, bool) {
	o, ok := m.index[id]
	return o, ok
}

func (m *Manager) Len() int {
	return len(m.open)
}

func (m *Manager) remove(id string) {
	delete(m.index, id)
	m.open = slices.DeleteFunc(m.open, func(o *Order) bool {
		return o.ID == id
	})
}
