package ledger

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
	"github.com/peter-kozarec/candlestep/pkg/common"
	"github.com/peter-kozarec/candlestep/pkg/order"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const managerComponentName = "ledger.manager"

// Update is the payload of a position.updated event.
type Update struct {
	Long    Position `json:"long"`
	Short   Position `json:"short"`
	Balance Balance  `json:"balance"`
}

type Stats struct {
	Fills            int `json:"fills"`
	LiquidationFills int `json:"liquidation_fills"`
	Reductions       int `json:"reductions"`
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.Named(managerComponentName)
	}
}

// Manager owns the long and short position of one symbol and the balance they book against.
// It learns about fills only through order.filled events.
type Manager struct {
	logger *zap.Logger
	bus    *bus.Bus

	balance *Balance
	long    *Position
	short   *Position
	stats   Stats

	token bus.Token
}

func NewManager(b *bus.Bus, initial fixed.Point, options ...Option) *Manager {
	balance := &Balance{
		Initial: initial,
		Current: initial,
		Margin:  fixed.Zero,
	}
	m := &Manager{
		logger:  zap.NewNop(),
		bus:     b,
		balance: balance,
		long:    NewPosition(common.PositionSideLong, balance),
		short:   NewPosition(common.PositionSideShort, balance),
	}

	for _, option := range options {
		option(m)
	}

	m.token = b.Subscribe(bus.TopicOrderFilled, m.onOrderFilled)
	return m
}

func (m *Manager) Close() {
	m.bus.Unsubscribe(m.token)
}

func (m *Manager) onOrderFilled(event bus.Event) error {
	filled, ok := event.Data.(order.Filled)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event.Type, event.Data)
	}
	return m.Fill(filled.Order, event.ID)
}

func (m *Manager) position(side common.PositionSide) *Position {
	if side == common.PositionSideShort {
		return m.short
	}
	return m.long
}

// ValidateFill reports whether applying o would break a ledger invariant, without changing anything.
func (m *Manager) ValidateFill(o order.Order) error {
	if !o.Kind.AffectsLedger() {
		return nil
	}
	return m.position(o.PositionSide).Validate(o.Side, o.Quantity, o.FillPrice)
}

// Fill applies a filled order to the position selected by its position side and announces the
// new state parented on parentID.
func (m *Manager) Fill(o order.Order, parentID string) error {
	if !o.Kind.AffectsLedger() {
		return nil
	}

	position := m.position(o.PositionSide)
	reducing := o.Side != position.Side.OpeningSide()
	if err := position.Update(o.Side, o.Quantity, o.FillPrice); err != nil {
		return fmt.Errorf("order %s: %w", o.ID, err)
	}

	m.stats.Fills++
	if o.Kind == order.KindClosePosition {
		m.stats.LiquidationFills++
	}
	if reducing {
		m.stats.Reductions++
	}

	m.logger.Debug("position updated",
		zap.String("order", o.ID),
		zap.Stringer("side", position.Side),
		zap.Stringer("quantity", position.Quantity),
		zap.Stringer("average_price", position.AveragePrice),
		zap.Stringer("balance", m.balance.Current),
		zap.Stringer("margin", m.balance.Margin))

	return m.publish(parentID)
}

// CloseAllPositions realizes both sides at price as if reducing fills for their full quantity arrived.
func (m *Manager) CloseAllPositions(price fixed.Point, parentID string) error {
	for _, position := range []*Position{m.long, m.short} {
		if !position.IsActive() {
			continue
		}
		if err := position.Update(position.Side.OpeningSide().Reverse(), position.Quantity, price); err != nil {
			return fmt.Errorf("unable to close %s position: %w", position.Side, err)
		}
		m.stats.Reductions++
	}
	m.balance.Margin = fixed.Zero

	m.logger.Debug("positions closed",
		zap.Stringer("price", price),
		zap.Stringer("balance", m.balance.Current))

	return m.publish(parentID)
}

// UnrealizedPnL is what the account would have gained at price if everything were closed now.
func (m *Manager) UnrealizedPnL(price fixed.Point) fixed.Point {
	return m.long.Value(price).
		Sub(m.short.Value(price)).
		Add(m.balance.Current).
		Sub(m.balance.Initial).
		Add(m.balance.Margin).
		Round(priceScale)
}

// PnL is the realized profit, meaningful once both positions are flat.
func (m *Manager) PnL() fixed.Point {
	return m.balance.PnL()
}

func (m *Manager) Positions() (Position, Position) {
	return m.long.snapshot(), m.short.snapshot()
}

func (m *Manager) Position(side common.PositionSide) Position {
	return m.position(side).snapshot()
}

func (m *Manager) ActivePositions() int {
	active := 0
	for _, position := range []*Position{m.long, m.short} {
		if position.IsActive() {
			active++
		}
	}
	return active
}

// Exposures lists the non-empty sides, ready to be flattened with order.Manager.ClosePositions.
func (m *Manager) Exposures() []order.Exposure {
	var exposures []order.Exposure
	for _, position := range []*Position{m.long, m.short} {
		if position.IsActive() {
			exposures = append(exposures, order.Exposure{Side: position.Side, Quantity: position.Quantity})
		}
	}
	return exposures
}

func (m *Manager) Balance() Balance {
	return *m.balance
}

func (m *Manager) Stats() Stats {
	return m.stats
}

func (m *Manager) publish(parentID string) error {
	long, short := m.Positions()
	if _, err := m.bus.Publish(bus.TopicPositionUpdated, Update{Long: long, Short: short, Balance: *m.balance}, parentID); err != nil {
		return fmt.Errorf("unable to publish position update: %w", err)
	}
	return nil
}
