package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
	"github.com/peter-kozarec/candlestep/pkg/datasource"
	"github.com/peter-kozarec/candlestep/pkg/ledger"
	"github.com/peter-kozarec/candlestep/pkg/order"
	"github.com/peter-kozarec/candlestep/pkg/utility"
	"github.com/peter-kozarec/candlestep/pkg/utility/fixed"
)

const simulatorComponentName = "simulation.simulator"

var ErrAlreadyRun = errors.New("simulator already ran")

// PnL is the payload of an account.pnl event.
type PnL struct {
	Price      fixed.Point    `json:"price"`
	Unrealized fixed.Point    `json:"unrealized"`
	Realized   fixed.Point    `json:"realized"`
	Balance    ledger.Balance `json:"balance"`
}

type Option func(*Simulator)

func WithGate(gate Gate) Option {
	return func(s *Simulator) {
		s.gate = gate
	}
}

func WithLogOptions(options ...bus.LogOption) Option {
	return func(s *Simulator) {
		s.logOptions = append(s.logOptions, options...)
	}
}

// Simulator runs one strategy over one candle series. Every simulator owns its own log, bus,
// order book and ledger, so independent runs share nothing.
type Simulator struct {
	logger   *zap.Logger
	cfg      Configuration
	cursor   *datasource.Cursor
	strategy Strategy
	gate     Gate

	logOptions []bus.LogOption

	executionID utility.ExecutionID
	log         *bus.Log
	bus         *bus.Bus
	orders      *order.Manager
	positions   *ledger.Manager
	audit       *Audit
	session     *Session

	lastTickID string
	done       bool
}

func NewSimulator(logger *zap.Logger, cfg Configuration, cursor *datasource.Cursor, strategy Strategy, options ...Option) *Simulator {
	s := &Simulator{
		logger:      logger.Named(simulatorComponentName),
		cfg:         cfg,
		cursor:      cursor,
		strategy:    strategy,
		gate:        FreeRunning{},
		executionID: utility.NewExecutionID(),
		audit:       NewAudit(),
	}

	for _, option := range options {
		option(s)
	}

	s.logger = s.logger.With(zap.Stringer("eid", s.executionID))
	s.log = bus.NewLog(s.logOptions...)
	s.bus = bus.NewBus(s.log)
	s.positions = ledger.NewManager(s.bus, cfg.InitialBalance, ledger.WithLogger(s.logger))
	s.orders = order.NewManager(s.logger, s.bus, s.positions)
	s.session = &Session{
		symbol:    cfg.Symbol,
		cursor:    cursor,
		bus:       s.bus,
		orders:    s.orders,
		positions: s.positions,
	}

	return s
}

func (s *Simulator) ExecutionID() utility.ExecutionID {
	return s.executionID
}

// Bus lets observers subscribe before Run is called.
func (s *Simulator) Bus() *bus.Bus {
	return s.bus
}

func (s *Simulator) Log() *bus.Log {
	return s.log
}

func (s *Simulator) Orders() *order.Manager {
	return s.orders
}

func (s *Simulator) Positions() *ledger.Manager {
	return s.positions
}

func (s *Simulator) PrintDetails() {
	s.logger.Info("simulation details",
		zap.String("symbol", s.cfg.Symbol),
		zap.String("timeframe", s.cfg.Timeframe),
		zap.String("initial_balance", s.cfg.InitialBalance.String()),
		zap.Int("candles", s.cursor.Len()))
}

// Run validates the configuration and drives the tick loop until the series is exhausted, then
// withdraws open orders, closes both positions at the last close and reports. Any ledger or
// order error fails the run.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	if s.done {
		return Report{}, ErrAlreadyRun
	}
	if err := s.cfg.Validate(); err != nil {
		return Report{}, err
	}
	s.done = true
	defer s.orders.Close()
	defer s.positions.Close()

	for s.cursor.Step() {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if err := s.tick(ctx); err != nil {
			s.logger.Error("simulation failed",
				zap.Int64("tick", s.log.CurrentTick()),
				zap.Error(err))
			return Report{}, err
		}
	}

	report, err := s.finish()
	if err != nil {
		s.logger.Error("unable to finish simulation", zap.Error(err))
		return Report{}, err
	}
	return report, nil
}

func (s *Simulator) tick(ctx context.Context) error {
	c, err := s.cursor.Current()
	if err != nil {
		return err
	}

	s.log.AdvanceTick()
	tick, err := s.bus.Publish(bus.TopicPriceTick, c, "")
	if err != nil {
		return fmt.Errorf("price tick: %w", err)
	}
	s.lastTickID = tick.ID

	if err := s.orders.ProcessOrders(c); err != nil {
		return fmt.Errorf("process orders: %w", err)
	}

	if err := s.strategy.Update(ctx, s.session); err != nil {
		return fmt.Errorf("strategy update: %w", err)
	}

	pnl := s.positions.UnrealizedPnL(c.Close)
	s.audit.AddSnapshot(c.CloseTime, pnl)
	if err := s.publishPnL(c.Close, pnl); err != nil {
		return err
	}

	return s.gate.Wait(ctx)
}

func (s *Simulator) finish() (Report, error) {
	cancelled := s.orders.Len()
	if err := s.orders.CancelAllOrders(); err != nil {
		return Report{}, err
	}

	if last, ok := s.cursor.Last(); ok {
		if err := s.positions.CloseAllPositions(last.Close, s.lastTickID); err != nil {
			return Report{}, err
		}
		if err := s.publishPnL(last.Close, s.positions.UnrealizedPnL(last.Close)); err != nil {
			return Report{}, err
		}
	}

	report := s.report(cancelled)
	if _, err := s.bus.Publish(bus.TopicSimulationFinished, report, s.lastTickID); err != nil {
		return Report{}, fmt.Errorf("simulation finished: %w", err)
	}
	return report, nil
}

func (s *Simulator) publishPnL(price, unrealized fixed.Point) error {
	_, err := s.bus.Publish(bus.TopicAccountPnL, PnL{
		Price:      price,
		Unrealized: unrealized,
		Realized:   s.positions.PnL(),
		Balance:    s.positions.Balance(),
	}, s.lastTickID)
	if err != nil {
		return fmt.Errorf("account pnl: %w", err)
	}
	return nil
}

func (s *Simulator) report(cancelled int) Report {
	balance := s.positions.Balance()
	stats := s.positions.Stats()
	from, to := s.audit.Span()

	report := Report{
		InitialBalance:   balance.Initial,
		FinalBalance:     balance.Current,
		RealizedPnL:      s.positions.PnL(),
		TotalReturn:      totalReturn(balance),
		MaxDrawdown:      s.audit.MaxDrawdown(),
		PnLVolatility:    s.audit.Volatility(),
		Fills:            stats.Fills,
		LiquidationFills: stats.LiquidationFills,
		Reductions:       stats.Reductions,
		CancelledAtEnd:   cancelled,
		Ticks:            s.audit.Len(),
		// counts the simulation.finished event that carries this report
		Events: s.log.Len() + 1,
	}
	if s.audit.Len() > 0 {
		report.StartDate = time.UnixMilli(from).UTC()
		report.EndDate = time.UnixMilli(to).UTC()
	}
	return report
}

// totalReturn is the percentage change of the balance, zero when there is nothing to compare against.
func totalReturn(balance ledger.Balance) fixed.Point {
	if !balance.Initial.IsPos() {
		return fixed.Zero
	}
	return balance.Current.Div(balance.Initial).Sub(fixed.One).Mul(fixed.Hundred).Round(2)
}
