package middleware

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

type MonitorFlags uint16

//goland:noinspection GoUnusedConst
const (
	MonitorNone MonitorFlags = 1 << iota
	MonitorAll
	MonitorPriceTicks
	MonitorOrdersNew
	MonitorOrdersFilled
	MonitorOrdersCancelled
	MonitorPositions
	MonitorPnL
	MonitorFinished
)

var monitorTopics = map[string]MonitorFlags{
	bus.TopicPriceTick:          MonitorPriceTicks,
	bus.TopicOrderNew:           MonitorOrdersNew,
	bus.TopicOrderFilled:        MonitorOrdersFilled,
	bus.TopicOrderCancelled:     MonitorOrdersCancelled,
	bus.TopicPositionUpdated:    MonitorPositions,
	bus.TopicAccountPnL:         MonitorPnL,
	bus.TopicSimulationFinished: MonitorFinished,
}

// ParseMonitorFlags turns topic names, "all" or "none" into flags.
func ParseMonitorFlags(names []string) (MonitorFlags, error) {
	flags := MonitorNone
	for _, name := range names {
		switch name = strings.ToLower(strings.TrimSpace(name)); name {
		case "all", bus.Wildcard:
			flags |= MonitorAll
		case "none", "":
		default:
			flag, ok := monitorTopics[name]
			if !ok {
				return MonitorNone, fmt.Errorf("unknown monitor topic %q", name)
			}
			flags |= flag
		}
	}
	return flags, nil
}

// Monitor logs the events whose topic is selected by its flags.
type Monitor struct {
	logger *zap.Logger
	flags  MonitorFlags
}

func NewMonitor(logger *zap.Logger, flags MonitorFlags) *Monitor {
	return &Monitor{
		logger: logger,
		flags:  flags,
	}
}

func (m *Monitor) enabled(eventType string) bool {
	if m.flags&MonitorAll != 0 {
		return true
	}
	flag, ok := monitorTopics[eventType]
	return ok && m.flags&flag != 0
}

func (m *Monitor) WithEvent(handler bus.Handler) bus.Handler {
	return func(event bus.Event) error {
		if m.enabled(event.Type) {
			m.logger.Info("event",
				zap.String("type", event.Type),
				zap.String("id", event.ID),
				zap.String("parent_id", event.ParentID),
				zap.Int64("tick", event.Tick),
				zap.Any("data", event.Data))
		}
		return handler(event)
	}
}
