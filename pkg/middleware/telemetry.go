package middleware

import (
	"sort"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

// Telemetry counts observed events per topic.
type Telemetry struct {
	logger *zap.Logger

	counters map[string]int64
	failures int64
}

func NewTelemetry(logger *zap.Logger) *Telemetry {
	return &Telemetry{
		logger:   logger,
		counters: make(map[string]int64),
	}
}

func (t *Telemetry) WithEvent(handler bus.Handler) bus.Handler {
	return func(event bus.Event) error {
		t.counters[event.Type]++
		err := handler(event)
		if err != nil {
			t.failures++
		}
		return err
	}
}

func (t *Telemetry) Count(eventType string) int64 {
	return t.counters[eventType]
}

func (t *Telemetry) Total() int64 {
	var total int64
	for _, count := range t.counters {
		total += count
	}
	return total
}

func (t *Telemetry) PrintStatistics() {
	topics := make([]string, 0, len(t.counters))
	for topic := range t.counters {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	fields := make([]zap.Field, 0, len(topics)+2)
	for _, topic := range topics {
		fields = append(fields, zap.Int64(topic, t.counters[topic]))
	}
	fields = append(fields, zap.Int64("total", t.Total()), zap.Int64("failures", t.failures))

	t.logger.Info("event statistics", fields...)
}
