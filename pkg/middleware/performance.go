package middleware

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/candlestep/pkg/bus"
)

// Performance measures the time spent in wrapped handlers per topic.
type Performance struct {
	logger *zap.Logger

	durations map[string]time.Duration
	calls     map[string]int64
}

func NewPerformance(logger *zap.Logger) *Performance {
	return &Performance{
		logger:    logger,
		durations: make(map[string]time.Duration),
		calls:     make(map[string]int64),
	}
}

func (p *Performance) WithEvent(handler bus.Handler) bus.Handler {
	return func(event bus.Event) error {
		startTime := time.Now()
		err := handler(event)
		p.durations[event.Type] += time.Since(startTime)
		p.calls[event.Type]++
		return err
	}
}

func (p *Performance) Average(eventType string) time.Duration {
	calls := p.calls[eventType]
	if calls == 0 {
		return 0
	}
	return p.durations[eventType] / time.Duration(calls)
}

func (p *Performance) PrintStatistics() {
	topics := make([]string, 0, len(p.calls))
	for topic := range p.calls {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var fields []zap.Field
	for _, topic := range topics {
		fields = append(fields,
			zap.Duration(topic+"_avg_duration", p.Average(topic)),
			zap.Duration(topic+"_total_duration", p.durations[topic]))
	}

	p.logger.Info("performance statistics", fields...)
}
