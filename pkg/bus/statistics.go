package bus

import (
	"sort"

	"go.uber.org/zap"
)

type Statistics struct {
	EventCount    int
	PublishCount  uint64
	DispatchCount uint64
	DispatchFails uint64
	Topics        map[string]uint64
}

func (b *Bus) Statistics() Statistics {
	topics := make(map[string]uint64, len(b.topicCounts))
	for topic, count := range b.topicCounts {
		topics[topic] = count
	}
	return Statistics{
		EventCount:    b.log.Len(),
		PublishCount:  b.publishCount,
		DispatchCount: b.dispatchCount,
		DispatchFails: b.dispatchFails,
		Topics:        topics,
	}
}

func (s Statistics) Print(logger *zap.Logger) {
	topics := make([]string, 0, len(s.Topics))
	for topic := range s.Topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	fields := []zap.Field{
		zap.Int("event_count", s.EventCount),
		zap.Uint64("publish_count", s.PublishCount),
		zap.Uint64("dispatch_count", s.DispatchCount),
		zap.Uint64("dispatch_fails", s.DispatchFails),
	}
	for _, topic := range topics {
		fields = append(fields, zap.Uint64(topic, s.Topics[topic]))
	}
	logger.Info("bus statistics", fields...)
}
