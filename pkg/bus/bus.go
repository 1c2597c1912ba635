package bus

import (
	"errors"
	"fmt"
	"strings"
)

type Handler func(Event) error

// Token identifies one subscription so that exactly that handler can be removed.
type Token uint64

type subscription struct {
	token   Token
	pattern string
	handler Handler
}

// Bus publishes events into a Log and dispatches them synchronously to subscribers.
// It belongs to a single run and is not safe for concurrent use.
type Bus struct {
	log           *Log
	subscriptions []subscription
	nextToken     Token

	publishCount  uint64
	dispatchCount uint64
	dispatchFails uint64
	topicCounts   map[string]uint64
}

func NewBus(log *Log) *Bus {
	return &Bus{
		log:         log,
		topicCounts: make(map[string]uint64),
	}
}

func (b *Bus) Log() *Log {
	return b.log
}

// Subscribe registers handler for an exact type, a "prefix.*" or "*.suffix" pattern, or "*".
func (b *Bus) Subscribe(pattern string, handler Handler) Token {
	b.nextToken++
	b.subscriptions = append(b.subscriptions, subscription{
		token:   b.nextToken,
		pattern: pattern,
		handler: handler,
	})
	return b.nextToken
}

func (b *Bus) Unsubscribe(token Token) bool {
	for idx, sub := range b.subscriptions {
		if sub.token == token {
			b.subscriptions = append(b.subscriptions[:idx:idx], b.subscriptions[idx+1:]...)
			return true
		}
	}
	return false
}

// Publish appends the event to the log and dispatches it. The event stays in the log even when
// handlers fail; their errors are joined and returned.
func (b *Bus) Publish(eventType string, data any, parentID string) (Event, error) {
	event, err := b.log.Append(eventType, data, parentID)
	if err != nil {
		return Event{}, fmt.Errorf("unable to append %s event: %w", eventType, err)
	}
	b.publishCount++
	b.topicCounts[eventType]++

	return event, b.dispatch(event)
}

// dispatch runs handlers in a fixed order: exact match, prefix wildcard, suffix wildcard, global.
func (b *Bus) dispatch(event Event) error {
	subscriptions := make([]subscription, len(b.subscriptions))
	copy(subscriptions, b.subscriptions)

	var errs []error
	for _, match := range []func(string, string) bool{matchExact, matchPrefix, matchSuffix, matchGlobal} {
		for _, sub := range subscriptions {
			if !match(sub.pattern, event.Type) || !b.subscribed(sub.token) {
				continue
			}
			b.dispatchCount++
			if err := sub.handler(event); err != nil {
				b.dispatchFails++
				errs = append(errs, fmt.Errorf("%s handler for %s: %w", sub.pattern, event.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// subscribed reports whether token is still registered. Handlers may unsubscribe others while
// a dispatch is running.
func (b *Bus) subscribed(token Token) bool {
	for _, sub := range b.subscriptions {
		if sub.token == token {
			return true
		}
	}
	return false
}

func matchExact(pattern, eventType string) bool {
	return pattern == eventType
}

func matchPrefix(pattern, eventType string) bool {
	return len(pattern) > 2 && strings.HasSuffix(pattern, ".*") && strings.HasPrefix(eventType, pattern[:len(pattern)-1])
}

func matchSuffix(pattern, eventType string) bool {
	return len(pattern) > 2 && strings.HasPrefix(pattern, "*.") && strings.HasSuffix(eventType, pattern[1:])
}

func matchGlobal(pattern, _ string) bool {
	return pattern == Wildcard
}
