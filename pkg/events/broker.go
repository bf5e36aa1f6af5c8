package events

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Subscriber is an interface for event consumers. Implementations adapt the
// event stream to specific transports (WebSocket, SSE, message queues) or to
// in-process handlers.
type Subscriber interface {
	// Send delivers an event to the subscriber.
	// Implementations must not block and should handle errors gracefully.
	Send(Event) error

	// Close cleanly shuts down the subscriber.
	Close() error
}

// subscription pairs a subscriber with the topic pattern it asked for.
type subscription struct {
	pattern string
	sub     Subscriber
}

// Broker manages event distribution to pattern-matched subscribers.
// It is the engine's only event surface: every lifecycle announcement in
// the system goes through Publish.
type Broker struct {
	mu     sync.RWMutex
	subs   []subscription
	closed bool
	logger *zerolog.Logger
}

// NewBroker creates a new event broker.
func NewBroker(logger *zerolog.Logger) *Broker {
	return &Broker{logger: logger}
}

// Subscribe registers a subscriber for every topic matching pattern.
// Pattern rules: "*" matches everything; a trailing ".*" matches any suffix
// ("conflict.batch.*" matches "conflict.batch.progress"); otherwise the
// pattern must equal the topic exactly. Registration order is preserved.
func (b *Broker) Subscribe(pattern string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, sub: sub})
	b.logger.Debug().
		Str("pattern", pattern).
		Int("total_subscribers", len(b.subs)).
		Msg("Subscriber registered")
}

// SubscribeFunc registers a handler function for every topic matching pattern.
func (b *Broker) SubscribeFunc(pattern string, fn func(Event)) {
	b.Subscribe(pattern, handlerSubscriber(fn))
}

// Unsubscribe removes a subscriber from all its registrations.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.sub != sub {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Publish delivers an event to all matching subscribers, synchronously and
// in registration order. A failing subscriber is logged and skipped; it
// never blocks delivery to the rest.
func (b *Broker) Publish(topic Topic, data any) {
	event := Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return
	}

	delivered := 0
	for _, s := range subs {
		if !MatchTopic(s.pattern, topic) {
			continue
		}
		if err := s.sub.Send(event); err != nil {
			b.logger.Warn().
				Err(err).
				Str("topic", string(topic)).
				Msg("Failed to send event to subscriber")
			continue
		}
		delivered++
	}

	b.logger.Debug().
		Str("topic", string(topic)).
		Int("subscribers", delivered).
		Msg("Event published")
}

// Close shuts the broker down, closing all subscribers. Publishing after
// Close is a no-op.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		_ = s.sub.Close()
	}
	b.subs = nil
	b.logger.Info().Msg("Event broker shut down")
	return nil
}

// SubscriberCount returns the current number of subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// MatchTopic reports whether pattern matches topic using the broker's
// explicit glob rules.
func MatchTopic(pattern string, topic Topic) bool {
	if pattern == "*" || pattern == string(topic) {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(string(topic), prefix+".")
	}
	return false
}

// handlerSubscriber adapts a plain function to the Subscriber interface.
type handlerSubscriber func(Event)

func (h handlerSubscriber) Send(e Event) error { h(e); return nil }
func (h handlerSubscriber) Close() error       { return nil }

// Collector is a Subscriber that records every event it receives.
// It is used by tests and by callers that want an in-memory event trail.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Send implements Subscriber.
func (c *Collector) Send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// Close implements Subscriber.
func (c *Collector) Close() error { return nil }

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Topics returns the recorded topics in delivery order.
func (c *Collector) Topics() []Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Topic, len(c.events))
	for i, e := range c.events {
		out[i] = e.Topic
	}
	return out
}

// Count returns how many events with the given topic were recorded.
func (c *Collector) Count(topic Topic) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Topic == topic {
			n++
		}
	}
	return n
}
