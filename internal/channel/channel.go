// Package channel is a synchronous publish/subscribe bus with strongly typed topics.
//
// A Topic binds a name to exactly one payload type, so publisher and subscriber
// share the payload contract instead of re-deriving it at each call site:
//
//	var ScrollUpdate = channel.NewTopic[Progress]("scrollUpdate")
//
//	unsub := channel.Subscribe(bus, ScrollUpdate, func(p Progress) { ... })
//	defer unsub()
//	_ = channel.Publish(bus, ScrollUpdate, Progress{Percentage: 42})
//
// Publish runs every handler of the topic in registration order before it
// returns. Nothing is buffered: an event published to a topic without
// subscribers is dropped.
package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	// ErrHandlerPanic is wrapped by the error Publish returns when a handler panicked.
	ErrHandlerPanic = errors.New("channel: handler panicked")
	// ErrBusClosed is returned by Publish after Close.
	ErrBusClosed = errors.New("channel: bus is closed")
)

// Topic is a named event stream carrying payloads of type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the wire name of the topic.
func (t Topic[T]) Name() string { return t.name }

type subscriber struct {
	id      uint64
	deliver func(any)
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	Panics    uint64
}

// Bus holds the topic → subscriber table.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscriber
	nextID uint64
	closed bool
	logger *slog.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// New creates an empty bus. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		topics: make(map[string][]subscriber),
		logger: logger,
	}
}

// Subscribe appends fn to the handler list of topic and returns a func that
// removes it again. Calling the returned func more than once is harmless.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic.name] = append(b.topics[topic.name], subscriber{
		id: id,
		deliver: func(v any) {
			fn(v.(T))
		},
	})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic.name, id) })
	}
}

// Publish delivers payload to every handler of topic, in registration order,
// on the calling goroutine. A panicking handler does not stop delivery to the
// remaining handlers; the panics are reported in the returned error.
func Publish[T any](b *Bus, topic Topic[T], payload T) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]subscriber, len(b.topics[topic.name]))
	copy(subs, b.topics[topic.name])
	b.mu.RUnlock()

	b.published.Add(1)
	if len(subs) == 0 {
		b.dropped.Add(1)
		return nil
	}

	var errs []error
	for _, s := range subs {
		if err := b.deliver(topic.name, s, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(topic string, s subscriber, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.logger.Error("channel: handler panicked", "topic", topic, "subscriber", s.id, "panic", r)
			err = fmt.Errorf("%w: topic %q: %v", ErrHandlerPanic, topic, r)
		}
	}()
	s.deliver(payload)
	return nil
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Subscribers returns the number of handlers registered for the named topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
		Panics:    b.panics.Load(),
	}
}

// Close drops every subscriber. Later publishes return ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string][]subscriber)
}
