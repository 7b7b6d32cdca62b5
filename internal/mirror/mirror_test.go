package mirror

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scrollstory/internal/channel"
	"github.com/ivlev/scrollstory/internal/events"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeToken struct {
	mqtt.Token
	acked bool
	err   error
}

func (t *fakeToken) Wait() bool                     { return t.acked }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.acked }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []message
	token func(n int) *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, message{topic, qos, retained, string(payload.([]byte))})
	if p.token != nil {
		return p.token(len(p.msgs))
	}
	return &fakeToken{acked: true}
}

func TestForwardsProgress(t *testing.T) {
	bus := channel.New(quiet)
	pub := &fakePublisher{}
	m := New(pub, Config{Topic: "story/progress", QoS: 1, Retained: true, Logger: quiet})
	m.Attach(bus)
	m.Attach(bus)
	assert.Equal(t, 1, bus.Subscribers(events.ScrollUpdate.Name()))

	for _, pct := range []float64{0, 42.5, 100} {
		require.NoError(t, channel.Publish(bus, events.ScrollUpdate, events.Progress{Percentage: pct}))
	}
	m.Flush()

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, message{"story/progress", 1, true, `{"percentage":0}`}, pub.msgs[0])
	assert.JSONEq(t, `{"percentage":42.5}`, pub.msgs[1].payload)
	assert.JSONEq(t, `{"percentage":100}`, pub.msgs[2].payload)

	sent, failed := m.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Zero(t, failed)
}

func TestCountsFailures(t *testing.T) {
	bus := channel.New(quiet)
	pub := &fakePublisher{token: func(n int) *fakeToken {
		switch n {
		case 1:
			return &fakeToken{acked: false}
		case 2:
			return &fakeToken{acked: true, err: errors.New("not connected")}
		}
		return &fakeToken{acked: true}
	}}
	m := New(pub, Config{Topic: "p", Timeout: time.Millisecond, Logger: quiet})
	m.Attach(bus)

	for i := 0; i < 3; i++ {
		require.NoError(t, channel.Publish(bus, events.ScrollUpdate, events.Progress{Percentage: float64(i)}))
	}
	m.Flush()

	sent, failed := m.Stats()
	assert.Equal(t, uint64(1), sent)
	assert.Equal(t, uint64(2), failed)
}

func TestDetach(t *testing.T) {
	bus := channel.New(quiet)
	pub := &fakePublisher{}
	m := New(pub, Config{Topic: "p", Logger: quiet})
	m.Attach(bus)
	m.Detach()

	assert.Zero(t, bus.Subscribers(events.ScrollUpdate.Name()))
	require.NoError(t, channel.Publish(bus, events.ScrollUpdate, events.Progress{Percentage: 10}))
	assert.Empty(t, pub.msgs)
}

func TestLateDeliveryAfterDetach(t *testing.T) {
	bus := channel.New(quiet)
	pub := &fakePublisher{}
	m := New(pub, Config{Topic: "p", Logger: quiet})
	m.Attach(bus)
	m.Detach()

	// A publish that copied the subscriber list before Detach still calls in.
	m.forward(events.Progress{Percentage: 55})
	m.Flush()

	assert.Empty(t, pub.msgs)
	sent, failed := m.Stats()
	assert.Zero(t, sent+failed)

	m.Attach(bus)
	require.NoError(t, channel.Publish(bus, events.ScrollUpdate, events.Progress{Percentage: 60}))
	m.Detach()
	assert.Len(t, pub.msgs, 1, "reattaching resumes forwarding")
}
