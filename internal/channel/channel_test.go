package channel

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tick struct {
	N int
}

var ticks = NewTopic[tick]("tick")

func quietBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := quietBus()

	var order []string
	Subscribe(b, ticks, func(tk tick) { order = append(order, "first") })
	Subscribe(b, ticks, func(tk tick) { order = append(order, "second") })
	Subscribe(b, ticks, func(tk tick) { order = append(order, "third") })

	require.NoError(t, Publish(b, ticks, tick{N: 1}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPublishIsSynchronous(t *testing.T) {
	b := quietBus()

	got := 0
	Subscribe(b, ticks, func(tk tick) { got = tk.N })

	require.NoError(t, Publish(b, ticks, tick{N: 7}))
	// No waiting: the handler already ran.
	assert.Equal(t, 7, got)
}

func TestPublishWithoutSubscribersDrops(t *testing.T) {
	b := quietBus()

	require.NoError(t, Publish(b, ticks, tick{N: 1}))

	late := 0
	Subscribe(b, ticks, func(tk tick) { late++ })
	assert.Equal(t, 0, late, "events are not replayed to late subscribers")

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestTopicsAreIsolated(t *testing.T) {
	b := quietBus()
	other := NewTopic[string]("other")

	ticksSeen, othersSeen := 0, 0
	Subscribe(b, ticks, func(tick) { ticksSeen++ })
	Subscribe(b, other, func(string) { othersSeen++ })

	require.NoError(t, Publish(b, other, "hello"))
	assert.Equal(t, 0, ticksSeen)
	assert.Equal(t, 1, othersSeen)
}

func TestUnsubscribe(t *testing.T) {
	b := quietBus()

	calls := 0
	unsub := Subscribe(b, ticks, func(tick) { calls++ })
	assert.Equal(t, 1, b.Subscribers(ticks.Name()))

	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers(ticks.Name()))

	require.NoError(t, Publish(b, ticks, tick{}))
	assert.Equal(t, 0, calls)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := quietBus()

	calls := 0
	var unsub func()
	unsub = Subscribe(b, ticks, func(tick) {
		calls++
		unsub()
	})
	Subscribe(b, ticks, func(tick) { calls++ })

	require.NoError(t, Publish(b, ticks, tick{}))
	assert.Equal(t, 2, calls)

	require.NoError(t, Publish(b, ticks, tick{}))
	assert.Equal(t, 3, calls)
}

func TestHandlerPanicIsContained(t *testing.T) {
	b := quietBus()

	after := 0
	Subscribe(b, ticks, func(tick) { panic("boom") })
	Subscribe(b, ticks, func(tick) { after++ })

	err := Publish(b, ticks, tick{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandlerPanic))
	assert.Equal(t, 1, after, "handlers after a panicking one still run")
	assert.Equal(t, uint64(1), b.Stats().Panics)
}

func TestClose(t *testing.T) {
	b := quietBus()
	Subscribe(b, ticks, func(tick) {})

	b.Close()
	assert.ErrorIs(t, Publish(b, ticks, tick{}), ErrBusClosed)
	assert.Equal(t, 0, b.Subscribers(ticks.Name()))
}
