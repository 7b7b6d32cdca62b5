// Package tracker turns the position of a trigger element relative to the
// viewport into scroll progress and publishes it on the channel bus.
//
// The tracker is dormant until the visibility signal reports the trigger near
// the viewport. It then publishes 0, follows scroll notifications until the
// trigger leaves again, and publishes 100 on the way out.
package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ivlev/scrollstory/internal/channel"
	"github.com/ivlev/scrollstory/internal/events"
	"github.com/ivlev/scrollstory/internal/scrub"
	"github.com/ivlev/scrollstory/internal/viewport"
)

// DefaultMargin is the look-ahead, in pixels, added around the viewport when
// deciding whether the trigger is close enough to start tracking.
const DefaultMargin = 50.0

// State is the lifecycle state of a Tracker.
type State int32

const (
	Inactive State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config configures a Tracker.
type Config struct {
	// Start and End are scrub positions such as "top center".
	Start string
	End   string
	// Margin is the look-ahead in pixels. Zero means DefaultMargin; use a
	// negative value for no look-ahead.
	Margin float64
	Logger *slog.Logger
}

// anchors memoizes the viewport offsets of each anchor.
type anchors struct {
	top, center, bottom float64
}

func anchorsFor(m viewport.Metrics) anchors {
	return anchors{
		top:    scrub.Top.Offset(0, m.Height),
		center: scrub.Center.Offset(0, m.Height),
		bottom: scrub.Bottom.Offset(0, m.Height),
	}
}

func (a anchors) at(anchor scrub.Anchor) float64 {
	switch anchor {
	case scrub.Center:
		return a.center
	case scrub.Bottom:
		return a.bottom
	default:
		return a.top
	}
}

// Tracker publishes events.ScrollUpdate for one trigger element.
type Tracker struct {
	signals viewport.SignalSource
	trigger viewport.Element
	bus     *channel.Bus
	start   scrub.Position
	end     scrub.Position
	margin  float64
	logger  *slog.Logger

	// mu serializes notification handling so events leave in the order the
	// notifications arrived.
	mu             sync.Mutex
	state          atomic.Int32
	cache          anchors
	started        bool
	stopScroll     func()
	stopResize     func()
	stopVisibility func()
}

// New validates cfg and returns an idle tracker. No signal is observed until Start.
func New(signals viewport.SignalSource, trigger viewport.Element, bus *channel.Bus, cfg Config) (*Tracker, error) {
	start, err := scrub.Parse(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("tracker: start: %w", err)
	}
	end, err := scrub.Parse(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("tracker: end: %w", err)
	}

	margin := cfg.Margin
	switch {
	case margin == 0:
		margin = DefaultMargin
	case margin < 0:
		margin = 0
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		signals: signals,
		trigger: trigger,
		bus:     bus,
		start:   start,
		end:     end,
		margin:  margin,
		logger:  logger,
	}, nil
}

// Start attaches the resize listener and the visibility observer. The
// observer may report the trigger visible right away, in which case the
// tracker activates before Start returns.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.State() == Closed || t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.stopResize = t.signals.OnResize(t.onResize)
	t.mu.Unlock()

	stop := t.signals.ObserveVisibility(t.trigger, t.margin, t.onVisibility)

	t.mu.Lock()
	t.stopVisibility = stop
	closed := t.State() == Closed
	t.mu.Unlock()
	if closed {
		stop()
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	return State(t.state.Load())
}

// Close detaches every listener. A closed tracker never publishes again.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() == Closed {
		return
	}
	t.state.Store(int32(Closed))
	for _, stop := range []func(){t.stopScroll, t.stopResize, t.stopVisibility} {
		if stop != nil {
			stop()
		}
	}
	t.stopScroll, t.stopResize, t.stopVisibility = nil, nil, nil
	t.logger.Debug("tracker: closed")
}

func (t *Tracker) onVisibility(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case visible && t.State() == Inactive:
		t.state.Store(int32(Active))
		t.cache = anchorsFor(t.signals.Metrics())
		t.publish(0)
		t.stopScroll = t.signals.OnScroll(t.onScroll)
		t.logger.Debug("tracker: activated", "start", t.start.String(), "end", t.end.String())

	case !visible && t.State() == Active:
		t.state.Store(int32(Inactive))
		if t.stopScroll != nil {
			t.stopScroll()
			t.stopScroll = nil
		}
		t.publish(100)
		t.logger.Debug("tracker: deactivated")
	}
}

func (t *Tracker) onScroll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() != Active {
		return
	}
	t.publish(t.measure())
}

func (t *Tracker) onResize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() != Active {
		return
	}
	t.cache = anchorsFor(t.signals.Metrics())
	t.publish(t.measure())
}

func (t *Tracker) measure() float64 {
	rect := t.trigger.BoundingClientRect()
	return Progress(
		t.start.Element().Offset(rect.Top, rect.Height),
		t.end.Element().Offset(rect.Top, rect.Height),
		t.cache.at(t.start.Viewport()),
		t.cache.at(t.end.Viewport()),
	)
}

func (t *Tracker) publish(percentage float64) {
	if err := channel.Publish(t.bus, events.ScrollUpdate, events.Progress{Percentage: percentage}); err != nil {
		t.logger.Warn("tracker: publish failed", "percentage", percentage, "error", err)
	}
}

// Progress maps anchor positions, all in viewport coordinates, to a
// percentage in [0, 100]. Tracking starts when the element start anchor meets
// the viewport start anchor and ends when the element end anchor meets the
// viewport end anchor; the scroll distance between the two alignments is
// (elementEnd − elementStart) + (viewportStart − viewportEnd).
// A non-positive distance yields 0, so a configuration whose end alignment
// comes before its start alignment always reports 0.
func Progress(elementStart, elementEnd, viewportStart, viewportEnd float64) float64 {
	total := (elementEnd - elementStart) + (viewportStart - viewportEnd)
	if total <= 0 {
		return 0
	}
	traveled := max(0, viewportStart-elementStart)
	return min(traveled/total, 1) * 100
}

// Measure computes progress for rect inside a viewport of height vh.
func Measure(rect viewport.Rect, vh float64, start, end scrub.Position) float64 {
	a := anchorsFor(viewport.Metrics{Height: vh})
	return Progress(
		start.Element().Offset(rect.Top, rect.Height),
		end.Element().Offset(rect.Top, rect.Height),
		a.at(start.Viewport()),
		a.at(end.Viewport()),
	)
}
