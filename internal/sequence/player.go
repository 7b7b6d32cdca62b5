// Package sequence plays an image sequence driven by scroll progress.
//
// A Player prefetches its frames strictly in ascending order, one request at
// a time, and draws the frame matching the latest events.ScrollUpdate onto its
// surface. A frame that has not arrived yet is simply not drawn; whatever is
// on the surface stays there.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollstory/internal/channel"
	"github.com/ivlev/scrollstory/internal/events"
	"github.com/ivlev/scrollstory/internal/source"
	"github.com/ivlev/scrollstory/internal/surface"
	"github.com/ivlev/scrollstory/internal/viewport"
)

// ErrInvalidRange is wrapped when the frame bounds are unusable.
var ErrInvalidRange = errors.New("sequence: invalid frame range")

// FrameLoadError reports the frame that stopped the prefetch chain.
type FrameLoadError struct {
	ID   int
	Name string
	Err  error
}

func (e *FrameLoadError) Error() string {
	return fmt.Sprintf("sequence: frame %d (%s): %v", e.ID, e.Name, e.Err)
}

func (e *FrameLoadError) Unwrap() error { return e.Err }

// Config configures a Player.
type Config struct {
	Start  int
	End    int
	Logger *slog.Logger
}

// ValidateRange checks 0 ≤ start < end.
func ValidateRange(start, end int) error {
	if start < 0 || end < 0 {
		return fmt.Errorf("%w: frames must not be negative (start %d, end %d)", ErrInvalidRange, start, end)
	}
	if start >= end {
		return fmt.Errorf("%w: start %d must be lower than end %d", ErrInvalidRange, start, end)
	}
	return nil
}

// FrameIndex maps a percentage to a frame number: floor(end/100 × progress),
// clamped into [start, end].
func FrameIndex(start, end int, progress float64) int {
	if math.IsNaN(progress) {
		progress = 0
	}
	id := int(math.Floor(float64(end) * progress / 100))
	return min(max(id, start), end)
}

// Player owns the frame cache and the surface.
type Player struct {
	bus     *channel.Bus
	loader  source.Loader
	surface *surface.Surface
	start   int
	end     int
	logger  *slog.Logger

	mu       sync.RWMutex
	frames   []image.Image // frames[i] holds frame start+i
	queue    []int
	inFlight int
	current  int
	stopped  bool

	group       *errgroup.Group
	unsubscribe func()
	stopResize  func()
}

// New validates the frame range and builds an idle player.
func New(bus *channel.Bus, loader source.Loader, surf *surface.Surface, cfg Config) (*Player, error) {
	if err := ValidateRange(cfg.Start, cfg.End); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	queue := make([]int, 0, cfg.End-cfg.Start+1)
	for id := cfg.Start; id <= cfg.End; id++ {
		queue = append(queue, id)
	}

	return &Player{
		bus:      bus,
		loader:   loader,
		surface:  surf,
		start:    cfg.Start,
		end:      cfg.End,
		logger:   logger,
		frames:   make([]image.Image, 0, len(queue)),
		queue:    queue,
		inFlight: -1,
		current:  -1,
	}, nil
}

// AttachResize keeps the surface sized to container × device pixel ratio,
// fitting it once right away.
func (p *Player) AttachResize(signals viewport.SignalSource, container viewport.Container) {
	fit := func() {
		p.surface.Fit(container, signals.Metrics().PixelRatio())
	}
	fit()

	stop := signals.OnResize(fit)
	p.mu.Lock()
	p.stopResize = stop
	p.mu.Unlock()
}

// Start subscribes to scroll progress and starts prefetching in the background.
func (p *Player) Start(ctx context.Context) {
	p.mu.Lock()
	if p.group != nil || p.stopped {
		p.mu.Unlock()
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	p.group = g
	p.unsubscribe = channel.Subscribe(p.bus, events.ScrollUpdate, p.onProgress)
	p.mu.Unlock()

	g.Go(func() error {
		return p.prefetch(gctx)
	})
}

// Wait blocks until prefetching ends and returns the error that stopped it,
// typically a *FrameLoadError.
func (p *Player) Wait() error {
	p.mu.RLock()
	g := p.group
	p.mu.RUnlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Close stops scheduling new fetches and detaches from the bus and the
// viewport. A fetch already in flight may still land in the cache.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	p.queue = nil
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if p.stopResize != nil {
		p.stopResize()
		p.stopResize = nil
	}
}

func (p *Player) prefetch(ctx context.Context) error {
	began := time.Now()
	for {
		id, ok := p.next()
		if !ok {
			break
		}

		img, err := p.loader.Load(ctx, id)
		if err != nil {
			p.settle()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			ferr := &FrameLoadError{ID: id, Name: p.loader.Name(id), Err: err}
			p.logger.Error("sequence: frame failed, prefetch halted", "frame", id, "loaded", p.Loaded(), "error", err)
			return ferr
		}
		p.store(id, img)
	}

	p.logger.Info("sequence: prefetch finished",
		"loaded", p.Loaded(),
		"frames", p.end-p.start+1,
		"elapsed", time.Since(began).Round(time.Millisecond))
	return nil
}

// next pops the head of the worklist and marks it in flight.
func (p *Player) next() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || len(p.queue) == 0 {
		return 0, false
	}
	id := p.queue[0]
	p.queue = p.queue[1:]
	p.inFlight = id
	return id, true
}

func (p *Player) store(id int, img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.inFlight = -1
	if id != p.start+len(p.frames) {
		// Only the sequential chain appends, so this cannot happen.
		panic(fmt.Sprintf("sequence: frame %d stored out of order after %d frames", id, len(p.frames)))
	}
	p.frames = append(p.frames, img)
	p.logger.Debug("sequence: frame loaded", "frame", id)
}

func (p *Player) settle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = -1
	p.queue = nil
}

func (p *Player) onProgress(ev events.Progress) {
	id := FrameIndex(p.start, p.end, ev.Percentage)
	img, ok := p.Frame(id)
	if !ok {
		p.logger.Debug("sequence: frame not loaded yet, keeping last draw", "frame", id)
		return
	}
	if _, err := p.surface.DrawCover(img); err != nil {
		p.logger.Warn("sequence: draw failed", "frame", id, "error", err)
		return
	}

	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
}

// Frame returns frame id from the cache.
func (p *Player) Frame(id int) (image.Image, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i := id - p.start
	if i < 0 || i >= len(p.frames) {
		return nil, false
	}
	return p.frames[i], true
}

// Loaded returns the number of cached frames.
func (p *Player) Loaded() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.frames)
}

// QueueLen returns the number of frames still waiting to be requested.
func (p *Player) QueueLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queue)
}

// InFlight returns the frame currently being fetched, if any.
func (p *Player) InFlight() (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.inFlight, p.inFlight >= 0
}

// Current returns the frame last drawn, if any.
func (p *Player) Current() (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current >= 0
}

// Range returns the configured frame bounds.
func (p *Player) Range() (start, end int) {
	return p.start, p.end
}

// Surface returns the rendering surface.
func (p *Player) Surface() *surface.Surface {
	return p.surface
}
