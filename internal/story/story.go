// Package story wires a scroll-driven image sequence: one bus, one progress
// tracker publishing on it and one sequence player drawing from it.
//
// Every configuration problem is reported by New, before anything observes the
// viewport or fetches a frame. Start attaches the observers and begins the
// prefetch; Wait reports the error that stopped the prefetch, if any.
package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/ivlev/scrollstory/internal/channel"
	"github.com/ivlev/scrollstory/internal/scrub"
	"github.com/ivlev/scrollstory/internal/sequence"
	"github.com/ivlev/scrollstory/internal/source"
	"github.com/ivlev/scrollstory/internal/surface"
	"github.com/ivlev/scrollstory/internal/system"
	"github.com/ivlev/scrollstory/internal/tracker"
	"github.com/ivlev/scrollstory/internal/viewport"
)

// DefaultBreakpoint is the viewport width, in CSS pixels, below which the
// mobile sequence is used.
const DefaultBreakpoint = 768.0

// ErrInvalidConfig is wrapped by every *ConfigError.
var ErrInvalidConfig = errors.New("story: invalid configuration")

// ConfigError names the option that made New fail.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("story: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("story: %s: %s", e.Field, e.Message)
}

// Unwrap exposes both ErrInvalidConfig and the underlying cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidConfig, e.Err}
	}
	return []error{ErrInvalidConfig}
}

// Options are the construction parameters of a Story.
type Options struct {
	DesktopBase string
	MobileBase  string
	StartFrame  int
	EndFrame    int
	ScrubStart  string
	ScrubEnd    string
	// Margin is the visibility look-ahead in pixels, see tracker.Config.
	Margin float64
	// Breakpoint defaults to DefaultBreakpoint.
	Breakpoint    float64
	Interpolation string
	Logger        *slog.Logger
}

// Deps are the host collaborators a Story runs against.
type Deps struct {
	Signals   viewport.SignalSource
	Trigger   viewport.Element
	Container viewport.Container
	// Open resolves a base to a frame loader. Defaults to source.Open.
	Open func(base string) (source.Loader, error)
}

// Story is a running scroll-driven sequence.
type Story struct {
	bus       *channel.Bus
	tracker   *tracker.Tracker
	player    *sequence.Player
	loader    source.Loader
	signals   viewport.SignalSource
	container viewport.Container
	base      string
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Validate checks opts without touching any collaborator.
func Validate(opts Options) error {
	if err := sequence.ValidateRange(opts.StartFrame, opts.EndFrame); err != nil {
		return &ConfigError{Field: "frames", Message: "start must be lower than end and both non-negative", Err: err}
	}
	if _, err := scrub.Parse(opts.ScrubStart); err != nil {
		return &ConfigError{Field: "scrub_start", Message: "expected two of top, center, bottom", Err: err}
	}
	if _, err := scrub.Parse(opts.ScrubEnd); err != nil {
		return &ConfigError{Field: "scrub_end", Message: "expected two of top, center, bottom", Err: err}
	}
	if opts.DesktopBase == "" {
		return &ConfigError{Field: "desktop_base", Message: "required"}
	}
	if opts.Breakpoint < 0 {
		return &ConfigError{Field: "breakpoint", Message: "must not be negative"}
	}
	if _, err := surface.ParseInterpolation(opts.Interpolation); err != nil {
		return &ConfigError{Field: "interpolation", Message: "expected smooth, bilinear or nearest", Err: err}
	}
	return nil
}

// New validates opts and assembles the pipeline. Nothing is observed or
// fetched until Start.
func New(opts Options, deps Deps) (*Story, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}
	switch {
	case deps.Signals == nil:
		return nil, &ConfigError{Field: "signals", Message: "required"}
	case deps.Trigger == nil:
		return nil, &ConfigError{Field: "trigger", Message: "required"}
	case deps.Container == nil:
		return nil, &ConfigError{Field: "container", Message: "required"}
	}
	if deps.Open == nil {
		deps.Open = source.Open
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breakpoint := opts.Breakpoint
	if breakpoint == 0 {
		breakpoint = DefaultBreakpoint
	}

	base := SelectBase(opts.DesktopBase, opts.MobileBase, breakpoint, deps.Signals.Metrics())
	loader, err := deps.Open(base)
	if err != nil {
		return nil, fmt.Errorf("story: open frames %q: %w", base, err)
	}
	if c, ok := loader.(source.Counter); ok && opts.EndFrame >= c.FrameCount() {
		loader.Close()
		return nil, &ConfigError{
			Field:   "frames",
			Message: fmt.Sprintf("end frame %d is past the last of %d frames", opts.EndFrame, c.FrameCount()),
		}
	}

	interp, _ := surface.ParseInterpolation(opts.Interpolation)
	w, h := backingSize(deps.Container, deps.Signals.Metrics())
	surf := surface.New(w, h, interp)

	bus := channel.New(logger)
	player, err := sequence.New(bus, loader, surf, sequence.Config{
		Start:  opts.StartFrame,
		End:    opts.EndFrame,
		Logger: logger,
	})
	if err != nil {
		loader.Close()
		return nil, err
	}
	tr, err := tracker.New(deps.Signals, deps.Trigger, bus, tracker.Config{
		Start:  opts.ScrubStart,
		End:    opts.ScrubEnd,
		Margin: opts.Margin,
		Logger: logger,
	})
	if err != nil {
		loader.Close()
		return nil, err
	}

	return &Story{
		bus:       bus,
		tracker:   tr,
		player:    player,
		loader:    loader,
		signals:   deps.Signals,
		container: deps.Container,
		base:      base,
		logger:    logger,
	}, nil
}

// SelectBase picks the mobile base for viewports narrower than breakpoint,
// when one is configured.
func SelectBase(desktop, mobile string, breakpoint float64, m viewport.Metrics) string {
	if mobile != "" && m.Width < breakpoint {
		return mobile
	}
	return desktop
}

func backingSize(c viewport.Container, m viewport.Metrics) (int, int) {
	w, h := c.ClientSize()
	ratio := m.PixelRatio()
	return int(math.Round(w * ratio)), int(math.Round(h * ratio))
}

// Start sizes the surface, starts prefetching and attaches the tracker.
// The player's resize listener is registered before the tracker's so a
// resized surface is in place when the tracker republishes progress.
func (s *Story) Start(ctx context.Context) {
	start, end := s.player.Range()
	w, h := s.player.Surface().Size()
	needed := system.EstimateCache(end-start+1, w, h)
	if budget, err := system.CheckCache(needed); err != nil {
		s.logger.Debug("story: memory check unavailable", "error", err)
	} else if !budget.Fits() {
		s.logger.Warn("story: frame cache may not fit in memory", "budget", budget.String())
	}

	s.logger.Info("story: starting", "base", s.base, "start", start, "end", end)
	s.player.AttachResize(s.signals, s.container)
	s.player.Start(ctx)
	s.tracker.Start()
}

// Wait blocks until the prefetch ends.
func (s *Story) Wait() error {
	return s.player.Wait()
}

// Close detaches every observer and subscriber, waits for a fetch still in
// flight and then releases the loader. Closing twice is harmless.
func (s *Story) Close() error {
	s.closeOnce.Do(func() {
		s.tracker.Close()
		s.player.Close()
		// Wait reports the prefetch error; here only the goroutine matters.
		_ = s.player.Wait()
		s.bus.Close()
		s.closeErr = s.loader.Close()
	})
	return s.closeErr
}

// Bus returns the bus progress is published on.
func (s *Story) Bus() *channel.Bus { return s.bus }

// Tracker returns the progress tracker.
func (s *Story) Tracker() *tracker.Tracker { return s.tracker }

// Player returns the sequence player.
func (s *Story) Player() *sequence.Player { return s.player }

// Base returns the frame base chosen for the viewport.
func (s *Story) Base() string { return s.base }
