package script

import (
	"errors"
	"fmt"
	"math"
)

// Script is a scripted scroll session replayed against a page.
type Script struct {
	Version string `yaml:"version"`
	Steps   []Step `yaml:"steps"`
}

// Step does exactly one of scrolling or resizing, then optionally snapshots
// the surface under the given name.
type Step struct {
	ScrollTo *float64 `yaml:"scroll_to,omitempty"`
	ScrollBy *float64 `yaml:"scroll_by,omitempty"`
	Resize   *Size    `yaml:"resize,omitempty"`
	Snapshot string   `yaml:"snapshot,omitempty"`
}

// Size is a viewport size in CSS pixels
type Size struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio,omitempty"`
}

// Driver is the page a script acts on.
type Driver interface {
	ScrollTo(y float64)
	ScrollBy(dy float64)
	Resize(width, height, devicePixelRatio float64)
}

var ErrInvalidStep = errors.New("script: invalid step")

// Validate checks that every step does exactly one thing.
func (s *Script) Validate() error {
	for i, st := range s.Steps {
		actions := 0
		if st.ScrollTo != nil {
			actions++
		}
		if st.ScrollBy != nil {
			actions++
		}
		if st.Resize != nil {
			actions++
			if st.Resize.Width <= 0 || st.Resize.Height <= 0 {
				return fmt.Errorf("%w %d: resize needs a positive size", ErrInvalidStep, i)
			}
		}
		if actions > 1 {
			return fmt.Errorf("%w %d: more than one action", ErrInvalidStep, i)
		}
		if actions == 0 && st.Snapshot == "" {
			return fmt.Errorf("%w %d: empty", ErrInvalidStep, i)
		}
	}
	return nil
}

// Play replays s on d. after runs once per step, once the step has been
// delivered; returning an error stops the replay.
func Play(s *Script, d Driver, after func(i int, st Step) error) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for i, st := range s.Steps {
		switch {
		case st.ScrollTo != nil:
			d.ScrollTo(*st.ScrollTo)
		case st.ScrollBy != nil:
			d.ScrollBy(*st.ScrollBy)
		case st.Resize != nil:
			dpr := st.Resize.DevicePixelRatio
			if dpr <= 0 {
				dpr = 1
			}
			d.Resize(st.Resize.Width, st.Resize.Height, dpr)
		}
		if after != nil {
			if err := after(i, st); err != nil {
				return fmt.Errorf("script: step %d: %w", i, err)
			}
		}
	}
	return nil
}

// Sweep scrolls from one offset to another in count even steps, snapshotting
// every step as prefix%03d.
func Sweep(from, to float64, count int, prefix string) (*Script, error) {
	if count < 1 {
		return nil, fmt.Errorf("script: sweep needs at least one step, got %d", count)
	}
	if math.IsNaN(from) || math.IsNaN(to) {
		return nil, fmt.Errorf("script: sweep bounds must be numbers")
	}

	s := &Script{Version: "1.0"}
	for i := 0; i <= count; i++ {
		y := from + (to-from)*float64(i)/float64(count)
		st := Step{ScrollTo: &y}
		if prefix != "" {
			st.Snapshot = fmt.Sprintf("%s%03d", prefix, i)
		}
		s.Steps = append(s.Steps, st)
	}
	return s, nil
}
