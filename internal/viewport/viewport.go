// Package viewport abstracts the host environment the scroll pipeline reacts to:
// element geometry, viewport size and the scroll, resize and visibility
// notifications. The tracker and the player only ever see these interfaces, so
// any host (a browser bridge, a test, the simulated Page) can drive them.
package viewport

// Rect is a bounding box relative to the top-left corner of the viewport.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Metrics describes the viewport in CSS pixels.
type Metrics struct {
	Width            float64
	Height           float64
	DevicePixelRatio float64
}

// PixelRatio returns the device pixel ratio, treating unset as 1.
func (m Metrics) PixelRatio() float64 {
	if m.DevicePixelRatio <= 0 {
		return 1
	}
	return m.DevicePixelRatio
}

// Element is anything with a viewport-relative bounding box.
type Element interface {
	BoundingClientRect() Rect
}

// Container reports the inner size of the box a surface is laid out in.
type Container interface {
	ClientSize() (width, height float64)
}

// SignalSource delivers viewport notifications. Every registration returns a
// cancel func that stops further deliveries to that callback.
type SignalSource interface {
	// Metrics returns the current viewport size.
	Metrics() Metrics
	// OnScroll registers fn to run after every scroll.
	OnScroll(fn func()) (cancel func())
	// OnResize registers fn to run after every viewport resize.
	OnResize(fn func()) (cancel func())
	// ObserveVisibility reports whether el intersects the viewport grown by
	// margin pixels on every side. fn runs once with the initial state and
	// then on every change.
	ObserveVisibility(el Element, margin float64, fn func(visible bool)) (cancel func())
}

// Intersects reports whether r overlaps a viewport of height h grown by margin.
func Intersects(r Rect, h, margin float64) bool {
	return r.Bottom() > -margin && r.Top < h+margin
}
