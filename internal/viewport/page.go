package viewport

import "sync"

// Page is a deterministic, in-memory SignalSource. Boxes are placed in document
// coordinates; scrolling shifts their viewport-relative rects. Scroll and resize
// listeners run before visibility observers, mirroring how a browser delivers
// scroll events ahead of intersection callbacks.
//
// Callbacks run on the goroutine calling ScrollTo or Resize, outside the page
// lock, so they may register or cancel other callbacks.
type Page struct {
	mu      sync.Mutex
	metrics Metrics
	scrollY float64
	nextID  int

	scroll    []listener
	resize    []listener
	observers []*observer
}

type listener struct {
	id int
	fn func()
}

type observer struct {
	id      int
	el      Element
	margin  float64
	fn      func(bool)
	visible bool
}

// NewPage creates a page with a width × height viewport scrolled to the top.
func NewPage(width, height, devicePixelRatio float64) *Page {
	return &Page{
		metrics: Metrics{Width: width, Height: height, DevicePixelRatio: devicePixelRatio},
	}
}

// Box is a rectangle placed on a Page.
type Box struct {
	page *Page
	mu   sync.Mutex
	top  float64
	left float64
	w, h float64
}

// AddBox places a box at document offset (left, top).
func (p *Page) AddBox(left, top, width, height float64) *Box {
	return &Box{page: p, top: top, left: left, w: width, h: height}
}

// BoundingClientRect implements Element.
func (b *Box) BoundingClientRect() Rect {
	scrollY := b.page.ScrollY()
	b.mu.Lock()
	defer b.mu.Unlock()
	return Rect{Left: b.left, Top: b.top - scrollY, Width: b.w, Height: b.h}
}

// ClientSize implements Container.
func (b *Box) ClientSize() (float64, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.w, b.h
}

// SetSize changes the box size without notifying anyone; pair it with a
// Page.Resize when it models a layout change.
func (b *Box) SetSize(width, height float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.w, b.h = width, height
}

// Viewport returns a Container that always has the size of the viewport.
func (p *Page) Viewport() Container {
	return viewportContainer{p}
}

type viewportContainer struct{ p *Page }

func (v viewportContainer) ClientSize() (float64, float64) {
	m := v.p.Metrics()
	return m.Width, m.Height
}

// Metrics implements SignalSource.
func (p *Page) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// ScrollY returns the current vertical scroll offset.
func (p *Page) ScrollY() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY
}

// OnScroll implements SignalSource.
func (p *Page) OnScroll(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.scroll = append(p.scroll, listener{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.scroll = removeListener(p.scroll, id)
	}
}

// OnResize implements SignalSource.
func (p *Page) OnResize(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.resize = append(p.resize, listener{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.resize = removeListener(p.resize, id)
	}
}

// ObserveVisibility implements SignalSource.
func (p *Page) ObserveVisibility(el Element, margin float64, fn func(visible bool)) func() {
	p.mu.Lock()
	p.nextID++
	o := &observer{id: p.nextID, el: el, margin: margin, fn: fn}
	h := p.metrics.Height
	p.mu.Unlock()

	// BoundingClientRect reads the scroll offset, so p.mu must not be held.
	visible := Intersects(el.BoundingClientRect(), h, margin)
	p.mu.Lock()
	o.visible = visible
	p.observers = append(p.observers, o)
	p.mu.Unlock()
	fn(visible)

	id := o.id
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, ob := range p.observers {
			if ob.id == id {
				p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of registered scroll listeners, resize
// listeners and visibility observers.
func (p *Page) Listeners() (scroll, resize, observers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.scroll), len(p.resize), len(p.observers)
}

// ScrollTo moves the page to document offset y and delivers notifications.
func (p *Page) ScrollTo(y float64) {
	p.mu.Lock()
	p.scrollY = y
	fns := snapshot(p.scroll)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	p.checkVisibility()
}

// ScrollBy scrolls relative to the current offset.
func (p *Page) ScrollBy(dy float64) {
	p.ScrollTo(p.ScrollY() + dy)
}

// Resize changes the viewport and delivers notifications.
func (p *Page) Resize(width, height, devicePixelRatio float64) {
	p.mu.Lock()
	p.metrics = Metrics{Width: width, Height: height, DevicePixelRatio: devicePixelRatio}
	fns := snapshot(p.resize)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	p.checkVisibility()
}

func (p *Page) checkVisibility() {
	p.mu.Lock()
	obs := make([]*observer, len(p.observers))
	copy(obs, p.observers)
	h := p.metrics.Height
	p.mu.Unlock()

	for _, o := range obs {
		visible := Intersects(o.el.BoundingClientRect(), h, o.margin)
		p.mu.Lock()
		changed := visible != o.visible
		o.visible = visible
		p.mu.Unlock()
		if changed {
			o.fn(visible)
		}
	}
}

func snapshot(ls []listener) []func() {
	fns := make([]func(), len(ls))
	for i, l := range ls {
		fns[i] = l.fn
	}
	return fns
}

func removeListener(ls []listener, id int) []listener {
	for i, l := range ls {
		if l.id == id {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}
