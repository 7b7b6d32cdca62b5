package viewport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxFollowsScroll(t *testing.T) {
	p := NewPage(1280, 800, 1)
	box := p.AddBox(0, 1000, 1280, 2000)

	assert.Equal(t, Rect{Top: 1000, Width: 1280, Height: 2000}, box.BoundingClientRect())

	p.ScrollTo(400)
	r := box.BoundingClientRect()
	assert.Equal(t, 600.0, r.Top)
	assert.Equal(t, 2600.0, r.Bottom())
}

func TestScrollAndResizeListeners(t *testing.T) {
	p := NewPage(1280, 800, 1)

	scrolls, resizes := 0, 0
	cancelScroll := p.OnScroll(func() { scrolls++ })
	p.OnResize(func() { resizes++ })

	p.ScrollBy(10)
	p.ScrollBy(10)
	p.Resize(640, 480, 2)
	assert.Equal(t, 2, scrolls)
	assert.Equal(t, 1, resizes)
	assert.Equal(t, 2.0, p.Metrics().PixelRatio())

	cancelScroll()
	p.ScrollBy(10)
	assert.Equal(t, 2, scrolls)

	s, r, o := p.Listeners()
	assert.Equal(t, 0, s)
	assert.Equal(t, 1, r)
	assert.Equal(t, 0, o)
}

func TestObserveVisibility(t *testing.T) {
	p := NewPage(1000, 800, 1)
	box := p.AddBox(0, 2000, 1000, 500)

	var seen []bool
	p.ObserveVisibility(box, 50, func(v bool) { seen = append(seen, v) })
	assert.Equal(t, []bool{false}, seen, "initial state is reported")

	p.ScrollTo(1200) // box top at 800: inside the 50px look-ahead
	assert.Equal(t, []bool{false, true}, seen)

	p.ScrollTo(1500) // still visible, no new callback
	assert.Equal(t, []bool{false, true}, seen)

	p.ScrollTo(2600) // box bottom at -100
	assert.Equal(t, []bool{false, true, false}, seen)
}

func TestViewportEventOrder(t *testing.T) {
	p := NewPage(1000, 800, 1)
	box := p.AddBox(0, 900, 1000, 500)

	var order []string
	p.ObserveVisibility(box, 0, func(v bool) {
		if v {
			order = append(order, "visible")
		}
	})
	p.OnScroll(func() { order = append(order, "scroll") })

	p.ScrollTo(200)
	assert.Equal(t, []string{"scroll", "visible"}, order)
}

func TestViewportContainer(t *testing.T) {
	p := NewPage(1000, 800, 1)
	c := p.Viewport()

	w, h := c.ClientSize()
	assert.Equal(t, 1000.0, w)
	assert.Equal(t, 800.0, h)

	p.Resize(500, 400, 1)
	w, h = c.ClientSize()
	assert.Equal(t, 500.0, w)
	assert.Equal(t, 400.0, h)
}

func TestMetricsPixelRatioDefault(t *testing.T) {
	assert.Equal(t, 1.0, Metrics{}.PixelRatio())
}

func TestVisibilityUnderConcurrentSignals(t *testing.T) {
	p := NewPage(1000, 800, 1)
	box := p.AddBox(0, 2000, 1000, 500)

	var mu sync.Mutex
	changes := 0
	p.ObserveVisibility(box, 0, func(bool) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for y := 0; y < 50; y++ {
				p.ScrollTo(float64((y * 97 * (i + 1)) % 3000))
			}
		}(i)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				p.Resize(1000, float64(400+n*10), 1)
			}
		}()
	}
	wg.Wait()

	p.ScrollTo(0)
	p.Resize(1000, 800, 1)
	p.ScrollTo(1500) // box top at 500: settled as visible
	mu.Lock()
	assert.Positive(t, changes)
	mu.Unlock()

	var seen []bool
	p.ObserveVisibility(box, 0, func(v bool) { seen = append(seen, v) })
	assert.Equal(t, []bool{true}, seen)
}
