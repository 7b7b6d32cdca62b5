// Package surface is the CPU rendering target of the sequence player: an RGBA
// backing sized in device pixels, drawn with scale-to-fill ("cover").
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/scrollstory/internal/viewport"
)

// ErrEmptyImage is returned when drawing an image without pixels.
var ErrEmptyImage = errors.New("surface: image has no pixels")

// Interpolation selects the resampling filter used when scaling frames.
type Interpolation int

const (
	// Smooth uses Catmull-Rom; the default.
	Smooth Interpolation = iota
	// Bilinear trades a little quality for speed.
	Bilinear
	// Nearest disables smoothing.
	Nearest
)

// ParseInterpolation accepts "smooth", "bilinear" and "nearest". Empty means Smooth.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "smooth":
		return Smooth, nil
	case "bilinear":
		return Bilinear, nil
	case "nearest":
		return Nearest, nil
	default:
		return Smooth, fmt.Errorf("surface: unknown interpolation %q", s)
	}
}

func (i Interpolation) String() string {
	switch i {
	case Bilinear:
		return "bilinear"
	case Nearest:
		return "nearest"
	default:
		return "smooth"
	}
}

func (i Interpolation) scaler() xdraw.Scaler {
	switch i {
	case Bilinear:
		return xdraw.ApproxBiLinear
	case Nearest:
		return xdraw.NearestNeighbor
	default:
		return xdraw.CatmullRom
	}
}

// Placement is where a frame lands on the surface, in device pixels. It may
// extend past the surface edges.
type Placement struct {
	X, Y          float64
	Width, Height float64
}

// Cover places a w×h image on a W×H surface with a uniform scale large enough
// to leave no gaps, centered so the overflow is cropped evenly.
func Cover(W, H, w, h float64) Placement {
	scale := math.Max(W/w, H/h)
	dw, dh := w*scale, h*scale
	return Placement{
		X:      W/2 - dw/2,
		Y:      H/2 - dh/2,
		Width:  dw,
		Height: dh,
	}
}

// Rect returns the smallest integer rectangle containing p.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(p.X)),
		int(math.Floor(p.Y)),
		int(math.Ceil(p.X+p.Width)),
		int(math.Ceil(p.Y+p.Height)),
	)
}

// Surface is safe for concurrent use.
type Surface struct {
	mu     sync.Mutex
	img    *image.RGBA
	scaler xdraw.Scaler
	pool   *Pool

	draws atomic.Uint64
}

// New creates a width×height surface.
func New(width, height int, interp Interpolation) *Surface {
	s := &Surface{
		scaler: interp.scaler(),
		pool:   globalPool,
	}
	s.img = s.pool.Get(image.Rect(0, 0, max(width, 0), max(height, 0)))
	return s
}

// Size returns the backing size in device pixels.
func (s *Surface) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img.Rect.Dx(), s.img.Rect.Dy()
}

// Resize replaces the backing with a width×height one. The current content is
// copied into the new backing at the origin, so the last drawn frame stays on
// screen until the next draw instead of flashing blank.
func (s *Surface) Resize(width, height int) {
	width, height = max(width, 0), max(height, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.img
	if old.Rect.Dx() == width && old.Rect.Dy() == height {
		return
	}
	next := s.pool.Get(image.Rect(0, 0, width, height))
	draw.Draw(next, next.Rect, old, image.Point{}, draw.Src)
	s.img = next
	s.pool.Put(old)
}

// Fit resizes the backing to the container size times the device pixel ratio.
func (s *Surface) Fit(c viewport.Container, pixelRatio float64) {
	w, h := c.ClientSize()
	s.Resize(int(math.Round(w*pixelRatio)), int(math.Round(h*pixelRatio)))
}

// DrawCover renders img with scale-to-fill and returns where it landed.
func (s *Surface) DrawCover(img image.Image) (Placement, error) {
	b := img.Bounds()
	if b.Empty() {
		return Placement{}, ErrEmptyImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	W, H := s.img.Rect.Dx(), s.img.Rect.Dy()
	if W == 0 || H == 0 {
		return Placement{}, nil
	}
	p := Cover(float64(W), float64(H), float64(b.Dx()), float64(b.Dy()))
	s.scaler.Scale(s.img, p.Rect(), img, b, xdraw.Src, nil)
	s.draws.Add(1)
	return p, nil
}

// Draws returns how many frames have been drawn.
func (s *Surface) Draws() uint64 {
	return s.draws.Load()
}

// Snapshot returns a copy of the current content.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}
