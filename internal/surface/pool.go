package surface

import (
	"image"
	"sync"
)

// Pool recycles *image.RGBA backings by size, so a surface that is resized
// back and forth does not allocate a new buffer every time.
type Pool struct {
	pools map[string]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = NewPool()

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{pools: make(map[string]*sync.Pool)}
}

// Get returns a cleared RGBA with bounds rect.
func (p *Pool) Get(rect image.Rectangle) *image.RGBA {
	key := rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(rect)
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img
}

// Put makes img available to later Gets of the same size. Images of a size
// the pool never handed out are ignored.
func (p *Pool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	key := img.Rect.String()
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
