// Package frames renders synthetic image sequences: each frame is a flat
// colour on a hue sweep, tagged with a QR code of its own file name so a
// snapshot can be traced back to the frame it shows.
package frames

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/lucasb-eyer/go-colorful"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollstory/internal/sequence"
	"github.com/ivlev/scrollstory/internal/source"
)

const DefaultQuality = 85

type Options struct {
	Base          string
	Start, End    int
	Width, Height int
	Quality       int
	Workers       int
	// NoTag skips the QR code.
	NoTag bool
	// Progress is called after every written frame with the running count.
	Progress func(done, total int)
}

// Color returns the background of frame id in [start, end].
func Color(start, end, id int) colorful.Color {
	t := float64(id-start) / float64(end-start)
	return colorful.Hsv(300*t, 0.65, 0.85).Clamped()
}

// Render draws frame id.
func Render(opts Options, id int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Rect, &image.Uniform{C: Color(opts.Start, opts.End, id)}, image.Point{}, draw.Src)
	if opts.NoTag {
		return img, nil
	}

	size := min(opts.Width, opts.Height) / 3
	if size < 21 {
		return img, nil
	}
	qr, err := qrcode.New(filepath.Base(source.FrameName(opts.Base, id)), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("frames: tag %d: %w", id, err)
	}
	tag := qr.Image(size)
	at := image.Pt(opts.Width-size-size/8, opts.Height-size-size/8)
	draw.Draw(img, tag.Bounds().Add(at), tag, tag.Bounds().Min, draw.Src)
	return img, nil
}

// Generate writes every frame of opts to disk, opts.Workers at a time.
func Generate(ctx context.Context, opts Options) error {
	if err := sequence.ValidateRange(opts.Start, opts.End); err != nil {
		return err
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("frames: size %dx%d must be positive", opts.Width, opts.Height)
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if dir := filepath.Dir(opts.Base); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("frames: %w", err)
		}
	}

	total := opts.End - opts.Start + 1
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for id := opts.Start; id <= opts.End; id++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := writeFrame(opts, id); err != nil {
				return err
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func writeFrame(opts Options, id int) error {
	img, err := Render(opts, id)
	if err != nil {
		return err
	}

	name := source.FrameName(opts.Base, id)
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("frames: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		f.Close()
		return fmt.Errorf("frames: encode %s: %w", name, err)
	}
	return f.Close()
}
