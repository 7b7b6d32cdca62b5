package cli

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/scrollstory/internal/frames"
)

var framesOpts struct {
	base          string
	start, end    int
	width, height int
	quality       int
	workers       int
	noTag         bool
}

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Render a synthetic image sequence",
	Long: `Renders frames start..end as JPEG files named <base>NNNN.jpg. Every frame
is a flat colour on a hue sweep with a QR code of its file name, which makes
snapshots easy to check against the frame they should show.`,
	Args: cobra.NoArgs,
	RunE: runFrames,
}

func init() {
	f := framesCmd.Flags()
	f.StringVar(&framesOpts.base, "base", "frames/seq-", "path prefix of the frames")
	f.IntVar(&framesOpts.start, "start", 1, "first frame")
	f.IntVar(&framesOpts.end, "end", 255, "last frame")
	f.IntVar(&framesOpts.width, "width", 1280, "frame width")
	f.IntVar(&framesOpts.height, "height", 720, "frame height")
	f.IntVar(&framesOpts.quality, "quality", frames.DefaultQuality, "JPEG quality")
	f.IntVar(&framesOpts.workers, "workers", runtime.NumCPU(), "parallel encoders")
	f.BoolVar(&framesOpts.noTag, "no-tag", false, "skip the QR tag")
	rootCmd.AddCommand(framesCmd)
}

func runFrames(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	total := framesOpts.end - framesOpts.start + 1
	fmt.Fprintf(out, "[*] Frames: %s%04d..%04d | %dx%d | workers: %d\n",
		framesOpts.base, framesOpts.start, framesOpts.end, framesOpts.width, framesOpts.height, framesOpts.workers)

	began := time.Now()
	step := max(total/10, 1)
	var mu sync.Mutex
	err := frames.Generate(cmd.Context(), frames.Options{
		Base:    framesOpts.base,
		Start:   framesOpts.start,
		End:     framesOpts.end,
		Width:   framesOpts.width,
		Height:  framesOpts.height,
		Quality: framesOpts.quality,
		Workers: framesOpts.workers,
		NoTag:   framesOpts.noTag,
		Progress: func(done, total int) {
			if done%step == 0 || done == total {
				mu.Lock()
				fmt.Fprintf(out, "[>] Ready: %d/%d\n", done, total)
				mu.Unlock()
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to render frames: %w", err)
	}

	fmt.Fprintf(out, "[+++] %d frames in %s\n", total, time.Since(began).Round(time.Millisecond))
	return nil
}
