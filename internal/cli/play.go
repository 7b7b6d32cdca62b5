package cli

import (
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/scrollstory/internal/config"
	"github.com/ivlev/scrollstory/internal/mirror"
	"github.com/ivlev/scrollstory/internal/script"
	"github.com/ivlev/scrollstory/internal/sequence"
	"github.com/ivlev/scrollstory/internal/story"
	"github.com/ivlev/scrollstory/internal/viewport"
)

var playOpts struct {
	base       string
	scriptPath string
	sweep      int
	output     string
	wait       bool
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Replay a scroll script against a simulated page",
	Long: `Builds a page with one trigger element, plays the configured sequence on it
and replays a scroll script, writing a PNG snapshot of the surface wherever a
step asks for one. Without --script the page is swept from the top to past the
trigger in --sweep steps, snapshotting every step.`,
	Args: cobra.NoArgs,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.StringVar(&playOpts.base, "base", "", "desktop frame base, overrides sequence.desktop")
	f.StringVar(&playOpts.scriptPath, "script", "", "YAML scroll script")
	f.IntVar(&playOpts.sweep, "sweep", 10, "steps of the default sweep")
	f.StringVarP(&playOpts.output, "output", "o", "", "snapshot directory, overrides output")
	f.BoolVar(&playOpts.wait, "wait", true, "wait for every frame before scrolling")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger := newLogger()

	cfg, err := loadPlayConfig()
	if err != nil {
		return err
	}

	page := viewport.NewPage(cfg.Page.Width, cfg.Page.Height, cfg.Page.DevicePixelRatio)
	trigger := page.AddBox(0, cfg.Page.TriggerTop, cfg.Page.Width, cfg.Page.TriggerHeight)

	s, err := story.New(storyOptions(cfg, logger), story.Deps{
		Signals:   page,
		Trigger:   trigger,
		Container: page.Viewport(),
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.MQTT.URL != "" {
		m, err := startMirror(cfg, logger, s)
		if err != nil {
			return err
		}
		defer m.Detach()
	}

	fmt.Fprintf(out, "[*] Sequence: %s | frames %d..%d\n", s.Base(), cfg.Sequence.Start, cfg.Sequence.End)
	fmt.Fprintf(out, "[*] Viewport: %.0fx%.0f @%.1fx | trigger %s → %s\n",
		cfg.Page.Width, cfg.Page.Height, cfg.Page.DevicePixelRatio, cfg.Trigger.Start, cfg.Trigger.End)

	began := time.Now()
	s.Start(cmd.Context())
	if playOpts.wait {
		if err := s.Wait(); err != nil {
			var ferr *sequence.FrameLoadError
			if !errors.As(err, &ferr) {
				return err
			}
			fmt.Fprintf(out, "[!] Prefetch halted at frame %d (%s), playing %d frames\n", ferr.ID, ferr.Name, s.Player().Loaded())
		}
		fmt.Fprintf(out, "[*] Frames loaded: %d in %s\n", s.Player().Loaded(), time.Since(began).Round(time.Millisecond))
	}

	sc, err := loadScript(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	snapshots := 0
	err = script.Play(sc, page, func(i int, st script.Step) error {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		cur, drawn := s.Player().Current()
		logger.Debug("play: step", "step", i, "scroll", page.ScrollY(), "frame", cur, "state", s.Tracker().State().String())
		if st.Snapshot == "" {
			return nil
		}
		path := filepath.Join(cfg.Output, st.Snapshot+".png")
		if err := writeSnapshot(s, path); err != nil {
			return err
		}
		snapshots++
		if drawn {
			fmt.Fprintf(out, "[>] %s: frame %d\n", path, cur)
		} else {
			fmt.Fprintf(out, "[>] %s: blank\n", path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to play script: %w", err)
	}

	stats := s.Bus().Stats()
	fmt.Fprintf(out, "[+++] %d snapshots | %d progress events (%d dropped)\n", snapshots, stats.Published, stats.Dropped)
	return nil
}

func loadPlayConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if config.IsValidationError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if playOpts.base != "" {
		cfg.Sequence.Desktop = playOpts.base
	}
	if playOpts.output != "" {
		cfg.Output = playOpts.output
	}
	return cfg, cfg.Validate()
}

func storyOptions(cfg *config.Config, logger *slog.Logger) story.Options {
	return story.Options{
		DesktopBase:   cfg.Sequence.Desktop,
		MobileBase:    cfg.Sequence.Mobile,
		StartFrame:    cfg.Sequence.Start,
		EndFrame:      cfg.Sequence.End,
		ScrubStart:    cfg.Trigger.Start,
		ScrubEnd:      cfg.Trigger.End,
		Margin:        cfg.Trigger.Margin,
		Breakpoint:    cfg.Sequence.Breakpoint,
		Interpolation: cfg.Sequence.Interpolation,
		Logger:        logger,
	}
}

func startMirror(cfg *config.Config, logger *slog.Logger, s *story.Story) (*mirror.Mirror, error) {
	client, err := mirror.Connect(mirror.ClientConfig{
		URL:      cfg.MQTT.URL,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, mirror.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	m := mirror.New(client, mirror.Config{Topic: cfg.MQTT.Topic, QoS: cfg.MQTT.QoS, Logger: logger})
	m.Attach(s.Bus())
	logger.Info("play: mirroring progress", "broker", cfg.MQTT.URL, "topic", cfg.MQTT.Topic)
	return m, nil
}

func loadScript(cfg *config.Config) (*script.Script, error) {
	if playOpts.scriptPath != "" {
		sc, err := script.ReadScript(playOpts.scriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		return sc, nil
	}
	return script.Sweep(0, cfg.Page.TriggerTop+cfg.Page.TriggerHeight, playOpts.sweep, "step-")
}

func writeSnapshot(s *story.Story, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := encodeSnapshot(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeSnapshot(w io.Writer, s *story.Story) error {
	if err := png.Encode(w, s.Player().Surface().Snapshot()); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}
