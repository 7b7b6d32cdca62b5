package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/scrollstory/internal/scrub"
	"github.com/ivlev/scrollstory/internal/surface"
)

const (
	DefaultStartFrame    = 1
	DefaultEndFrame      = 255
	DefaultScrubStart    = "top center"
	DefaultScrubEnd      = "bottom bottom"
	DefaultMargin        = 50.0
	DefaultBreakpoint    = 768.0
	DefaultInterpolation = "smooth"
	DefaultViewportW     = 1280.0
	DefaultViewportH     = 800.0
	DefaultTopic         = "scrollstory/progress"
)

type Sequence struct {
	Desktop       string  `yaml:"desktop"`
	Mobile        string  `yaml:"mobile,omitempty"`
	Start         int     `yaml:"start"`
	End           int     `yaml:"end"`
	Breakpoint    float64 `yaml:"breakpoint"`
	Interpolation string  `yaml:"interpolation"`
}

type Trigger struct {
	Start  string  `yaml:"start"`
	End    string  `yaml:"end"`
	Margin float64 `yaml:"margin"`
}

// Page describes the simulated document the story is played in.
type Page struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	DevicePixelRatio float64 `yaml:"device_pixel_ratio"`
	TriggerTop       float64 `yaml:"trigger_top"`
	TriggerHeight    float64 `yaml:"trigger_height"`
}

// MQTT mirrors progress to a broker when URL is set.
type MQTT struct {
	URL      string `yaml:"url,omitempty"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type Config struct {
	Sequence Sequence `yaml:"sequence"`
	Trigger  Trigger  `yaml:"trigger"`
	Page     Page     `yaml:"page"`
	MQTT     MQTT     `yaml:"mqtt"`
	// Output is the directory snapshots are written to.
	Output       string `yaml:"output"`
	BuildVersion string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Sequence: Sequence{
			Start:         DefaultStartFrame,
			End:           DefaultEndFrame,
			Breakpoint:    DefaultBreakpoint,
			Interpolation: DefaultInterpolation,
		},
		Trigger: Trigger{
			Start:  DefaultScrubStart,
			End:    DefaultScrubEnd,
			Margin: DefaultMargin,
		},
		Page: Page{
			Width:            DefaultViewportW,
			Height:           DefaultViewportH,
			DevicePixelRatio: 1,
			TriggerTop:       DefaultViewportH,
			TriggerHeight:    2 * DefaultViewportH,
		},
		MQTT:   MQTT{Topic: DefaultTopic},
		Output: "snapshots",
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	s := c.Sequence
	if s.Desktop == "" {
		return ValidationError{Field: "sequence.desktop", Message: "required"}
	}
	if s.Start < 0 || s.End < 0 {
		return ValidationError{Field: "sequence.start", Message: "frames must not be negative"}
	}
	if s.Start >= s.End {
		return ValidationError{Field: "sequence.end", Message: "must be greater than start"}
	}
	if s.Breakpoint < 0 {
		return ValidationError{Field: "sequence.breakpoint", Message: "must not be negative"}
	}
	if _, err := surface.ParseInterpolation(s.Interpolation); err != nil {
		return ValidationError{Field: "sequence.interpolation", Message: "must be smooth, bilinear or nearest"}
	}

	if !scrub.Valid(c.Trigger.Start) {
		return ValidationError{Field: "trigger.start", Message: fmt.Sprintf("invalid scrub position %q", c.Trigger.Start)}
	}
	if !scrub.Valid(c.Trigger.End) {
		return ValidationError{Field: "trigger.end", Message: fmt.Sprintf("invalid scrub position %q", c.Trigger.End)}
	}

	p := c.Page
	if p.Width <= 0 || p.Height <= 0 {
		return ValidationError{Field: "page.width", Message: "viewport must have a positive size"}
	}
	if p.DevicePixelRatio < 0 {
		return ValidationError{Field: "page.device_pixel_ratio", Message: "must not be negative"}
	}
	if p.TriggerHeight <= 0 {
		return ValidationError{Field: "page.trigger_height", Message: "must be positive"}
	}

	if c.MQTT.URL != "" {
		if c.MQTT.Topic == "" {
			return ValidationError{Field: "mqtt.topic", Message: "required when mqtt.url is set"}
		}
		if c.MQTT.QoS > 2 {
			return ValidationError{Field: "mqtt.qos", Message: "must be 0, 1 or 2"}
		}
	}
	return nil
}
