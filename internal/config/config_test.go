package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "story.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Default(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultStartFrame, cfg.Sequence.Start)
	assert.Equal(t, DefaultEndFrame, cfg.Sequence.End)
	assert.Equal(t, DefaultScrubStart, cfg.Trigger.Start)
	assert.Equal(t, DefaultScrubEnd, cfg.Trigger.End)
	assert.Equal(t, DefaultMargin, cfg.Trigger.Margin)
	assert.Equal(t, DefaultTopic, cfg.MQTT.Topic)
}

func TestLoadConfig_PartialFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `sequence:
  desktop: /assets/sequences/mac/desktop/mac-
  mobile: /assets/sequences/mac/mobile/mac-
  end: 120
trigger:
  start: top top
mqtt:
  url: tcp://localhost:1883
  qos: 1
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/assets/sequences/mac/desktop/mac-", cfg.Sequence.Desktop)
	assert.Equal(t, DefaultStartFrame, cfg.Sequence.Start)
	assert.Equal(t, 120, cfg.Sequence.End)
	assert.Equal(t, "top top", cfg.Trigger.Start)
	assert.Equal(t, DefaultScrubEnd, cfg.Trigger.End)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, DefaultTopic, cfg.MQTT.Topic)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfig(t, `sequence: [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"no desktop base", func(c *Config) { c.Sequence.Desktop = "" }, "sequence.desktop"},
		{"start after end", func(c *Config) { c.Sequence.Start, c.Sequence.End = 10, 5 }, "sequence.end"},
		{"negative start", func(c *Config) { c.Sequence.Start = -1 }, "sequence.start"},
		{"bad interpolation", func(c *Config) { c.Sequence.Interpolation = "lanczos" }, "sequence.interpolation"},
		{"bad scrub", func(c *Config) { c.Trigger.Start = "middle center" }, "trigger.start"},
		{"one-word scrub", func(c *Config) { c.Trigger.End = "bottom" }, "trigger.end"},
		{"zero viewport", func(c *Config) { c.Page.Height = 0 }, "page.width"},
		{"flat trigger", func(c *Config) { c.Page.TriggerHeight = 0 }, "page.trigger_height"},
		{"mqtt without topic", func(c *Config) { c.MQTT.URL, c.MQTT.Topic = "tcp://b:1883", "" }, "mqtt.topic"},
		{"mqtt qos", func(c *Config) { c.MQTT.URL, c.MQTT.QoS = "tcp://b:1883", 3 }, "mqtt.qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Sequence.Desktop = "mac-"
			tt.edit(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Sequence.Desktop = "frames/mac-"
	cfg.Page.DevicePixelRatio = 2
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}
