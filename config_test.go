package diesel

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andewx/diesel/driver/soft"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
frames_in_flight = 3
vsync = false
bindless_capacity = 4096
log_level = "debug"
`))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.FramesInFlight)
	assert.False(t, cfg.VSync)
	assert.Equal(t, 4096, cfg.BindlessCapacity)
	assert.Equal(t, DefaultConfig().CubemapCapacity, cfg.CubemapCapacity)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestParseConfigRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":    "frames = 2\n",
		"too many":       "frames_in_flight = 9\n",
		"push alignment": "push_constant_size = 6\n",
		"log level":      "log_level = \"loud\"\n",
		"syntax":         "frames_in_flight = \n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FramesInFlight = 4
	cfg.AppName = "viewer"
	data, err := cfg.Encode()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "diesel.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDeviceUsesConfiguredSlots(t *testing.T) {
	cfg := testConfig()
	cfg.FramesInFlight = 3
	dev := NewDevice(soft.New(), cfg)
	defer dev.Destroy()
	assert.Equal(t, 3, dev.FramesInFlight())
	for i := 0; i < 3; i++ {
		dev.Submit(false)
		dev.AdvanceFrame()
	}
	assert.Equal(t, 0, dev.CurrentFrame())
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	dev := NewDevice(soft.New(), testConfig())
	dev.Destroy()
	assert.Contains(t, buf.String(), "device created")
	assert.Contains(t, buf.String(), "driver=soft")

	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}
