package diesel

import (
	"bytes"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config holds the engine tunables. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// FramesInFlight is the number of frame slots the CPU may record ahead
	// of the GPU.
	FramesInFlight int  `toml:"frames_in_flight"`
	VSync          bool `toml:"vsync"`

	// Bindless table sizes. They are fixed when the ShaderLayout is built.
	BindlessCapacity int `toml:"bindless_capacity"`
	CubemapCapacity  int `toml:"cubemap_capacity"`
	ShadowCapacity   int `toml:"shadow_capacity"`

	PushConstantSize int `toml:"push_constant_size"`

	// Validation enables the driver's validation layers when it has any.
	Validation bool   `toml:"validation"`
	AppName    string `toml:"app_name"`
	LogLevel   string `toml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		FramesInFlight:   2,
		VSync:            true,
		BindlessCapacity: 1024,
		CubemapCapacity:  16,
		ShadowCapacity:   4,
		PushConstantSize: 128,
		AppName:          "diesel",
		LogLevel:         "info",
	}
}

// ParseConfig decodes TOML over DefaultConfig. Unknown keys are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "diesel: parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "diesel: load config")
	}
	return ParseConfig(data)
}

// Encode renders cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c Config) Validate() error {
	switch {
	case c.FramesInFlight < 1 || c.FramesInFlight > 8:
		return errors.Errorf("diesel: frames_in_flight %d out of range [1,8]", c.FramesInFlight)
	case c.BindlessCapacity < 1:
		return errors.Errorf("diesel: bindless_capacity %d", c.BindlessCapacity)
	case c.CubemapCapacity < 1:
		return errors.Errorf("diesel: cubemap_capacity %d", c.CubemapCapacity)
	case c.ShadowCapacity < 1:
		return errors.Errorf("diesel: shadow_capacity %d", c.ShadowCapacity)
	case c.PushConstantSize < 0 || c.PushConstantSize%4 != 0:
		return errors.Errorf("diesel: push_constant_size %d is not a multiple of 4", c.PushConstantSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.Wrapf(err, "diesel: log_level %q", c.LogLevel)
	}
	return l, nil
}
