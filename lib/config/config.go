// Package config loads the qluxd configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"qlux/lib/artnet"
	"qlux/lib/dmx"
	"qlux/lib/engine"
	"qlux/lib/osc"
	"qlux/lib/serialdmx"
)

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel parses Level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

type SerialConfig struct {
	// Port is the serial device; empty runs the transmitter in simulation.
	Port      string        `yaml:"port"`
	Interval  time.Duration `yaml:"interval"`
	BreakBaud int           `yaml:"breakBaud"`
	MAB       time.Duration `yaml:"mab"`
}

type ArtNetConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Target   string        `yaml:"target"`
	Net      int           `yaml:"net"`
	Subnet   int           `yaml:"subnet"`
	Universe int           `yaml:"universe"`
	Refresh  time.Duration `yaml:"refresh"`
}

type OSCConfig struct {
	Listen string `yaml:"listen"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type XTouchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	// Buttons maps button note numbers to play, pause, stop, loop, bank-
	// or bank+. Empty uses the transport section defaults.
	Buttons map[uint8]string `yaml:"buttons,omitempty"`
}

type StreamDeckConfig struct {
	Enabled    bool `yaml:"enabled"`
	Brightness int  `yaml:"brightness"`
}

type SurfacesConfig struct {
	XTouch     XTouchConfig     `yaml:"xtouch"`
	StreamDeck StreamDeckConfig `yaml:"streamdeck"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Show     string         `yaml:"show,omitempty"`
	Tracking bool           `yaml:"tracking"`
	Tick     time.Duration  `yaml:"tick"`
	Serial   SerialConfig   `yaml:"serial"`
	ArtNet   ArtNetConfig   `yaml:"artnet"`
	OSC      OSCConfig      `yaml:"osc"`
	HTTP     HTTPConfig     `yaml:"http"`
	Surfaces SurfacesConfig `yaml:"surfaces"`
}

func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info"},
		Tracking: true,
		Tick:     engine.DefaultTick,
		Serial: SerialConfig{
			Interval:  serialdmx.DefaultInterval,
			BreakBaud: serialdmx.DefaultBreakBaud,
			MAB:       serialdmx.DefaultMAB,
		},
		ArtNet: ArtNetConfig{
			Target:  fmt.Sprintf("255.255.255.255:%d", artnet.Port),
			Refresh: artnet.DefaultRefresh,
		},
		OSC:  OSCConfig{Listen: fmt.Sprintf(":%d", osc.DefaultPort)},
		HTTP: HTTPConfig{Listen: ":8080"},
		Surfaces: SurfacesConfig{
			XTouch:     XTouchConfig{Port: "x-touch"},
			StreamDeck: StreamDeckConfig{Brightness: 60},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Tick <= 0:
		return fmt.Errorf("tick must be positive: %w", dmx.ErrValidation)
	case c.Serial.Interval <= 0:
		return fmt.Errorf("serial interval must be positive: %w", dmx.ErrValidation)
	case c.Serial.BreakBaud <= 0:
		return fmt.Errorf("serial break baud must be positive: %w", dmx.ErrValidation)
	case c.Serial.MAB < 0:
		return fmt.Errorf("serial mab must not be negative: %w", dmx.ErrValidation)
	case c.ArtNet.Net < 0 || c.ArtNet.Net > 127:
		return fmt.Errorf("artnet net %d out of range 0..127: %w", c.ArtNet.Net, dmx.ErrValidation)
	case c.ArtNet.Subnet < 0 || c.ArtNet.Subnet > 15:
		return fmt.Errorf("artnet subnet %d out of range 0..15: %w", c.ArtNet.Subnet, dmx.ErrValidation)
	case c.ArtNet.Universe < 0 || c.ArtNet.Universe > 15:
		return fmt.Errorf("artnet universe %d out of range 0..15: %w", c.ArtNet.Universe, dmx.ErrValidation)
	case c.Surfaces.StreamDeck.Brightness < 0 || c.Surfaces.StreamDeck.Brightness > 100:
		return fmt.Errorf("streamdeck brightness %d out of range 0..100: %w", c.Surfaces.StreamDeck.Brightness, dmx.ErrValidation)
	}
	for note, action := range c.Surfaces.XTouch.Buttons {
		switch action {
		case "play", "pause", "stop", "loop", "bank-", "bank+":
		default:
			return fmt.Errorf("xtouch button %d: unknown action %q: %w", note, action, dmx.ErrValidation)
		}
	}
	return nil
}

// Write saves c as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
