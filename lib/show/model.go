package show

import (
	"qlux/lib/curve"
)

type SourceKind string

const (
	SourceScene  SourceKind = "scene"
	SourceChaser SourceKind = "chaser"
	SourceEffect SourceKind = "effect"
)

type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`
	ID   string     `json:"id" yaml:"id"`
}

type Track struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Muted      bool     `json:"muted,omitempty" yaml:"muted,omitempty"`
	MuteGroups []string `json:"muteGroups,omitempty" yaml:"muteGroups,omitempty"`
}

type Cue struct {
	ID       string      `json:"id" yaml:"id"`
	Track    string      `json:"track" yaml:"track"`
	Name     string      `json:"name,omitempty" yaml:"name,omitempty"`
	Start    float64     `json:"start" yaml:"start"`
	Duration float64     `json:"duration" yaml:"duration"`
	Source   Source      `json:"source" yaml:"source"`
	Curve    curve.Curve `json:"curve" yaml:"curve"`
	Reverse  bool        `json:"reverse,omitempty" yaml:"reverse,omitempty"`

	// Triggered is the scheduler's edge-detection state.
	Triggered bool `json:"-" yaml:"-"`
}

func (c *Cue) End() float64 {
	return c.Start + c.Duration
}

// Scene is a static look. Values is a dense snapshot starting at channel 1,
// Channels a sparse channel -> value map, and Fixtures sets function labels
// on patched fixtures. Later forms override earlier ones.
type Scene struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Values   []int            `json:"values,omitempty" yaml:"values,omitempty,flow"`
	Channels map[int]int      `json:"channels,omitempty" yaml:"channels,omitempty"`
	Fixtures []FixtureSetting `json:"fixtures,omitempty" yaml:"fixtures,omitempty"`
}

type FixtureSetting struct {
	ID       string         `json:"id" yaml:"id"`
	Channels map[string]int `json:"channels" yaml:"channels"`
}

type ChaserMode string

const (
	ModePingPong ChaserMode = "pingpong"
	ModePulse    ChaserMode = "pulse"
	ModeStrobe   ChaserMode = "strobe"
)

type ZoomShape string

const (
	ZoomTriangle ZoomShape = "triangle"
	ZoomSaw      ZoomShape = "saw"
)

type Zoom struct {
	Enabled bool      `json:"enabled" yaml:"enabled"`
	Period  float64   `json:"period" yaml:"period"` // ms
	Invert  bool      `json:"invert,omitempty" yaml:"invert,omitempty"`
	Shape   ZoomShape `json:"shape,omitempty" yaml:"shape,omitempty"`
	Max     int       `json:"max" yaml:"max"`
}

type Chaser struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	StartColor string     `json:"startColor" yaml:"startColor"`
	EndColor   string     `json:"endColor" yaml:"endColor"`
	FadeTime   float64    `json:"fadeTime" yaml:"fadeTime"` // ms
	Mode       ChaserMode `json:"mode" yaml:"mode"`
	Zoom       Zoom       `json:"zoom" yaml:"zoom"`
	Strobe     *int       `json:"strobe,omitempty" yaml:"strobe,omitempty"`
	Dimmer     *int       `json:"dimmer,omitempty" yaml:"dimmer,omitempty"`
	Reverse    bool       `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	Fixtures   []string   `json:"fixtures" yaml:"fixtures,flow"`
}

type Waveform string

const (
	WaveSine   Waveform = "sine"
	WaveSquare Waveform = "square"
	WaveSaw    Waveform = "saw"
	WaveRamp   Waveform = "ramp"
	WaveStrobe Waveform = "strobe"
)

type Effect struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Waveform  Waveform `json:"waveform" yaml:"waveform"`
	Speed     float64  `json:"speed" yaml:"speed"` // cycles per second
	Amplitude float64  `json:"amplitude" yaml:"amplitude"`
	Offset    float64  `json:"offset" yaml:"offset"`
	Spread    float64  `json:"spread" yaml:"spread"` // degrees
	Wings     int      `json:"wings,omitempty" yaml:"wings,omitempty"`
	Attribute string   `json:"attribute" yaml:"attribute"`
	Fixtures  []string `json:"fixtures" yaml:"fixtures,flow"`
}
