package show

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"qlux/lib/dmx"
)

type Catalog struct {
	Scenes  []*Scene  `json:"scenes,omitempty" yaml:"scenes,omitempty"`
	Chasers []*Chaser `json:"chasers,omitempty" yaml:"chasers,omitempty"`
	Effects []*Effect `json:"effects,omitempty" yaml:"effects,omitempty"`
}

func (c *Catalog) Scene(id string) (*Scene, error) {
	for _, s := range c.Scenes {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("show: scene %q: %w", id, dmx.ErrNotFound)
}

func (c *Catalog) Chaser(id string) (*Chaser, error) {
	for _, ch := range c.Chasers {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("show: chaser %q: %w", id, dmx.ErrNotFound)
}

func (c *Catalog) Effect(id string) (*Effect, error) {
	for _, e := range c.Effects {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("show: effect %q: %w", id, dmx.ErrNotFound)
}

func (c *Catalog) Has(src Source) bool {
	var err error
	switch src.Kind {
	case SourceScene:
		_, err = c.Scene(src.ID)
	case SourceChaser:
		_, err = c.Chaser(src.ID)
	case SourceEffect:
		_, err = c.Effect(src.ID)
	default:
		return false
	}
	return err == nil
}

func (c *Catalog) Validate() error {
	ids := map[SourceKind]map[string]bool{
		SourceScene:  {},
		SourceChaser: {},
		SourceEffect: {},
	}
	dup := func(kind SourceKind, id string) error {
		if id == "" {
			return fmt.Errorf("show: %s with empty id: %w", kind, dmx.ErrValidation)
		}
		if ids[kind][id] {
			return fmt.Errorf("show: duplicate %s id %q: %w", kind, id, dmx.ErrValidation)
		}
		ids[kind][id] = true
		return nil
	}

	for _, s := range c.Scenes {
		if err := dup(SourceScene, s.ID); err != nil {
			return err
		}
		if len(s.Values) > dmx.Channels {
			return fmt.Errorf("show: scene %q has %d values: %w", s.ID, len(s.Values), dmx.ErrValidation)
		}
		for _, v := range s.Values {
			if err := dmx.CheckValue(v); err != nil {
				return fmt.Errorf("show: scene %q: %w", s.ID, err)
			}
		}
		for ch, v := range s.Channels {
			if err := dmx.CheckChannel(ch); err != nil {
				return fmt.Errorf("show: scene %q: %w", s.ID, err)
			}
			if err := dmx.CheckValue(v); err != nil {
				return fmt.Errorf("show: scene %q: %w", s.ID, err)
			}
		}
		for _, fs := range s.Fixtures {
			for _, v := range fs.Channels {
				if err := dmx.CheckValue(v); err != nil {
					return fmt.Errorf("show: scene %q fixture %q: %w", s.ID, fs.ID, err)
				}
			}
		}
	}

	for _, ch := range c.Chasers {
		if err := dup(SourceChaser, ch.ID); err != nil {
			return err
		}
		if err := ch.Validate(); err != nil {
			return err
		}
	}

	for _, e := range c.Effects {
		if err := dup(SourceEffect, e.ID); err != nil {
			return err
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (ch *Chaser) Validate() error {
	for _, hex := range []string{ch.StartColor, ch.EndColor} {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("show: chaser %q colour %q: %w", ch.ID, hex, dmx.ErrValidation)
		}
	}
	if !(ch.FadeTime > 0) {
		return fmt.Errorf("show: chaser %q fade time %v must be positive: %w", ch.ID, ch.FadeTime, dmx.ErrValidation)
	}
	switch ch.Mode {
	case ModePingPong, ModePulse, ModeStrobe, "":
	default:
		return fmt.Errorf("show: chaser %q unknown mode %q: %w", ch.ID, ch.Mode, dmx.ErrValidation)
	}
	if ch.Zoom.Enabled {
		if !(ch.Zoom.Period > 0) {
			return fmt.Errorf("show: chaser %q zoom period %v must be positive: %w", ch.ID, ch.Zoom.Period, dmx.ErrValidation)
		}
		switch ch.Zoom.Shape {
		case ZoomTriangle, ZoomSaw, "":
		default:
			return fmt.Errorf("show: chaser %q unknown zoom shape %q: %w", ch.ID, ch.Zoom.Shape, dmx.ErrValidation)
		}
		if err := dmx.CheckValue(ch.Zoom.Max); err != nil {
			return fmt.Errorf("show: chaser %q zoom: %w", ch.ID, err)
		}
	}
	for _, p := range []*int{ch.Strobe, ch.Dimmer} {
		if p == nil {
			continue
		}
		if err := dmx.CheckValue(*p); err != nil {
			return fmt.Errorf("show: chaser %q: %w", ch.ID, err)
		}
	}
	return nil
}

func (e *Effect) Validate() error {
	switch e.Waveform {
	case WaveSine, WaveSquare, WaveSaw, WaveRamp, WaveStrobe:
	default:
		return fmt.Errorf("show: effect %q unknown waveform %q: %w", e.ID, e.Waveform, dmx.ErrValidation)
	}
	if e.Speed < 0 || e.Speed != e.Speed {
		return fmt.Errorf("show: effect %q speed %v: %w", e.ID, e.Speed, dmx.ErrValidation)
	}
	if e.Wings < 0 {
		return fmt.Errorf("show: effect %q wings %d: %w", e.ID, e.Wings, dmx.ErrValidation)
	}
	if e.Attribute == "" {
		return fmt.Errorf("show: effect %q has no attribute: %w", e.ID, dmx.ErrValidation)
	}
	return nil
}
