package generator

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/show"
)

type chaserTarget struct {
	red, green, blue []int
	zoom, strobe     []int
	dimmer           []int
	colorIsIntensity bool
}

type Chaser struct {
	cfg     show.Chaser
	from    colorful.Color
	to      colorful.Color
	targets []chaserTarget
	class   *patch.Classification
}

func NewChaser(cfg *show.Chaser, p *patch.Patch, class *patch.Classification) (*Chaser, error) {
	from, err := colorful.Hex(cfg.StartColor)
	if err != nil {
		return nil, fmt.Errorf("generator: chaser %q start colour: %w", cfg.ID, dmx.ErrValidation)
	}
	to, err := colorful.Hex(cfg.EndColor)
	if err != nil {
		return nil, fmt.Errorf("generator: chaser %q end colour: %w", cfg.ID, dmx.ErrValidation)
	}
	if !(cfg.FadeTime > 0) {
		return nil, fmt.Errorf("generator: chaser %q fade time %v: %w", cfg.ID, cfg.FadeTime, dmx.ErrValidation)
	}

	g := &Chaser{
		cfg:   *cfg,
		from:  from,
		to:    to,
		class: class,
	}
	for _, id := range cfg.Fixtures {
		if p.Fixture(id) == nil {
			continue
		}
		g.targets = append(g.targets, chaserTarget{
			red:              p.Channels(id, patch.AttrRed),
			green:            p.Channels(id, patch.AttrGreen),
			blue:             p.Channels(id, patch.AttrBlue),
			zoom:             p.Channels(id, patch.AttrZoom),
			strobe:           p.Channels(id, patch.AttrStrobe),
			dimmer:           p.Channels(id, patch.AttrDimmer),
			colorIsIntensity: !p.HasDimmer(id),
		})
	}
	return g, nil
}

func (g *Chaser) Kind() Kind { return Overlay }

// Progress returns the blend position between the start and end colour.
func (g *Chaser) Progress(elapsedMs float64, reverse bool) float64 {
	fade := g.cfg.FadeTime
	phase := math.Mod(math.Max(elapsedMs, 0), 2*fade) / fade

	var progress float64
	switch g.cfg.Mode {
	case show.ModePulse:
		if phase < 1 {
			progress = phase
		}
	case show.ModeStrobe:
		if phase < 1 {
			progress = 1
		}
	default:
		if phase < 1 {
			progress = phase
		} else {
			progress = 2 - phase
		}
	}

	if reverse != g.cfg.Reverse {
		progress = 1 - progress
	}
	return progress
}

func (g *Chaser) zoom(elapsedMs float64) float64 {
	z := g.cfg.Zoom
	p := math.Mod(math.Max(elapsedMs, 0), z.Period) / z.Period
	if z.Shape != show.ZoomSaw {
		if p < 0.5 {
			p *= 2
		} else {
			p = 2 - 2*p
		}
	}
	if z.Invert {
		p = 1 - p
	}
	return p * float64(z.Max)
}

func (g *Chaser) Sample(t Time) []Contribution {
	elapsedMs := t.Elapsed * 1000
	c := g.from.BlendRgb(g.to, g.Progress(elapsedMs, t.Reverse)).Clamped()

	dimmer := 255.0
	if g.cfg.Dimmer != nil {
		dimmer = float64(*g.cfg.Dimmer)
	}

	var out []Contribution
	emit := func(chans []int, v float64) {
		for _, ch := range chans {
			out = append(out, Contribution{Channel: ch, Value: dmx.Clamp(v), Class: g.class[ch]})
		}
	}

	for _, tgt := range g.targets {
		scale := 1.0
		if tgt.colorIsIntensity {
			scale = t.Factor
		}
		emit(tgt.red, c.R*255*scale)
		emit(tgt.green, c.G*255*scale)
		emit(tgt.blue, c.B*255*scale)
		emit(tgt.dimmer, dimmer*t.Factor)
		if g.cfg.Strobe != nil {
			emit(tgt.strobe, float64(*g.cfg.Strobe)*t.Factor)
		}
		if g.cfg.Zoom.Enabled {
			emit(tgt.zoom, g.zoom(elapsedMs))
		}
	}
	return out
}
