package generator

import (
	"math"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/show"
)

type effectTarget struct {
	channels []int
	offset   float64 // degrees
}

type Effect struct {
	cfg     show.Effect
	targets []effectTarget
	class   *patch.Classification
}

// NewEffect spreads the phase over the fixtures that have a channel matching
// the effect attribute. Fixtures are split into wings groups that each repeat
// the same phase ramp.
func NewEffect(cfg *show.Effect, p *patch.Patch, class *patch.Classification) *Effect {
	g := &Effect{cfg: *cfg, class: class}

	var matched [][]int
	for _, id := range cfg.Fixtures {
		chans := p.Channels(id, cfg.Attribute)
		if len(chans) == 0 {
			continue
		}
		matched = append(matched, chans)
	}

	wings := max(cfg.Wings, 1)
	perWing := (len(matched) + wings - 1) / wings
	for i, chans := range matched {
		g.targets = append(g.targets, effectTarget{
			channels: chans,
			offset:   float64(i%perWing) / float64(perWing) * cfg.Spread,
		})
	}
	return g
}

func (g *Effect) Kind() Kind { return Overlay }

// Phase returns the phase in degrees of target i at the given time.
func (g *Effect) Phase(i int, elapsed float64, reverse bool) float64 {
	base := elapsed * g.cfg.Speed * 360
	if reverse {
		base = -base
	}
	phase := math.Mod(base+g.targets[i].offset, 360)
	if phase < 0 {
		phase += 360
	}
	return phase
}

// Shape evaluates the waveform at phase degrees.
func (g *Effect) Shape(phase float64) float64 {
	on := g.cfg.Offset + g.cfg.Amplitude
	off := g.cfg.Offset

	switch g.cfg.Waveform {
	case show.WaveSquare:
		if phase < 180 {
			return on
		}
		return off
	case show.WaveSaw:
		return off + g.cfg.Amplitude*(1-phase/360)
	case show.WaveRamp:
		return off + g.cfg.Amplitude*phase/360
	case show.WaveStrobe:
		if phase < 36 {
			return on
		}
		return off
	default:
		return off + g.cfg.Amplitude*(math.Sin(phase*math.Pi/180)+1)/2
	}
}

func (g *Effect) Targets() int {
	return len(g.targets)
}

func (g *Effect) Sample(t Time) []Contribution {
	var out []Contribution
	for i, tgt := range g.targets {
		v := dmx.Clamp(g.Shape(g.Phase(i, t.Elapsed, t.Reverse)) * t.Factor)
		for _, ch := range tgt.channels {
			out = append(out, Contribution{Channel: ch, Value: v, Class: g.class[ch]})
		}
	}
	return out
}
