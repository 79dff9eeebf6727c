package generator

import (
	"maps"
	"slices"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/show"
)

type Scene struct {
	values []Contribution
}

// NewScene resolves a scene against the patch once; sampling is then free of
// lookups. Entries naming unknown fixtures or labels are skipped.
func NewScene(s *show.Scene, p *patch.Patch, class *patch.Classification) *Scene {
	var targets [dmx.Channels]int
	for i := range targets {
		targets[i] = -1
	}

	for i, v := range s.Values {
		if i >= dmx.Channels {
			break
		}
		targets[i] = v
	}
	for ch, v := range s.Channels {
		if dmx.CheckChannel(ch) == nil {
			targets[ch-1] = v
		}
	}
	for _, fs := range s.Fixtures {
		for _, label := range slices.Sorted(maps.Keys(fs.Channels)) {
			for _, idx := range p.Channels(fs.ID, label) {
				targets[idx] = fs.Channels[label]
			}
		}
	}

	g := &Scene{}
	for idx, v := range targets {
		if v < 0 {
			continue
		}
		g.values = append(g.values, Contribution{
			Channel: idx,
			Value:   dmx.Clamp(float64(v)),
			Class:   class[idx],
		})
	}
	return g
}

func (g *Scene) Kind() Kind { return Layer }

// Sample returns the raw snapshot; the compositor applies the cue factor.
func (g *Scene) Sample(Time) []Contribution {
	return g.values
}
