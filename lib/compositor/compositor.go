// Package compositor merges generator output into one universe frame.
package compositor

import (
	"cmp"
	"slices"

	"qlux/lib/dmx"
	"qlux/lib/generator"
	"qlux/lib/patch"
)

const (
	// Below this factor a scene layer leaves non-intensity channels alone.
	minFactor = 0.01
	// At or above this factor a scene layer writes its raw value.
	fullFactor = 0.99
)

// Layer is the sampled output of one running cue.
type Layer struct {
	Track  int     // track index, higher is drawn on top
	Start  float64 // cue start, orders layers within a track
	Cue    string
	Kind   generator.Kind
	Factor float64
	Values []generator.Contribution
}

type Options struct {
	// Tracking holds unaddressed intensity channels at their previous
	// value. When false they are released to 0.
	Tracking bool
}

// Resolve computes the next frame from the previous one. It does not modify
// its inputs, so resolving the same state twice yields the same frame.
func Resolve(prev *dmx.Frame, class *patch.Classification, layers []Layer, opts Options) dmx.Frame {
	var (
		reserved [dmx.Channels]bool
		wrote    [dmx.Channels]bool
		work     [dmx.Channels]float64
	)
	for i, v := range prev {
		work[i] = float64(v)
	}

	classOf := func(c generator.Contribution) patch.Class {
		if class == nil {
			return c.Class
		}
		return class[c.Channel]
	}

	ordered := slices.Clone(layers)
	slices.SortStableFunc(ordered, func(a, b Layer) int {
		return cmp.Or(cmp.Compare(a.Track, b.Track), cmp.Compare(a.Start, b.Start))
	})

	for _, l := range ordered {
		if l.Kind != generator.Layer {
			continue
		}
		for _, c := range l.Values {
			if c.Channel < 0 || c.Channel >= dmx.Channels {
				continue
			}
			reserved[c.Channel] = true
			target := float64(c.Value)

			if classOf(c) == patch.Intensity {
				v := target * clampFactor(l.Factor)
				if !wrote[c.Channel] || v > work[c.Channel] {
					work[c.Channel] = v
				}
				wrote[c.Channel] = true
				continue
			}

			switch {
			case l.Factor < minFactor:
				continue
			case l.Factor >= fullFactor:
				work[c.Channel] = target
			default:
				work[c.Channel] += (target - work[c.Channel]) * l.Factor
			}
			wrote[c.Channel] = true
		}
	}

	var overlay [dmx.Channels]float64
	var overlaid [dmx.Channels]bool
	for _, l := range ordered {
		if l.Kind != generator.Overlay {
			continue
		}
		for _, c := range l.Values {
			if c.Channel < 0 || c.Channel >= dmx.Channels {
				continue
			}
			reserved[c.Channel] = true
			overlay[c.Channel] = max(overlay[c.Channel], float64(c.Value))
			overlaid[c.Channel] = true
		}
	}

	var out dmx.Frame
	for i := range out {
		switch {
		case overlaid[i]:
			base := 0.0
			if wrote[i] {
				base = work[i]
			}
			out[i] = dmx.Clamp(max(base, overlay[i]))
		case reserved[i]:
			out[i] = dmx.Clamp(work[i])
		case !opts.Tracking && class != nil && class[i] == patch.Intensity:
			out[i] = 0
		default:
			out[i] = prev[i]
		}
	}
	return out
}

func clampFactor(f float64) float64 {
	switch {
	case f != f || f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
