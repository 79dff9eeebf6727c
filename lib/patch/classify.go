package patch

import (
	"cmp"
	"slices"

	"qlux/lib/dmx"
)

type Class uint8

const (
	Unclassified Class = iota
	Intensity
	Color
	Position
	Beam
	Speed
	Control
)

var classNames = [...]string{"unclassified", "intensity", "color", "position", "beam", "speed", "control"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// HTP reports whether channels of this class merge highest-takes-precedence.
func (c Class) HTP() bool {
	return c == Intensity
}

type Classification [dmx.Channels]Class

var keywords = []struct {
	class Class
	words []string
}{
	{Intensity, synonyms[AttrDimmer]},
	{Color, []string{"red", "green", "blue", "white", "amber", "uv", "lime", "cyan", "magenta", "yellow", "color", "colour", "hue", "saturation", "cto", "ctb"}},
	{Position, []string{"pan", "tilt"}},
	{Beam, []string{"zoom", "focus", "iris", "gobo", "prism", "frost", "strobe", "shutter", "beam"}},
	{Speed, []string{"speed", "rate"}},
	{Control, []string{"control", "reset", "mode", "macro", "function", "lamp"}},
}

func classifyLabel(label string) Class {
	toks := tokens(label)
	for _, k := range keywords {
		for _, tok := range toks {
			if slices.Contains(k.words, tok) {
				return k.class
			}
		}
	}
	return Unclassified
}

func classifyLabels(labels []string) Class {
	best := Unclassified
	for _, l := range labels {
		c := classifyLabel(l)
		if c == Intensity {
			return c
		}
		if best == Unclassified {
			best = c
		}
	}
	return best
}

// Classify builds the merge policy table for a patch. Fixtures are applied
// in address order, so a later fixture overrides an overlapping earlier one.
func Classify(p Patch) *Classification {
	var out Classification

	fixtures := slices.Clone(p.Fixtures)
	slices.SortStableFunc(fixtures, func(a, b Fixture) int {
		return cmp.Or(cmp.Compare(a.Address, b.Address), cmp.Compare(a.ID, b.ID))
	})

	for i := range fixtures {
		f := &fixtures[i]
		if f.Address < 1 {
			continue
		}
		dimmer := f.hasDimmer()
		for off := 0; off < f.Channels; off++ {
			idx := f.Address - 1 + off
			if idx >= dmx.Channels {
				break
			}
			c := classifyLabels(f.Functions[off])
			if c == Color && !dimmer {
				c = Intensity
			}
			out[idx] = c
		}
	}
	return &out
}
