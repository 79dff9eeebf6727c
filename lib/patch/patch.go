package patch

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"qlux/lib/dmx"
)

type Fixture struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Address  int    `json:"address" yaml:"address"`
	Channels int    `json:"channels" yaml:"channels"`

	// Functions maps a channel offset (0 = Address) to its function labels.
	Functions map[int][]string `json:"functions" yaml:"functions"`
}

type Patch struct {
	Fixtures []Fixture `json:"fixtures" yaml:"fixtures"`
}

// Attribute names used by generators.
const (
	AttrDimmer = "dimmer"
	AttrRed    = "red"
	AttrGreen  = "green"
	AttrBlue   = "blue"
	AttrZoom   = "zoom"
	AttrStrobe = "strobe"
)

var synonyms = map[string][]string{
	AttrDimmer: {"dimmer", "intensity", "master", "brightness", "dim"},
	AttrStrobe: {"strobe", "shutter"},
}

func (p *Patch) Validate() error {
	seen := map[string]bool{}
	for _, f := range p.Fixtures {
		if f.ID == "" {
			return fmt.Errorf("patch: fixture with empty id: %w", dmx.ErrValidation)
		}
		if seen[f.ID] {
			return fmt.Errorf("patch: duplicate fixture id %q: %w", f.ID, dmx.ErrValidation)
		}
		seen[f.ID] = true
		if f.Address < 1 || f.Address > dmx.Channels {
			return fmt.Errorf("patch: fixture %q address %d out of range: %w", f.ID, f.Address, dmx.ErrValidation)
		}
		if f.Channels < 1 {
			return fmt.Errorf("patch: fixture %q has %d channels: %w", f.ID, f.Channels, dmx.ErrValidation)
		}
		for off := range f.Functions {
			if off < 0 || off >= f.Channels {
				return fmt.Errorf("patch: fixture %q function offset %d outside %d channels: %w", f.ID, off, f.Channels, dmx.ErrValidation)
			}
		}
	}
	return nil
}

func (p *Patch) Fixture(id string) *Fixture {
	for i := range p.Fixtures {
		if p.Fixtures[i].ID == id {
			return &p.Fixtures[i]
		}
	}
	return nil
}

// Channels returns the 0-based universe indices of the fixture's channels
// whose labels match attr, in offset order.
func (p *Patch) Channels(fixtureID, attr string) []int {
	f := p.Fixture(fixtureID)
	if f == nil {
		return nil
	}
	var out []int
	for _, off := range f.offsets() {
		idx := f.Address - 1 + off
		if idx >= dmx.Channels {
			break
		}
		if slices.ContainsFunc(f.Functions[off], func(l string) bool { return Matches(l, attr) }) {
			out = append(out, idx)
		}
	}
	return out
}

func (p *Patch) HasDimmer(fixtureID string) bool {
	f := p.Fixture(fixtureID)
	return f != nil && f.hasDimmer()
}

func (f *Fixture) offsets() []int {
	offs := make([]int, 0, len(f.Functions))
	for off := range f.Functions {
		offs = append(offs, off)
	}
	slices.Sort(offs)
	return offs
}

func (f *Fixture) hasDimmer() bool {
	for _, labels := range f.Functions {
		for _, l := range labels {
			if classifyLabel(l) == Intensity {
				return true
			}
		}
	}
	return false
}

// Matches reports whether a function label refers to attr. Matching is done
// on lower-case word tokens, so "Dimmer fine" matches "dimmer".
func Matches(label, attr string) bool {
	attr = strings.ToLower(strings.TrimSpace(attr))
	words, ok := synonyms[attr]
	if !ok {
		words = []string{attr}
	}
	for _, tok := range tokens(label) {
		if slices.Contains(words, tok) {
			return true
		}
	}
	return false
}

func tokens(label string) []string {
	return strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
