// Package generator turns catalog looks into per-tick channel proposals.
package generator

import (
	"qlux/lib/patch"
)

type Kind int

const (
	// Layer output is merged in track order: HTP for intensity, LTP with a
	// crossfade for everything else.
	Layer Kind = iota
	// Overlay output is merged by maximum on top of the layers.
	Overlay
)

func (k Kind) String() string {
	if k == Overlay {
		return "overlay"
	}
	return "layer"
}

// Time describes where a cue is within its run.
type Time struct {
	Elapsed  float64 // seconds since the cue started
	Fraction float64 // Elapsed / duration, 0..1
	Factor   float64 // automation curve value at Fraction
	Reverse  bool
}

type Contribution struct {
	Channel int // 0-based universe index
	Value   byte
	Class   patch.Class
}

type Generator interface {
	Kind() Kind
	Sample(t Time) []Contribution
}
