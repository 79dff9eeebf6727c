// Package timeline runs the show clock, decides which cues are live and
// implements the timeline editing rules.
package timeline

import (
	"fmt"

	"qlux/lib/dmx"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 10
)

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "playing":
		*s = Playing
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("timeline: unknown state %q: %w", b, dmx.ErrValidation)
	}
	return nil
}

type Status struct {
	State State   `json:"state"`
	Clock float64 `json:"clock"`
	Speed float64 `json:"speed"`
	Loop  bool    `json:"loop"`
}

type Transport struct {
	state State
	clock float64
	speed float64
	loop  bool
}

func NewTransport() *Transport {
	return &Transport{speed: 1}
}

func (t *Transport) Status() Status {
	return Status{State: t.state, Clock: t.clock, Speed: t.speed, Loop: t.loop}
}

// Play starts playback. From Paused it resumes without touching the clock.
func (t *Transport) Play() {
	t.state = Playing
}

func (t *Transport) Pause() {
	if t.state == Playing {
		t.state = Paused
	}
}

func (t *Transport) Resume() {
	if t.state == Paused {
		t.state = Playing
	}
}

func (t *Transport) Stop() {
	t.state = Stopped
	t.clock = 0
}

func (t *Transport) Seek(clock float64) error {
	if clock < 0 || clock != clock {
		return fmt.Errorf("timeline: seek to %v: %w", clock, dmx.ErrValidation)
	}
	t.clock = clock
	return nil
}

// SetSpeed clamps s into [MinSpeed, MaxSpeed].
func (t *Transport) SetSpeed(s float64) error {
	if !(s > 0) {
		return fmt.Errorf("timeline: speed %v: %w", s, dmx.ErrValidation)
	}
	t.speed = min(max(s, MinSpeed), MaxSpeed)
	return nil
}

func (t *Transport) ToggleLoop() bool {
	t.loop = !t.loop
	return t.loop
}

// Advance moves the clock forward by delta real seconds. end is the end of
// content; reaching it wraps to 0 when looping and stops otherwise. Advance
// reports whether the transport stopped.
func (t *Transport) Advance(delta, end float64) bool {
	if t.state != Playing {
		return false
	}
	if delta > 0 {
		t.clock += delta * t.speed
	}
	if t.clock < end {
		return false
	}
	if t.loop && end > 0 {
		t.clock = 0
		return false
	}
	t.Stop()
	return true
}
