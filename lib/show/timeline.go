package show

import (
	"fmt"
	"math"
	"slices"

	"qlux/lib/dmx"
)

// Cues on one track may touch but not overlap; ends within this of the next
// start are treated as touching.
const overlapTolerance = 1e-9

// Timeline holds the tracks in compositing order (last is drawn on top) and
// all cues.
type Timeline struct {
	Tracks []*Track `json:"tracks" yaml:"tracks"`
	Cues   []*Cue   `json:"cues" yaml:"cues"`
}

func (tl *Timeline) Track(id string) (*Track, int) {
	for i, t := range tl.Tracks {
		if t.ID == id {
			return t, i
		}
	}
	return nil, -1
}

func (tl *Timeline) Cue(id string) *Cue {
	for _, c := range tl.Cues {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CuesOn returns the cues of a track ordered by start time.
func (tl *Timeline) CuesOn(trackID string) []*Cue {
	var out []*Cue
	for _, c := range tl.Cues {
		if c.Track == trackID {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b *Cue) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	return out
}

// End is the latest cue end, 0 for an empty timeline.
func (tl *Timeline) End() float64 {
	end := 0.0
	for _, c := range tl.Cues {
		end = max(end, c.End())
	}
	return end
}

func (tl *Timeline) Clone() *Timeline {
	out := &Timeline{
		Tracks: make([]*Track, len(tl.Tracks)),
		Cues:   make([]*Cue, len(tl.Cues)),
	}
	for i, t := range tl.Tracks {
		tc := *t
		tc.MuteGroups = slices.Clone(t.MuteGroups)
		out.Tracks[i] = &tc
	}
	for i, c := range tl.Cues {
		cc := *c
		cc.Curve = c.Curve.Clone()
		out.Cues[i] = &cc
	}
	return out
}

func (tl *Timeline) Validate() error {
	if tl == nil {
		return fmt.Errorf("show: timeline is nil: %w", dmx.ErrValidation)
	}

	trackIDs := map[string]bool{}
	for _, track := range tl.Tracks {
		if track.ID == "" {
			return fmt.Errorf("show: track with empty id: %w", dmx.ErrValidation)
		}
		if trackIDs[track.ID] {
			return fmt.Errorf("show: duplicate track id %q: %w", track.ID, dmx.ErrValidation)
		}
		trackIDs[track.ID] = true
	}

	cueIDs := map[string]bool{}
	for _, cue := range tl.Cues {
		if cue.ID == "" {
			return fmt.Errorf("show: cue with empty id: %w", dmx.ErrValidation)
		}
		if cueIDs[cue.ID] {
			return fmt.Errorf("show: duplicate cue id %q: %w", cue.ID, dmx.ErrValidation)
		}
		cueIDs[cue.ID] = true
		if !trackIDs[cue.Track] {
			return fmt.Errorf("show: cue %q uses unknown track %q: %w", cue.ID, cue.Track, dmx.ErrNotFound)
		}
		if err := ValidateTiming(cue.Start, cue.Duration); err != nil {
			return fmt.Errorf("show: cue %q: %w", cue.ID, err)
		}
		if err := cue.Curve.Validate(); err != nil {
			return fmt.Errorf("show: cue %q: %w", cue.ID, err)
		}
		switch cue.Source.Kind {
		case SourceScene, SourceChaser, SourceEffect:
		default:
			return fmt.Errorf("show: cue %q has unknown source kind %q: %w", cue.ID, cue.Source.Kind, dmx.ErrValidation)
		}
	}

	for _, track := range tl.Tracks {
		cues := tl.CuesOn(track.ID)
		for i := 1; i < len(cues); i++ {
			if prev := cues[i-1]; cues[i].Start < prev.End()-overlapTolerance {
				return fmt.Errorf("show: cues %q and %q overlap on track %q: %w", prev.ID, cues[i].ID, track.ID, dmx.ErrValidation)
			}
		}
	}
	return nil
}

func ValidateTiming(start, duration float64) error {
	if math.IsNaN(start) || math.IsInf(start, 0) || start < 0 {
		return fmt.Errorf("start %v: %w", start, dmx.ErrValidation)
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return fmt.Errorf("duration %v must be positive: %w", duration, dmx.ErrValidation)
	}
	return nil
}

// MutedTracks returns the ids of tracks that are muted directly or through a
// mute group shared with a muted track.
func (tl *Timeline) MutedTracks() map[string]bool {
	groups := map[string]bool{}
	for _, t := range tl.Tracks {
		if t.Muted {
			for _, g := range t.MuteGroups {
				groups[g] = true
			}
		}
	}
	out := map[string]bool{}
	for _, t := range tl.Tracks {
		if t.Muted || slices.ContainsFunc(t.MuteGroups, func(g string) bool { return groups[g] }) {
			out[t.ID] = true
		}
	}
	return out
}
