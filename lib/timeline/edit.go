package timeline

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"qlux/lib/dmx"
	"qlux/lib/show"
)

// MinDuration is the shortest cue an edit can produce.
const MinDuration = 0.01

const overlapEpsilon = 1e-9

type Edge int

const (
	EdgeMove Edge = iota
	EdgeStart
	EdgeEnd
)

// SnapRequest describes one drag step. Time is the proposed cue start for a
// move and the proposed edge position for a resize.
type SnapRequest struct {
	Edge     Edge
	Time     float64
	Duration float64 // length of the dragged cue, used by moves
	Delta    float64 // drag direction, positive when dragging right
	Exclude  []string

	Grid            float64 // seconds, 0 disables grid snapping
	Pixels          float64 // tolerance in pixels
	PixelsPerSecond float64
}

type snapCandidate struct {
	time float64
	dist float64
	grid bool
}

func (c snapCandidate) better(o *snapCandidate) bool {
	if o == nil {
		return true
	}
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	return c.grid && !o.grid
}

// Snap returns the snapped Time for a drag. Candidates are the nearest grid
// line and the boundaries of cues not being dragged, each only within the
// pixel tolerance. The closest candidate wins, grid wins ties.
func Snap(tl *show.Timeline, req SnapRequest) float64 {
	tolerance := 0.0
	if req.PixelsPerSecond > 0 {
		tolerance = req.Pixels / req.PixelsPerSecond
	}

	// Edges are tested as offsets from Time.
	var offsets []float64
	switch req.Edge {
	case EdgeMove:
		offsets = []float64{0, req.Duration}
		if req.Delta > 0 {
			offsets = []float64{req.Duration, 0}
		}
	default:
		offsets = []float64{0}
	}

	var boundaries []float64
	for _, c := range tl.Cues {
		if slices.Contains(req.Exclude, c.ID) {
			continue
		}
		boundaries = append(boundaries, c.Start, c.End())
	}

	var best *snapCandidate
	consider := func(c snapCandidate) {
		if c.better(best) {
			best = &c
		}
	}

	for _, off := range offsets {
		edge := req.Time + off
		if req.Grid > 0 {
			g := math.Round(edge/req.Grid) * req.Grid
			if d := math.Abs(g - edge); d <= tolerance {
				consider(snapCandidate{time: g - off, dist: d, grid: true})
			}
		}
		for _, b := range boundaries {
			d := math.Abs(b - edge)
			if d <= tolerance {
				consider(snapCandidate{time: b - off, dist: d})
			}
		}
	}

	if best == nil {
		return req.Time
	}
	return best.time
}

// Chain returns the cue and every cue on its track that touches it,
// directly or through other chained cues.
func Chain(tl *show.Timeline, cueID string, epsilon float64) ([]string, error) {
	cue := tl.Cue(cueID)
	if cue == nil {
		return nil, fmt.Errorf("timeline: cue %q: %w", cueID, dmx.ErrNotFound)
	}

	selected := map[string]*show.Cue{cue.ID: cue}
	siblings := tl.CuesOn(cue.Track)

	touches := func(a, b *show.Cue) bool {
		for _, x := range []float64{a.Start, a.End()} {
			for _, y := range []float64{b.Start, b.End()} {
				if math.Abs(x-y) <= epsilon {
					return true
				}
			}
		}
		return false
	}

	for range len(siblings) + 1 {
		grown := false
		for _, c := range siblings {
			if selected[c.ID] != nil {
				continue
			}
			for _, s := range selected {
				if touches(c, s) {
					selected[c.ID] = c
					grown = true
					break
				}
			}
		}
		if !grown {
			break
		}
	}

	var ids []string
	for _, c := range siblings {
		if selected[c.ID] != nil {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart < bEnd-overlapEpsilon && bStart < aEnd-overlapEpsilon
}

// ResolveCollisions pushes cues on a track out of the way of the moved
// cues. Other cues are visited in start order; each one overlapping an
// occupied extent starts at that extent's end, which may push later cues
// in turn.
func ResolveCollisions(tl *show.Timeline, trackID string, moved []string) {
	type extent struct{ start, end float64 }
	var occupied []extent
	var others []*show.Cue

	for _, c := range tl.CuesOn(trackID) {
		if slices.Contains(moved, c.ID) {
			occupied = append(occupied, extent{c.Start, c.End()})
		} else {
			others = append(others, c)
		}
	}
	slices.SortStableFunc(others, func(a, b *show.Cue) int {
		return cmp.Or(cmp.Compare(a.Start, b.Start), cmp.Compare(a.ID, b.ID))
	})

	for _, c := range others {
		for range len(occupied) + 1 {
			pushed := false
			for _, e := range occupied {
				if overlaps(c.Start, c.End(), e.start, e.end) {
					c.Start = e.end
					pushed = true
				}
			}
			if !pushed {
				break
			}
		}
		occupied = append(occupied, extent{c.Start, c.End()})
	}
}

// Overlapping reports the first pair of cues on the same track that overlap.
func Overlapping(tl *show.Timeline) (a, b string, ok bool) {
	for _, track := range tl.Tracks {
		cues := tl.CuesOn(track.ID)
		for i := 1; i < len(cues); i++ {
			for j := range i {
				if overlaps(cues[j].Start, cues[j].End(), cues[i].Start, cues[i].End()) {
					return cues[j].ID, cues[i].ID, true
				}
			}
		}
	}
	return "", "", false
}

// MoveCues shifts the cues by delta seconds, keeping every start at or
// after 0, optionally onto another track, then resolves collisions.
func MoveCues(tl *show.Timeline, ids []string, delta float64, trackID string) error {
	if delta != delta {
		return fmt.Errorf("timeline: move by %v: %w", delta, dmx.ErrValidation)
	}
	if trackID != "" {
		if t, _ := tl.Track(trackID); t == nil {
			return fmt.Errorf("timeline: track %q: %w", trackID, dmx.ErrNotFound)
		}
	}

	cues := make([]*show.Cue, 0, len(ids))
	for _, id := range ids {
		c := tl.Cue(id)
		if c == nil {
			return fmt.Errorf("timeline: cue %q: %w", id, dmx.ErrNotFound)
		}
		cues = append(cues, c)
		delta = max(delta, -c.Start)
	}

	tracks := map[string]bool{}
	for _, c := range cues {
		c.Start += delta
		if trackID != "" {
			c.Track = trackID
		}
		tracks[c.Track] = true
	}
	for _, id := range slices.Sorted(maps.Keys(tracks)) {
		ResolveCollisions(tl, id, ids)
	}
	return nil
}

// ResizeCue moves one edge of a cue to t. The opposite edge stays put.
func ResizeCue(tl *show.Timeline, id string, edge Edge, t float64) error {
	c := tl.Cue(id)
	if c == nil {
		return fmt.Errorf("timeline: cue %q: %w", id, dmx.ErrNotFound)
	}
	if t != t || math.IsInf(t, 0) {
		return fmt.Errorf("timeline: resize to %v: %w", t, dmx.ErrValidation)
	}

	switch edge {
	case EdgeStart:
		end := c.End()
		start := min(max(t, 0), end-MinDuration)
		if start < 0 {
			start = 0
		}
		c.Start = start
		c.Duration = max(end-start, MinDuration)
	case EdgeEnd:
		c.Duration = max(t-c.Start, MinDuration)
	default:
		return fmt.Errorf("timeline: resize needs a start or end edge: %w", dmx.ErrValidation)
	}

	ResolveCollisions(tl, c.Track, []string{id})
	return nil
}

// AddCue appends a validated cue and clears room for it on its track.
func AddCue(tl *show.Timeline, c *show.Cue) error {
	if c.ID == "" {
		return fmt.Errorf("timeline: cue with empty id: %w", dmx.ErrValidation)
	}
	if tl.Cue(c.ID) != nil {
		return fmt.Errorf("timeline: duplicate cue id %q: %w", c.ID, dmx.ErrValidation)
	}
	if t, _ := tl.Track(c.Track); t == nil {
		return fmt.Errorf("timeline: track %q: %w", c.Track, dmx.ErrNotFound)
	}
	if err := show.ValidateTiming(c.Start, c.Duration); err != nil {
		return fmt.Errorf("timeline: cue %q: %w", c.ID, err)
	}
	if err := c.Curve.Validate(); err != nil {
		return fmt.Errorf("timeline: cue %q: %w", c.ID, err)
	}

	c.Triggered = false
	tl.Cues = append(tl.Cues, c)
	ResolveCollisions(tl, c.Track, []string{c.ID})
	return nil
}

func RemoveCue(tl *show.Timeline, id string) error {
	i := slices.IndexFunc(tl.Cues, func(c *show.Cue) bool { return c.ID == id })
	if i < 0 {
		return fmt.Errorf("timeline: cue %q: %w", id, dmx.ErrNotFound)
	}
	tl.Cues = slices.Delete(tl.Cues, i, i+1)
	return nil
}

// AddTrack inserts a track at index; an out-of-range index appends.
func AddTrack(tl *show.Timeline, t *show.Track, index int) error {
	if t.ID == "" {
		return fmt.Errorf("timeline: track with empty id: %w", dmx.ErrValidation)
	}
	if existing, _ := tl.Track(t.ID); existing != nil {
		return fmt.Errorf("timeline: duplicate track id %q: %w", t.ID, dmx.ErrValidation)
	}
	if index < 0 || index > len(tl.Tracks) {
		index = len(tl.Tracks)
	}
	tl.Tracks = slices.Insert(tl.Tracks, index, t)
	return nil
}

// RemoveTrack deletes a track and all of its cues.
func RemoveTrack(tl *show.Timeline, id string) error {
	_, i := tl.Track(id)
	if i < 0 {
		return fmt.Errorf("timeline: track %q: %w", id, dmx.ErrNotFound)
	}
	tl.Tracks = slices.Delete(tl.Tracks, i, i+1)
	tl.Cues = slices.DeleteFunc(tl.Cues, func(c *show.Cue) bool { return c.Track == id })
	return nil
}

// MoveTrack changes a track's compositing position.
func MoveTrack(tl *show.Timeline, id string, index int) error {
	t, i := tl.Track(id)
	if t == nil {
		return fmt.Errorf("timeline: track %q: %w", id, dmx.ErrNotFound)
	}
	if index < 0 || index >= len(tl.Tracks) {
		return fmt.Errorf("timeline: track index %d: %w", index, dmx.ErrValidation)
	}
	tl.Tracks = slices.Delete(tl.Tracks, i, i+1)
	tl.Tracks = slices.Insert(tl.Tracks, index, t)
	return nil
}

// ToggleMute flips a track's mute flag and copies the new state to every
// track sharing a mute group with it.
func ToggleMute(tl *show.Timeline, id string) (bool, error) {
	t, _ := tl.Track(id)
	if t == nil {
		return false, fmt.Errorf("timeline: track %q: %w", id, dmx.ErrNotFound)
	}
	muted := !t.Muted
	t.Muted = muted
	for _, other := range tl.Tracks {
		if other == t {
			continue
		}
		for _, g := range t.MuteGroups {
			if slices.Contains(other.MuteGroups, g) {
				other.Muted = muted
				break
			}
		}
	}
	return muted, nil
}
