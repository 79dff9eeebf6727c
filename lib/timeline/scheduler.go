package timeline

import (
	"log/slog"

	"qlux/lib/compositor"
	"qlux/lib/generator"
	"qlux/lib/show"
)

// Factory instantiates the generator behind a cue source.
type Factory interface {
	New(src show.Source) (generator.Generator, error)
}

type run struct {
	src show.Source
	gen generator.Generator // nil when the source could not be resolved
}

// Scheduler owns the transport and one generator run per live cue. It is not
// safe for concurrent use; the engine serializes access.
type Scheduler struct {
	*Transport

	factory Factory
	runs    map[string]*run
	release bool
	log     *slog.Logger
}

func NewScheduler(factory Factory, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		Transport: NewTransport(),
		factory:   factory,
		runs:      map[string]*run{},
		log:       log,
	}
}

func (s *Scheduler) SetFactory(f Factory) {
	s.factory = f
}

// Stop resets the clock and tears down every run. The next Tick returns
// compose=true once so the caller can release intensity.
func (s *Scheduler) Stop() {
	s.Transport.Stop()
	s.teardown()
	s.release = true
}

// Reset drops all runs so live cues are rebuilt on the next tick, for
// example after the catalog or patch changed.
func (s *Scheduler) Reset() {
	s.teardown()
}

func (s *Scheduler) teardown() {
	clear(s.runs)
}

// Running returns the number of live generator runs.
func (s *Scheduler) Running() int {
	return len(s.runs)
}

// Tick advances the clock by delta real seconds, updates cue activation and
// samples the live generators. compose reports whether the caller should run
// the compositor this tick.
func (s *Scheduler) Tick(tl *show.Timeline, delta float64) (layers []compositor.Layer, compose bool) {
	if s.Advance(delta, tl.End()) {
		s.teardown()
		s.release = true
	}

	if s.state == Stopped {
		for _, c := range tl.Cues {
			c.Triggered = false
		}
		if s.release {
			s.release = false
			return nil, true
		}
		return nil, false
	}

	s.activate(tl)
	return s.sample(tl), true
}

func (s *Scheduler) activate(tl *show.Timeline) {
	muted := tl.MutedTracks()
	live := map[string]bool{}

	for _, c := range tl.Cues {
		active := c.Start <= s.clock && s.clock < c.End() && !muted[c.Track]

		switch {
		case active && !c.Triggered:
			c.Triggered = true
			s.start(c)
		case !active && c.Triggered:
			c.Triggered = false
			delete(s.runs, c.ID)
		case active:
			if r, ok := s.runs[c.ID]; !ok || r.src != c.Source {
				s.start(c)
			}
		}
		if active {
			live[c.ID] = true
		}
	}

	for id := range s.runs {
		if !live[id] {
			delete(s.runs, id)
		}
	}
}

func (s *Scheduler) start(c *show.Cue) {
	if r, ok := s.runs[c.ID]; ok && r.src == c.Source {
		return
	}

	r := &run{src: c.Source}
	s.runs[c.ID] = r
	if s.factory == nil {
		return
	}
	gen, err := s.factory.New(c.Source)
	if err != nil {
		s.log.Warn("cue source unavailable", "cue", c.ID, "kind", c.Source.Kind, "source", c.Source.ID, "err", err)
		return
	}
	r.gen = gen
}

func (s *Scheduler) sample(tl *show.Timeline) []compositor.Layer {
	var layers []compositor.Layer
	for ti, track := range tl.Tracks {
		for _, c := range tl.CuesOn(track.ID) {
			r := s.runs[c.ID]
			if r == nil || r.gen == nil {
				continue
			}

			t := CueTime(c, s.clock)
			layers = append(layers, compositor.Layer{
				Track:  ti,
				Start:  c.Start,
				Cue:    c.ID,
				Kind:   r.gen.Kind(),
				Factor: t.Factor,
				Values: r.gen.Sample(t),
			})
		}
	}
	return layers
}

// CueTime converts the transport clock into the cue's local time.
func CueTime(c *show.Cue, clock float64) generator.Time {
	elapsed := max(clock-c.Start, 0)
	frac := min(elapsed/c.Duration, 1)
	pos := frac
	if c.Reverse {
		pos = 1 - frac
	}
	return generator.Time{
		Elapsed:  elapsed,
		Fraction: frac,
		Factor:   c.Curve.Evaluate(pos),
		Reverse:  c.Reverse,
	}
}
