// Package engine owns the show state and runs the scheduler and compositor
// on one tick. All edits and transport calls are serialized with the tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"qlux/lib/compositor"
	"qlux/lib/curve"
	"qlux/lib/dmx"
	"qlux/lib/generator"
	"qlux/lib/patch"
	"qlux/lib/show"
	"qlux/lib/timeline"
)

const (
	DefaultTick = 25 * time.Millisecond

	// DefaultChainEpsilon is how close two cue edges must be to move together.
	DefaultChainEpsilon = 0.001
)

type Options struct {
	Tracking bool
	Tick     time.Duration
	Log      *slog.Logger
}

type Engine struct {
	mu       sync.Mutex
	name     string
	timeline *show.Timeline
	sched    *timeline.Scheduler
	factory  *generator.Factory
	patch    patch.Patch
	catalog  *show.Catalog
	tracking bool
	cueSeq   int

	class    atomic.Pointer[patch.Classification]
	universe *dmx.Universe
	tick     time.Duration
	log      *slog.Logger

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}
}

func New(opts Options) *Engine {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	e := &Engine{
		timeline: &show.Timeline{},
		catalog:  &show.Catalog{},
		tracking: opts.Tracking,
		universe: dmx.NewUniverse(),
		tick:     opts.Tick,
		log:      opts.Log,
		watchers: map[chan struct{}]struct{}{},
	}
	e.class.Store(patch.Classify(e.patch))
	e.factory = &generator.Factory{Catalog: e.catalog, Patch: &e.patch, Class: e.class.Load()}
	e.sched = timeline.NewScheduler(e.factory, opts.Log)
	return e
}

// Universe returns the buffer the engine publishes to.
func (e *Engine) Universe() *dmx.Universe {
	return e.universe
}

// Run ticks the engine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			e.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Step advances the show by delta seconds of real time and publishes a new
// frame when the transport is running or has just stopped.
func (e *Engine) Step(delta float64) {
	e.mu.Lock()
	before := e.sched.Status().State
	layers, compose := e.sched.Tick(e.timeline, delta)
	if compose {
		next := compositor.Resolve(e.universe.Frame(), e.class.Load(), layers, compositor.Options{Tracking: e.tracking})
		e.universe.Publish(next)
	}
	changed := e.sched.Status().State != before
	e.mu.Unlock()

	if changed {
		e.notify()
	}
}

// Direct universe access. These bypass generators; while the transport is
// running the next tick recomputes every channel a cue proposes. Writes
// hold e.mu so a tick never resolves from a frame older than the write.

func (e *Engine) SetChannel(ch, v int) error {
	e.mu.Lock()
	err := e.universe.Set(ch, v)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func (e *Engine) Channel(ch int) (int, error) {
	v, err := e.universe.Get(ch)
	if err != nil {
		return 0, fmt.Errorf("engine: %w", err)
	}
	return v, nil
}

func (e *Engine) Channels() dmx.Frame {
	return *e.universe.Frame()
}

func (e *Engine) Blackout() {
	e.mu.Lock()
	e.universe.Blackout()
	e.mu.Unlock()
}

// Watch returns a latest-value channel of published frames.
func (e *Engine) Watch(ctx context.Context) <-chan *dmx.Frame {
	return e.universe.Watch(ctx)
}

// Changes returns a channel that receives a signal whenever the transport
// state, the timeline or the catalog changes. Signals coalesce.
func (e *Engine) Changes(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	e.watchMu.Lock()
	e.watchers[ch] = struct{}{}
	e.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		e.watchMu.Lock()
		delete(e.watchers, ch)
		e.watchMu.Unlock()
	}()
	return ch
}

func (e *Engine) notify() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	for ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Show data.

// LoadDocument installs a whole show: patch, catalog and timeline.
func (e *Engine) LoadDocument(doc *show.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.SetPatch(doc.Patch); err != nil {
		return err
	}
	if err := e.SetCatalog(&doc.Catalog); err != nil {
		return err
	}
	if err := e.LoadTimeline(&doc.Timeline); err != nil {
		return err
	}
	for _, id := range doc.Unresolved() {
		e.log.Warn("cue source not in catalog", "cue", id)
	}

	e.mu.Lock()
	e.name = doc.Name
	e.mu.Unlock()
	return nil
}

// Document returns a copy of the current show for saving.
func (e *Engine) Document() *show.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &show.Document{
		Name:     e.name,
		Patch:    clonePatch(e.patch),
		Catalog:  *e.catalog,
		Timeline: *e.timeline.Clone(),
	}
}

// LoadTimeline stops the transport and replaces the timeline with a copy of tl.
func (e *Engine) LoadTimeline(tl *show.Timeline) error {
	if err := tl.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	tl = tl.Clone()
	for _, c := range tl.Cues {
		c.Triggered = false
	}

	e.mu.Lock()
	e.sched.Stop()
	e.timeline = tl
	e.mu.Unlock()

	e.log.Info("timeline loaded", "tracks", len(tl.Tracks), "cues", len(tl.Cues))
	e.notify()
	return nil
}

// Timeline returns a deep copy of the timeline.
func (e *Engine) Timeline() *show.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Clone()
}

func (e *Engine) SetPatch(p patch.Patch) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	p = clonePatch(p)
	class := patch.Classify(p)

	e.mu.Lock()
	e.patch = p
	e.class.Store(class)
	e.rebuildFactory()
	e.mu.Unlock()

	e.log.Info("patch loaded", "fixtures", len(p.Fixtures))
	return nil
}

// Classification returns the merge policy table currently in use.
func (e *Engine) Classification() *patch.Classification {
	return e.class.Load()
}

// SetCatalog installs the looks cues refer to. The entries are shared, not
// copied, and must not be modified afterwards.
func (e *Engine) SetCatalog(c *show.Catalog) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	cat := *c

	e.mu.Lock()
	e.catalog = &cat
	e.rebuildFactory()
	e.mu.Unlock()

	e.log.Info("catalog loaded", "scenes", len(cat.Scenes), "chasers", len(cat.Chasers), "effects", len(cat.Effects))
	e.notify()
	return nil
}

// rebuildFactory must be called with e.mu held. Live cues restart against
// the new data on the next tick.
func (e *Engine) rebuildFactory() {
	e.factory = &generator.Factory{Catalog: e.catalog, Patch: &e.patch, Class: e.class.Load()}
	e.sched.SetFactory(e.factory)
	e.sched.Reset()
}

func (e *Engine) SetTracking(on bool) {
	e.mu.Lock()
	e.tracking = on
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) Tracking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracking
}

func clonePatch(p patch.Patch) patch.Patch {
	out := patch.Patch{Fixtures: make([]patch.Fixture, len(p.Fixtures))}
	for i, f := range p.Fixtures {
		fns := make(map[int][]string, len(f.Functions))
		for off, labels := range f.Functions {
			fns[off] = append([]string(nil), labels...)
		}
		f.Functions = fns
		out.Fixtures[i] = f
	}
	return out
}

// Transport.

func (e *Engine) transport(fn func(*timeline.Scheduler) error) error {
	e.mu.Lock()
	err := fn(e.sched)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.notify()
	return nil
}

func (e *Engine) Play() {
	e.transport(func(s *timeline.Scheduler) error { s.Play(); return nil })
}

func (e *Engine) Pause() {
	e.transport(func(s *timeline.Scheduler) error { s.Pause(); return nil })
}

func (e *Engine) Resume() {
	e.transport(func(s *timeline.Scheduler) error { s.Resume(); return nil })
}

func (e *Engine) Stop() {
	e.transport(func(s *timeline.Scheduler) error { s.Stop(); return nil })
}

func (e *Engine) Seek(t float64) error {
	return e.transport(func(s *timeline.Scheduler) error { return s.Seek(t) })
}

func (e *Engine) SetSpeed(speed float64) error {
	return e.transport(func(s *timeline.Scheduler) error { return s.SetSpeed(speed) })
}

func (e *Engine) ToggleLoop() bool {
	var on bool
	e.transport(func(s *timeline.Scheduler) error { on = s.ToggleLoop(); return nil })
	return on
}

func (e *Engine) State() timeline.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Status()
}

// Editing.

type SnapOptions struct {
	Grid            float64
	Pixels          float64
	PixelsPerSecond float64
}

type MoveOptions struct {
	// Detach moves only the cue, not the cues chained to it.
	Detach bool
	// Track moves the cues to another track when set.
	Track string
	Snap  *SnapOptions
}

func (e *Engine) edit(fn func(tl *show.Timeline) error) error {
	e.mu.Lock()
	err := fn(e.timeline)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.notify()
	return nil
}

// MoveCue moves a cue, and unless detached every cue chained to it, so the
// cue starts at start.
func (e *Engine) MoveCue(id string, start float64, opts MoveOptions) error {
	return e.edit(func(tl *show.Timeline) error {
		cue := tl.Cue(id)
		if cue == nil {
			return fmt.Errorf("cue %q: %w", id, dmx.ErrNotFound)
		}
		if start != start {
			return fmt.Errorf("move cue %q to %v: %w", id, start, dmx.ErrValidation)
		}

		ids := []string{id}
		if !opts.Detach {
			var err error
			if ids, err = timeline.Chain(tl, id, DefaultChainEpsilon); err != nil {
				return err
			}
		}

		if opts.Snap != nil {
			start = timeline.Snap(tl, timeline.SnapRequest{
				Edge:            timeline.EdgeMove,
				Time:            start,
				Duration:        cue.Duration,
				Delta:           start - cue.Start,
				Exclude:         ids,
				Grid:            opts.Snap.Grid,
				Pixels:          opts.Snap.Pixels,
				PixelsPerSecond: opts.Snap.PixelsPerSecond,
			})
		}
		return timeline.MoveCues(tl, ids, start-cue.Start, opts.Track)
	})
}

func (e *Engine) ResizeCue(id string, edge timeline.Edge, t float64, snap *SnapOptions) error {
	return e.edit(func(tl *show.Timeline) error {
		cue := tl.Cue(id)
		if cue == nil {
			return fmt.Errorf("cue %q: %w", id, dmx.ErrNotFound)
		}
		if snap != nil {
			t = timeline.Snap(tl, timeline.SnapRequest{
				Edge:            edge,
				Time:            t,
				Exclude:         []string{id},
				Grid:            snap.Grid,
				Pixels:          snap.Pixels,
				PixelsPerSecond: snap.PixelsPerSecond,
			})
		}
		return timeline.ResizeCue(tl, id, edge, t)
	})
}

// AddCue adds a copy of c and returns its id. An empty id is assigned and
// an empty curve becomes flat full.
func (e *Engine) AddCue(c show.Cue) (string, error) {
	var id string
	err := e.edit(func(tl *show.Timeline) error {
		if c.ID == "" {
			for {
				e.cueSeq++
				c.ID = fmt.Sprintf("cue-%d", e.cueSeq)
				if tl.Cue(c.ID) == nil {
					break
				}
			}
		}
		if len(c.Curve.Points) == 0 {
			c.Curve = curve.Flat()
		} else {
			c.Curve = c.Curve.Clone()
		}
		if !e.catalog.Has(c.Source) {
			e.log.Warn("cue source not in catalog", "cue", c.ID, "kind", c.Source.Kind, "source", c.Source.ID)
		}
		id = c.ID
		return timeline.AddCue(tl, &c)
	})
	return id, err
}

func (e *Engine) RemoveCue(id string) error {
	return e.edit(func(tl *show.Timeline) error { return timeline.RemoveCue(tl, id) })
}

func (e *Engine) AddTrack(t show.Track, index int) error {
	t.MuteGroups = slices.Clone(t.MuteGroups)
	return e.edit(func(tl *show.Timeline) error { return timeline.AddTrack(tl, &t, index) })
}

func (e *Engine) RemoveTrack(id string) error {
	return e.edit(func(tl *show.Timeline) error { return timeline.RemoveTrack(tl, id) })
}

func (e *Engine) MoveTrack(id string, index int) error {
	return e.edit(func(tl *show.Timeline) error { return timeline.MoveTrack(tl, id, index) })
}

func (e *Engine) ToggleMute(trackID string) (bool, error) {
	var muted bool
	err := e.edit(func(tl *show.Timeline) error {
		var err error
		muted, err = timeline.ToggleMute(tl, trackID)
		return err
	})
	return muted, err
}
