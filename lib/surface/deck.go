package surface

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"qlux/lib/engine"
	"qlux/lib/streamdeck"
	"qlux/lib/timeline"
)

// Panel is a grid of labelled keys.
type Panel interface {
	SetKeyText(key int, bg color.Color, fg color.Color, text string) error
}

const speedStep = 0.1

var (
	colorIdle   = color.RGBA{40, 40, 40, 255}
	colorActive = color.RGBA{0, 160, 0, 255}
	colorMuted  = color.RGBA{170, 0, 0, 255}
)

type deckKey struct {
	label  func(*engine.Engine) string
	active func(*engine.Engine) bool
	press  func(*engine.Engine) error
}

var deckRow = []deckKey{
	{
		label:  func(*engine.Engine) string { return "PLAY" },
		active: func(e *engine.Engine) bool { return e.State().State == timeline.Playing },
		press:  func(e *engine.Engine) error { e.Play(); return nil },
	},
	{
		label:  func(*engine.Engine) string { return "PAUSE" },
		active: func(e *engine.Engine) bool { return e.State().State == timeline.Paused },
		press: func(e *engine.Engine) error {
			if e.State().State == timeline.Paused {
				e.Resume()
			} else {
				e.Pause()
			}
			return nil
		},
	},
	{
		label:  func(*engine.Engine) string { return "STOP" },
		active: func(e *engine.Engine) bool { return e.State().State == timeline.Stopped },
		press:  func(e *engine.Engine) error { e.Stop(); return nil },
	},
	{
		label:  func(*engine.Engine) string { return "LOOP" },
		active: func(e *engine.Engine) bool { return e.State().Loop },
		press:  func(e *engine.Engine) error { e.ToggleLoop(); return nil },
	},
	{
		label: func(e *engine.Engine) string { return fmt.Sprintf("SPEED-\n%.1fx", e.State().Speed) },
		press: func(e *engine.Engine) error { return stepSpeed(e, -speedStep) },
	},
	{
		label: func(e *engine.Engine) string { return fmt.Sprintf("SPEED+\n%.1fx", e.State().Speed) },
		press: func(e *engine.Engine) error { return stepSpeed(e, speedStep) },
	},
	{
		label: func(*engine.Engine) string { return "BLACK\nOUT" },
		press: func(e *engine.Engine) error { e.Blackout(); return nil },
	},
	{
		label:  func(*engine.Engine) string { return "TRACK" },
		active: func(e *engine.Engine) bool { return e.Tracking() },
		press:  func(e *engine.Engine) error { e.SetTracking(!e.Tracking()); return nil },
	},
}

func stepSpeed(e *engine.Engine, delta float64) error {
	s := math.Round((e.State().Speed+delta)*10) / 10
	return e.SetSpeed(min(max(s, timeline.MinSpeed), timeline.MaxSpeed))
}

// Deck puts transport controls on the first row of a Stream Deck and track
// mutes on the remaining keys.
type Deck struct {
	eng   *engine.Engine
	panel Panel
	keys  int
	row   int
	log   *slog.Logger
}

func NewDeck(eng *engine.Engine, panel Panel, model *streamdeck.Model, log *slog.Logger) *Deck {
	return &Deck{
		eng:   eng,
		panel: panel,
		keys:  model.Keys,
		row:   min(model.KeyCols, len(deckRow)),
		log:   log,
	}
}

// Run redraws on every engine change and handles key presses until ctx is
// done.
func (d *Deck) Run(ctx context.Context, keys <-chan streamdeck.KeyEvent) error {
	changes := d.eng.Changes(ctx)
	d.Redraw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			d.Redraw()
		case ev := <-keys:
			if ev.Pressed {
				d.Press(ev.Key)
			}
		}
	}
}

func (d *Deck) Press(key int) {
	if key < 0 || key >= d.keys {
		return
	}
	if key < d.row {
		if err := deckRow[key].press(d.eng); err != nil {
			d.log.Warn("deck key", "key", key, "error", err)
		}
		d.Redraw()
		return
	}

	tracks := d.eng.Timeline().Tracks
	i := key - d.row
	if i >= len(tracks) {
		return
	}
	if _, err := d.eng.ToggleMute(tracks[i].ID); err != nil {
		d.log.Warn("deck mute", "track", tracks[i].ID, "error", err)
	}
	d.Redraw()
}

func (d *Deck) Redraw() {
	for i := range d.row {
		k := deckRow[i]
		bg := colorIdle
		if k.active != nil && k.active(d.eng) {
			bg = colorActive
		}
		d.draw(i, bg, k.label(d.eng))
	}

	tracks := d.eng.Timeline().Tracks
	for key := d.row; key < d.keys; key++ {
		i := key - d.row
		if i >= len(tracks) {
			d.draw(key, color.Black, "")
			continue
		}
		t := tracks[i]
		name := t.Name
		if name == "" {
			name = t.ID
		}
		bg := colorIdle
		if t.Muted {
			bg = colorMuted
		}
		d.draw(key, bg, name)
	}
}

func (d *Deck) draw(key int, bg color.Color, text string) {
	if err := d.panel.SetKeyText(key, bg, color.White, text); err != nil {
		d.log.Warn("deck output", "key", key, "error", err)
	}
}
