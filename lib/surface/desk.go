// Package surface binds hardware control surfaces to an engine.
package surface

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"

	"qlux/lib/dmx"
	"qlux/lib/engine"
	"qlux/lib/timeline"
	"qlux/lib/xtouch"
)

const (
	BankSize = 8
	Banks    = dmx.Channels / BankSize
)

// DeskOutput is the feedback side of a fader desk.
type DeskOutput interface {
	SetFader(fader uint8, value uint8) error
	SetButtonLED(button uint8, state xtouch.LEDState) error
	SetLCD(lcd uint8, color xtouch.LCDColor, upper, lower string) error
}

type Action string

const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionStop     Action = "stop"
	ActionLoop     Action = "loop"
	ActionBankDown Action = "bank-"
	ActionBankUp   Action = "bank+"
)

// DefaultButtons matches the X-Touch transport section.
var DefaultButtons = map[uint8]Action{
	91: ActionBankDown,
	92: ActionBankUp,
	93: ActionStop,
	94: ActionPlay,
	95: ActionPause,
	86: ActionLoop,
}

// Desk maps faders 1-8 onto a bank of eight manual channels.
type Desk struct {
	eng     *engine.Engine
	out     DeskOutput
	buttons map[uint8]Action
	log     *slog.Logger

	mu      sync.Mutex
	bank    int
	touched [BankSize]bool
}

func NewDesk(eng *engine.Engine, out DeskOutput, buttons map[uint8]Action, log *slog.Logger) *Desk {
	if buttons == nil {
		buttons = DefaultButtons
	}
	return &Desk{eng: eng, out: out, buttons: buttons, log: log}
}

func (d *Desk) Bank() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bank
}

// Channel returns the 1-based DMX channel under fader f in the current bank.
func (d *Desk) Channel(f int) int {
	return d.Bank()*BankSize + f + 1
}

// Run listens on the input port until ctx is done.
func (d *Desk) Run(ctx context.Context, in drivers.In) error {
	stop, err := xtouch.Listen(in, d.Handle)
	if err != nil {
		return fmt.Errorf("surface: %w", err)
	}
	defer stop()

	d.Refresh()
	<-ctx.Done()
	return nil
}

func (d *Desk) Handle(ev xtouch.Event) {
	switch e := ev.(type) {
	case xtouch.FaderEvent:
		if e.Fader >= BankSize {
			return
		}
		ch := d.Channel(int(e.Fader))
		v := xtouch.To8Bit(e.Value)
		if err := d.eng.SetChannel(ch, int(v)); err != nil {
			d.log.Warn("desk fader", "channel", ch, "error", err)
			return
		}
		d.showChannel(e.Fader, ch, v)

	case xtouch.FaderTouchEvent:
		if e.Fader >= BankSize {
			return
		}
		d.mu.Lock()
		d.touched[e.Fader] = e.Touched
		d.mu.Unlock()
		if !e.Touched {
			d.refreshFader(e.Fader)
		}

	case xtouch.EncoderEvent:
		switch {
		case e.Delta > 0:
			d.shiftBank(1)
		case e.Delta < 0:
			d.shiftBank(-1)
		}

	case xtouch.JogWheelEvent:
		if e.Clockwise {
			d.shiftBank(1)
		} else {
			d.shiftBank(-1)
		}

	case xtouch.ButtonEvent:
		if e.Pressed {
			d.press(e.Button)
		}
	}
}

func (d *Desk) press(button uint8) {
	action, ok := d.buttons[button]
	if !ok {
		return
	}
	switch action {
	case ActionPlay:
		d.eng.Play()
	case ActionPause:
		if d.eng.State().State == timeline.Paused {
			d.eng.Resume()
		} else {
			d.eng.Pause()
		}
	case ActionStop:
		d.eng.Stop()
	case ActionLoop:
		d.eng.ToggleLoop()
	case ActionBankDown:
		d.shiftBank(-1)
		return
	case ActionBankUp:
		d.shiftBank(1)
		return
	}
	d.refreshLEDs()
}

func (d *Desk) shiftBank(delta int) {
	d.mu.Lock()
	bank := min(max(d.bank+delta, 0), Banks-1)
	changed := bank != d.bank
	d.bank = bank
	d.mu.Unlock()
	if changed {
		d.Refresh()
	}
}

// Refresh moves the motor faders and rewrites the scribble strips for the
// current bank. Faders under a finger are left alone.
func (d *Desk) Refresh() {
	for f := range uint8(BankSize) {
		d.refreshFader(f)
	}
	d.refreshLEDs()
}

func (d *Desk) refreshFader(f uint8) {
	ch := d.Channel(int(f))
	v, err := d.eng.Channel(ch)
	if err != nil {
		return
	}

	d.mu.Lock()
	touched := d.touched[f]
	d.mu.Unlock()
	if !touched {
		if err := d.out.SetFader(f, xtouch.To7Bit(byte(v))); err != nil {
			d.log.Warn("desk output", "error", err)
		}
	}
	d.showChannel(f, ch, byte(v))
}

func (d *Desk) showChannel(f uint8, ch int, v byte) {
	color := xtouch.ColorBlue
	if v > 0 {
		color = xtouch.ColorWhite
	}
	if err := d.out.SetLCD(f, color, fmt.Sprintf("Ch %d", ch), fmt.Sprintf("%d", v)); err != nil {
		d.log.Warn("desk output", "error", err)
	}
}

func (d *Desk) refreshLEDs() {
	st := d.eng.State()
	lit := map[Action]bool{
		ActionPlay:  st.State == timeline.Playing,
		ActionPause: st.State == timeline.Paused,
		ActionStop:  st.State == timeline.Stopped,
		ActionLoop:  st.Loop,
	}
	for button, action := range d.buttons {
		on, ok := lit[action]
		if !ok {
			continue
		}
		state := xtouch.LEDOff
		if on {
			state = xtouch.LEDOn
		}
		if err := d.out.SetButtonLED(button, state); err != nil {
			d.log.Warn("desk output", "error", err)
		}
	}
}
