// Package xtouch speaks the Behringer X-Touch MIDI protocol: input decoding
// and motor fader, LED and scribble strip feedback.
package xtouch

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DeviceIDXTouch   = 0x14
	DeviceIDExtender = 0x15
)

const (
	CCFaderFirst   = 70
	CCFaderLast    = 77
	CCFaderMain    = 78
	CCEncoderFirst = 80
	CCEncoderLast  = 87
	CCJogWheel     = 88
	CCMeterFirst   = 90
)

const (
	NoteButtonFirst     = 0
	NoteButtonLast      = 103
	NoteFaderTouchFirst = 110
	NoteFaderTouchLast  = 117
	NoteFaderTouchMain  = 118
)

// MainFader is the fader index of the master fader.
const MainFader = 8

type Event interface {
	String() string
}

type ButtonEvent struct {
	Button  uint8
	Pressed bool
}

func (e ButtonEvent) String() string {
	action := "released"
	if e.Pressed {
		action = "pressed"
	}
	return fmt.Sprintf("Button %d %s", e.Button, action)
}

type FaderEvent struct {
	Fader uint8
	Value uint8 // 0..127
}

func (e FaderEvent) String() string {
	return fmt.Sprintf("%s = %d", faderLabel(e.Fader), e.Value)
}

type FaderTouchEvent struct {
	Fader   uint8
	Touched bool
}

func (e FaderTouchEvent) String() string {
	action := "released"
	if e.Touched {
		action = "touched"
	}
	return fmt.Sprintf("%s %s", faderLabel(e.Fader), action)
}

func faderLabel(f uint8) string {
	if f == MainFader {
		return "Fader main"
	}
	return fmt.Sprintf("Fader %d", f)
}

// EncoderEvent is a relative encoder turn.
type EncoderEvent struct {
	Encoder uint8
	Delta   int
}

func (e EncoderEvent) String() string {
	return fmt.Sprintf("Encoder %d %+d", e.Encoder, e.Delta)
}

type JogWheelEvent struct {
	Clockwise bool
}

func (e JogWheelEvent) String() string {
	if e.Clockwise {
		return "Jog wheel CW"
	}
	return "Jog wheel CCW"
}

func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("xtouch: no MIDI input port matching %q", substr)
}

func FindOutPort(substr string) (drivers.Out, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("xtouch: no MIDI output port matching %q", substr)
}

// Decode turns a MIDI message from the surface into an event, or nil for
// messages the surface does not send. Encoders are expected in relative
// mode.
func Decode(msg midi.Message) Event {
	var channel, key, value uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &value):
		return decodeNote(key, value > 0)
	case msg.GetNoteOff(&channel, &key, &value):
		return decodeNote(key, false)
	case msg.GetControlChange(&channel, &key, &value):
		return decodeCC(key, value)
	}
	return nil
}

func decodeNote(key uint8, on bool) Event {
	switch {
	case key <= NoteButtonLast:
		return ButtonEvent{Button: key, Pressed: on}
	case key >= NoteFaderTouchFirst && key <= NoteFaderTouchLast:
		return FaderTouchEvent{Fader: key - NoteFaderTouchFirst, Touched: on}
	case key == NoteFaderTouchMain:
		return FaderTouchEvent{Fader: MainFader, Touched: on}
	}
	return nil
}

func decodeCC(controller, value uint8) Event {
	switch {
	case controller >= CCFaderFirst && controller <= CCFaderLast:
		return FaderEvent{Fader: controller - CCFaderFirst, Value: value}
	case controller == CCFaderMain:
		return FaderEvent{Fader: MainFader, Value: value}
	case controller >= CCEncoderFirst && controller <= CCEncoderLast:
		delta := 0
		switch {
		case value >= 65:
			delta = int(value) - 64
		case value >= 1:
			delta = -int(value)
		}
		return EncoderEvent{Encoder: controller - CCEncoderFirst, Delta: delta}
	case controller == CCJogWheel:
		return JogWheelEvent{Clockwise: value == 65}
	}
	return nil
}

// Listen decodes messages from the input port and passes events to fn
// until stop is called.
func Listen(in drivers.In, fn func(Event)) (stop func(), err error) {
	stop, err = midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if ev := Decode(msg); ev != nil {
			fn(ev)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("xtouch: listen: %w", err)
	}
	return stop, nil
}

// To7Bit and To8Bit convert between fader positions and DMX levels.
func To7Bit(v byte) uint8 {
	return uint8((int(v)*127 + 127) / 255)
}

func To8Bit(v uint8) byte {
	if v > 127 {
		v = 127
	}
	return byte((int(v)*255 + 63) / 127)
}
