package xtouch

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type LCDColor uint8

const (
	ColorBlack   LCDColor = 0
	ColorRed     LCDColor = 1
	ColorGreen   LCDColor = 2
	ColorYellow  LCDColor = 3
	ColorBlue    LCDColor = 4
	ColorMagenta LCDColor = 5
	ColorCyan    LCDColor = 6
	ColorWhite   LCDColor = 7
)

type LEDState uint8

const (
	LEDOff   LEDState = 0
	LEDFlash LEDState = 64
	LEDOn    LEDState = 127
)

const lcdWidth = 7

type Output struct {
	send     func(msg midi.Message) error
	DeviceID uint8
}

func NewOutput(port drivers.Out, deviceID uint8) (*Output, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("xtouch: open output port: %w", err)
	}
	return NewOutputFunc(send, deviceID), nil
}

// NewOutputFunc builds an output around any message sink.
func NewOutputFunc(send func(msg midi.Message) error, deviceID uint8) *Output {
	return &Output{send: send, DeviceID: deviceID}
}

func (o *Output) SetFader(fader uint8, value uint8) error {
	cc := CCFaderFirst + fader
	if fader == MainFader {
		cc = CCFaderMain
	}
	return o.send(midi.ControlChange(0, cc, min(value, 127)))
}

func (o *Output) SetButtonLED(button uint8, state LEDState) error {
	return o.send(midi.NoteOn(0, button, uint8(state)))
}

func (o *Output) SetMeter(channel uint8, value uint8) error {
	return o.send(midi.ControlChange(0, CCMeterFirst+channel, min(value, 127)))
}

// SetLCD writes both 7-character lines of a scribble strip.
func (o *Output) SetLCD(lcd uint8, color LCDColor, upper, lower string) error {
	data := []byte{0x00, 0x20, 0x32, o.DeviceID, 0x4C, lcd, uint8(color)}
	data = append(data, fit(upper)...)
	data = append(data, fit(lower)...)
	return o.send(midi.SysEx(data))
}

func fit(s string) []byte {
	out := []byte(s)
	if len(out) > lcdWidth {
		return out[:lcdWidth]
	}
	for len(out) < lcdWidth {
		out = append(out, ' ')
	}
	return out
}
