package xtouch

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		msg  midi.Message
		want Event
	}{
		{midi.NoteOn(0, 94, 127), ButtonEvent{Button: 94, Pressed: true}},
		{midi.NoteOff(0, 94), ButtonEvent{Button: 94, Pressed: false}},
		{midi.NoteOn(0, 112, 127), FaderTouchEvent{Fader: 2, Touched: true}},
		{midi.NoteOn(0, 118, 127), FaderTouchEvent{Fader: MainFader, Touched: true}},
		{midi.ControlChange(0, 73, 100), FaderEvent{Fader: 3, Value: 100}},
		{midi.ControlChange(0, 78, 5), FaderEvent{Fader: MainFader, Value: 5}},
		{midi.ControlChange(0, 81, 65), EncoderEvent{Encoder: 1, Delta: 1}},
		{midi.ControlChange(0, 81, 67), EncoderEvent{Encoder: 1, Delta: 3}},
		{midi.ControlChange(0, 81, 1), EncoderEvent{Encoder: 1, Delta: -1}},
		{midi.ControlChange(0, 88, 65), JogWheelEvent{Clockwise: true}},
		{midi.ControlChange(0, 88, 1), JogWheelEvent{Clockwise: false}},
		{midi.ControlChange(0, 10, 1), nil},
		{midi.NoteOn(0, 105, 127), nil},
	}
	for _, tt := range tests {
		if got := Decode(tt.msg); got != tt.want {
			t.Errorf("%v: got %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestLevelConversion(t *testing.T) {
	if To7Bit(0) != 0 || To7Bit(255) != 127 {
		t.Errorf("To7Bit ends: %d %d", To7Bit(0), To7Bit(255))
	}
	if To8Bit(0) != 0 || To8Bit(127) != 255 || To8Bit(200) != 255 {
		t.Errorf("To8Bit ends: %d %d %d", To8Bit(0), To8Bit(127), To8Bit(200))
	}
	for v := range 128 {
		if got := To7Bit(To8Bit(uint8(v))); got != uint8(v) {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}
}

func TestOutput(t *testing.T) {
	var sent []midi.Message
	out := NewOutputFunc(func(msg midi.Message) error {
		sent = append(sent, msg)
		return nil
	}, DeviceIDXTouch)

	out.SetFader(MainFader, 200)
	out.SetButtonLED(94, LEDOn)
	out.SetLCD(3, ColorCyan, "Ch 12", "a long label")

	var ch, cc, val uint8
	if !sent[0].GetControlChange(&ch, &cc, &val) || cc != CCFaderMain || val != 127 {
		t.Errorf("fader: %v", sent[0])
	}
	var key, vel uint8
	if !sent[1].GetNoteOn(&ch, &key, &vel) || key != 94 || vel != uint8(LEDOn) {
		t.Errorf("led: %v", sent[1])
	}

	var data []byte
	if !sent[2].GetSysEx(&data) {
		t.Fatalf("lcd: not sysex: %v", sent[2])
	}
	want := append([]byte{0x00, 0x20, 0x32, DeviceIDXTouch, 0x4C, 3, uint8(ColorCyan)}, "Ch 12  a long "...)
	if !bytes.Equal(data, want) {
		t.Errorf("lcd: got %q, want %q", data, want)
	}
}
