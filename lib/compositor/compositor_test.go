package compositor

import (
	"testing"

	"qlux/lib/dmx"
	"qlux/lib/generator"
	"qlux/lib/patch"
)

func testClass() *patch.Classification {
	var c patch.Classification
	c[0] = patch.Intensity // channel 1
	c[4] = patch.Intensity // channel 5
	c[9] = patch.Color     // channel 10
	return &c
}

func scene(track int, factor float64, vals map[int]byte) Layer {
	l := Layer{Track: track, Kind: generator.Layer, Factor: factor}
	for ch, v := range vals {
		l.Values = append(l.Values, generator.Contribution{Channel: ch, Value: v})
	}
	return l
}

func overlay(track int, vals map[int]byte) Layer {
	l := scene(track, 1, vals)
	l.Kind = generator.Overlay
	return l
}

func TestTwoTrackScenario(t *testing.T) {
	var prev dmx.Frame
	layers := []Layer{
		scene(0, 1, map[int]byte{9: 100, 0: 200}),
		scene(1, 1, map[int]byte{9: 200, 0: 50}),
	}

	out := Resolve(&prev, testClass(), layers, Options{Tracking: true})
	if out[9] != 200 {
		t.Errorf("channel 10: got %d, want 200", out[9])
	}
	if out[0] != 200 {
		t.Errorf("channel 1: got %d, want 200", out[0])
	}

	// Same result regardless of slice order.
	out = Resolve(&prev, testClass(), []Layer{layers[1], layers[0]}, Options{Tracking: true})
	if out[9] != 200 || out[0] != 200 {
		t.Errorf("reordered input: got %d/%d, want 200/200", out[9], out[0])
	}
}

func TestIntensityIsMaxNotHeld(t *testing.T) {
	var prev dmx.Frame
	prev[0] = 255
	out := Resolve(&prev, testClass(), []Layer{scene(0, 1, map[int]byte{0: 40})}, Options{Tracking: true})
	if out[0] != 40 {
		t.Errorf("got %d, want 40", out[0])
	}
}

func TestLTPOrderWithinTrack(t *testing.T) {
	var prev dmx.Frame
	early := scene(0, 1, map[int]byte{9: 10})
	late := scene(0, 1, map[int]byte{9: 90})
	late.Start = 5

	out := Resolve(&prev, testClass(), []Layer{late, early}, Options{})
	if out[9] != 90 {
		t.Errorf("got %d, want 90", out[9])
	}
}

func TestTracking(t *testing.T) {
	var prev dmx.Frame
	prev[4] = 255
	prev[9] = 77

	out := Resolve(&prev, testClass(), nil, Options{Tracking: false})
	if out[4] != 0 {
		t.Errorf("tracking off: channel 5 got %d, want 0", out[4])
	}
	if out[9] != 77 {
		t.Errorf("tracking off: channel 10 got %d, want 77 (held)", out[9])
	}

	out = Resolve(&prev, testClass(), nil, Options{Tracking: true})
	if out[4] != 255 {
		t.Errorf("tracking on: channel 5 got %d, want 255", out[4])
	}
}

func TestSceneBlend(t *testing.T) {
	var prev dmx.Frame
	prev[9] = 100

	tests := []struct {
		factor float64
		want   byte
	}{
		{0, 100},
		{0.005, 100},
		{0.5, 150},
		{0.25, 125},
		{0.99, 200},
		{1, 200},
	}
	for _, tt := range tests {
		out := Resolve(&prev, testClass(), []Layer{scene(0, tt.factor, map[int]byte{9: 200})}, Options{})
		if out[9] != tt.want {
			t.Errorf("factor %v: got %d, want %d", tt.factor, out[9], tt.want)
		}
	}
}

func TestSceneIntensityScaled(t *testing.T) {
	var prev dmx.Frame
	out := Resolve(&prev, testClass(), []Layer{scene(0, 0.5, map[int]byte{0: 200})}, Options{})
	if out[0] != 100 {
		t.Errorf("got %d, want 100", out[0])
	}
}

func TestOverlayMax(t *testing.T) {
	var prev dmx.Frame
	prev[20] = 250

	layers := []Layer{
		scene(0, 1, map[int]byte{9: 120}),
		overlay(0, map[int]byte{9: 80, 20: 30}),
		overlay(1, map[int]byte{20: 60}),
	}
	out := Resolve(&prev, testClass(), layers, Options{Tracking: true})
	if out[9] != 120 {
		t.Errorf("channel 10: got %d, want 120 (scene above overlay)", out[9])
	}
	if out[20] != 60 {
		t.Errorf("channel 21: got %d, want 60 (overlay must not ratchet on held value)", out[20])
	}
}

func TestResolveIdempotent(t *testing.T) {
	var prev dmx.Frame
	for i := range prev {
		prev[i] = byte(i * 7)
	}
	layers := []Layer{
		scene(0, 0.3, map[int]byte{9: 200, 0: 180, 100: 3}),
		scene(2, 0.8, map[int]byte{9: 10, 4: 90}),
		overlay(1, map[int]byte{4: 100, 300: 255}),
	}

	a := Resolve(&prev, testClass(), layers, Options{})
	b := Resolve(&prev, testClass(), layers, Options{})
	if a != b {
		t.Fatal("resolving the same state twice gave different frames")
	}
	if prev[0] != 0 || prev[9] != 63 {
		t.Fatal("previous frame was modified")
	}
}

func TestResolveIgnoresOutOfRange(t *testing.T) {
	var prev dmx.Frame
	layers := []Layer{scene(0, 1, map[int]byte{-1: 10, dmx.Channels: 10, 3: 10})}
	out := Resolve(&prev, testClass(), layers, Options{})
	if out[3] != 10 {
		t.Errorf("got %d, want 10", out[3])
	}
}

func TestResolveClampsFactor(t *testing.T) {
	var prev dmx.Frame
	out := Resolve(&prev, testClass(), []Layer{scene(0, 3, map[int]byte{0: 200})}, Options{})
	if out[0] != 200 {
		t.Errorf("got %d, want 200", out[0])
	}
}

func BenchmarkResolve(b *testing.B) {
	var prev dmx.Frame
	var layers []Layer
	for track := range 8 {
		vals := map[int]byte{}
		for ch := range dmx.Channels {
			vals[ch] = byte(ch + track)
		}
		layers = append(layers, scene(track, 0.5, vals))
	}
	class := testClass()

	for range b.N {
		prev = Resolve(&prev, class, layers, Options{Tracking: true})
	}
}
