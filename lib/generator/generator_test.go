package generator

import (
	"math"
	"testing"

	"qlux/lib/patch"
	"qlux/lib/show"
)

func rgbPatch(withDimmer bool) patch.Patch {
	fn := map[int][]string{0: {"Red"}, 1: {"Green"}, 2: {"Blue"}, 3: {"Zoom"}, 4: {"Strobe"}}
	if withDimmer {
		fn[5] = []string{"Dimmer"}
	}
	return patch.Patch{Fixtures: []patch.Fixture{
		{ID: "wash", Address: 1, Channels: 6, Functions: fn},
	}}
}

func valueOf(t *testing.T, cs []Contribution, ch int) byte {
	t.Helper()
	for _, c := range cs {
		if c.Channel == ch {
			return c.Value
		}
	}
	t.Fatalf("no contribution for channel %d", ch)
	return 0
}

func TestSceneResolvesAllForms(t *testing.T) {
	p := rgbPatch(true)
	class := patch.Classify(p)
	s := &show.Scene{
		ID:       "s",
		Values:   []int{10, 20},
		Channels: map[int]int{2: 30, 100: 40},
		Fixtures: []show.FixtureSetting{{ID: "wash", Channels: map[string]int{"dimmer": 250, "nosuch": 1}}},
	}

	g := NewScene(s, &p, class)
	if g.Kind() != Layer {
		t.Fatalf("kind %v, want layer", g.Kind())
	}
	cs := g.Sample(Time{Factor: 0.5})

	want := map[int]byte{0: 10, 1: 30, 5: 250, 99: 40}
	if len(cs) != len(want) {
		t.Fatalf("got %d contributions, want %d", len(cs), len(want))
	}
	for ch, v := range want {
		if got := valueOf(t, cs, ch); got != v {
			t.Errorf("channel %d: got %d, want %d", ch, got, v)
		}
	}
	for _, c := range cs {
		if c.Class != class[c.Channel] {
			t.Errorf("channel %d: class %v, want %v", c.Channel, c.Class, class[c.Channel])
		}
	}
}

func TestChaserSymmetry(t *testing.T) {
	p := rgbPatch(true)
	g, err := NewChaser(&show.Chaser{
		ID: "c", StartColor: "#000000", EndColor: "#ffffff", FadeTime: 1000,
		Mode: show.ModePingPong, Fixtures: []string{"wash"},
	}, &p, patch.Classify(p))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		elapsed float64
		want    byte
	}{
		{0, 0},
		{0.5, 128},
		{1, 255},
		{1.5, 128},
		{2, 0},
	}
	for _, tt := range tests {
		cs := g.Sample(Time{Elapsed: tt.elapsed, Factor: 1})
		for _, ch := range []int{0, 1, 2} {
			if got := valueOf(t, cs, ch); got != tt.want {
				t.Errorf("t=%v channel %d: got %d, want %d", tt.elapsed, ch, got, tt.want)
			}
		}
	}
}

func TestChaserModes(t *testing.T) {
	p := rgbPatch(true)
	tests := []struct {
		mode    show.ChaserMode
		ms      float64
		reverse bool
		want    float64
	}{
		{show.ModePingPong, 250, false, 0.25},
		{show.ModePingPong, 1250, false, 0.75},
		{show.ModePingPong, 250, true, 0.75},
		{show.ModePulse, 250, false, 0.25},
		{show.ModePulse, 1250, false, 0},
		{show.ModeStrobe, 250, false, 1},
		{show.ModeStrobe, 1250, false, 0},
		{show.ModeStrobe, 1250, true, 1},
	}
	for _, tt := range tests {
		g, err := NewChaser(&show.Chaser{
			ID: "c", StartColor: "#000000", EndColor: "#ffffff", FadeTime: 1000,
			Mode: tt.mode, Fixtures: []string{"wash"},
		}, &p, patch.Classify(p))
		if err != nil {
			t.Fatal(err)
		}
		if got := g.Progress(tt.ms, tt.reverse); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s at %vms reverse=%v: got %v, want %v", tt.mode, tt.ms, tt.reverse, got, tt.want)
		}
	}
}

func TestChaserDimmerAndStrobeScale(t *testing.T) {
	p := rgbPatch(true)
	strobe := 200
	g, err := NewChaser(&show.Chaser{
		ID: "c", StartColor: "#ff0000", EndColor: "#ff0000", FadeTime: 500,
		Strobe: &strobe, Fixtures: []string{"wash"},
	}, &p, patch.Classify(p))
	if err != nil {
		t.Fatal(err)
	}

	cs := g.Sample(Time{Factor: 0.5})
	if got := valueOf(t, cs, 0); got != 255 {
		t.Errorf("red: got %d, want 255 (fixture has a dimmer)", got)
	}
	if got := valueOf(t, cs, 4); got != 100 {
		t.Errorf("strobe: got %d, want 100", got)
	}
	if got := valueOf(t, cs, 5); got != 128 {
		t.Errorf("dimmer: got %d, want 128", got)
	}
}

func TestChaserColorDoublesAsBrightness(t *testing.T) {
	p := rgbPatch(false)
	class := patch.Classify(p)
	g, err := NewChaser(&show.Chaser{
		ID: "c", StartColor: "#ff0000", EndColor: "#ff0000", FadeTime: 500,
		Fixtures: []string{"wash"},
	}, &p, class)
	if err != nil {
		t.Fatal(err)
	}

	cs := g.Sample(Time{Factor: 0.5})
	if got := valueOf(t, cs, 0); got != 128 {
		t.Errorf("red: got %d, want 128", got)
	}
	if class[0] != patch.Intensity {
		t.Errorf("red class %v, want intensity", class[0])
	}
}

func TestChaserZoom(t *testing.T) {
	p := rgbPatch(true)
	cfg := &show.Chaser{
		ID: "c", StartColor: "#000000", EndColor: "#000000", FadeTime: 500,
		Zoom:     show.Zoom{Enabled: true, Period: 1000, Max: 200},
		Fixtures: []string{"wash"},
	}

	tests := []struct {
		shape   show.ZoomShape
		invert  bool
		elapsed float64
		want    byte
	}{
		{show.ZoomTriangle, false, 0, 0},
		{show.ZoomTriangle, false, 0.5, 200},
		{show.ZoomTriangle, false, 0.75, 100},
		{show.ZoomSaw, false, 0.75, 150},
		{show.ZoomTriangle, true, 0, 200},
	}
	for _, tt := range tests {
		cfg.Zoom.Shape = tt.shape
		cfg.Zoom.Invert = tt.invert
		g, err := NewChaser(cfg, &p, patch.Classify(p))
		if err != nil {
			t.Fatal(err)
		}
		if got := valueOf(t, g.Sample(Time{Elapsed: tt.elapsed, Factor: 1}), 3); got != tt.want {
			t.Errorf("%s invert=%v t=%v: got %d, want %d", tt.shape, tt.invert, tt.elapsed, got, tt.want)
		}
	}
}

func TestChaserRejectsBadColour(t *testing.T) {
	p := rgbPatch(true)
	_, err := NewChaser(&show.Chaser{ID: "c", StartColor: "red", EndColor: "#000000", FadeTime: 1}, &p, patch.Classify(p))
	if err == nil {
		t.Fatal("expected error")
	}
}

func dimmerPatch(n int) patch.Patch {
	var p patch.Patch
	for i := range n {
		p.Fixtures = append(p.Fixtures, patch.Fixture{
			ID:        string(rune('a' + i)),
			Address:   1 + i*2,
			Channels:  2,
			Functions: map[int][]string{0: {"Dimmer"}, 1: {"Pan"}},
		})
	}
	return p
}

func TestEffectWingPhases(t *testing.T) {
	p := dimmerPatch(4)
	g := NewEffect(&show.Effect{
		ID: "e", Waveform: show.WaveSine, Speed: 1, Amplitude: 255,
		Spread: 180, Wings: 2, Attribute: "dimmer",
		Fixtures: []string{"a", "b", "c", "d"},
	}, &p, patch.Classify(p))

	if g.Targets() != 4 {
		t.Fatalf("got %d targets, want 4", g.Targets())
	}
	want := []float64{0, 90, 0, 90}
	for i, w := range want {
		if got := g.Phase(i, 0, false); got != w {
			t.Errorf("target %d: phase %v, want %v", i, got, w)
		}
	}

	cs := g.Sample(Time{Factor: 1})
	if cs[0].Value != cs[2].Value || cs[1].Value != cs[3].Value {
		t.Errorf("wing pairs differ: %v", cs)
	}
	if cs[0].Value != 128 || cs[1].Value != 255 {
		t.Errorf("got %d/%d, want 128/255", cs[0].Value, cs[1].Value)
	}
}

func TestEffectSkipsUnmatchedFixtures(t *testing.T) {
	p := dimmerPatch(2)
	p.Fixtures = append(p.Fixtures, patch.Fixture{ID: "z", Address: 100, Channels: 1, Functions: map[int][]string{0: {"Gobo"}}})
	g := NewEffect(&show.Effect{
		ID: "e", Waveform: show.WaveSquare, Amplitude: 100, Attribute: "dimmer",
		Fixtures: []string{"a", "z", "b", "missing"},
	}, &p, patch.Classify(p))
	if g.Targets() != 2 {
		t.Fatalf("got %d targets, want 2", g.Targets())
	}
}

func TestEffectShapes(t *testing.T) {
	tests := []struct {
		wave  show.Waveform
		phase float64
		want  float64
	}{
		{show.WaveSine, 0, 60},
		{show.WaveSine, 90, 110},
		{show.WaveSine, 270, 10},
		{show.WaveSquare, 179, 110},
		{show.WaveSquare, 180, 10},
		{show.WaveSaw, 0, 110},
		{show.WaveSaw, 180, 60},
		{show.WaveRamp, 0, 10},
		{show.WaveRamp, 270, 85},
		{show.WaveStrobe, 35, 110},
		{show.WaveStrobe, 36, 10},
	}
	for _, tt := range tests {
		g := &Effect{cfg: show.Effect{Waveform: tt.wave, Amplitude: 100, Offset: 10}}
		if got := g.Shape(tt.phase); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s at %v: got %v, want %v", tt.wave, tt.phase, got, tt.want)
		}
	}
}

func TestEffectReverseAndFactor(t *testing.T) {
	p := dimmerPatch(1)
	g := NewEffect(&show.Effect{
		ID: "e", Waveform: show.WaveRamp, Speed: 1, Amplitude: 200, Attribute: "dimmer",
		Fixtures: []string{"a"},
	}, &p, patch.Classify(p))

	if got := g.Phase(0, 0.25, false); got != 90 {
		t.Errorf("forward phase %v, want 90", got)
	}
	if got := g.Phase(0, 0.25, true); got != 270 {
		t.Errorf("reverse phase %v, want 270", got)
	}
	cs := g.Sample(Time{Elapsed: 0.25, Factor: 0.5})
	if cs[0].Value != 25 {
		t.Errorf("got %d, want 25", cs[0].Value)
	}
}
