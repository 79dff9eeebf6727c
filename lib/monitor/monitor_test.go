package monitor

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/timeline"
)

func TestRender(t *testing.T) {
	var f dmx.Frame
	f[0] = 255
	f[17] = 42

	out := Render(&f, Options{})
	if got, want := lipgloss.Height(out), dmx.Channels/DefaultColumns; got != want {
		t.Errorf("got %d rows, want %d", got, want)
	}
	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[0], "255") {
		t.Errorf("row 1 missing value: %q", lines[0])
	}
	if !strings.Contains(lines[1], "17") || !strings.Contains(lines[1], "42") {
		t.Errorf("row 2: %q", lines[1])
	}
}

func TestRenderRange(t *testing.T) {
	var f dmx.Frame
	var class patch.Classification
	class[9] = patch.Color
	f[9] = 128

	out := Render(&f, Options{Columns: 4, From: 9, To: 14, Class: &class})
	if got := lipgloss.Height(out); got != 2 {
		t.Errorf("got %d rows, want 2", got)
	}
	if !strings.Contains(out, "128") {
		t.Error("missing channel 10")
	}
}

func TestHeader(t *testing.T) {
	h := Header(timeline.Status{State: timeline.Playing, Clock: 1.5, Speed: 1, Loop: true})
	for _, want := range []string{"PLAYING", "1.50s", "1.0x", "LOOP"} {
		if !strings.Contains(h, want) {
			t.Errorf("header %q missing %q", h, want)
		}
	}
}

func TestActive(t *testing.T) {
	var f dmx.Frame
	f[3], f[500] = 1, 255
	if got := Active(&f); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}
