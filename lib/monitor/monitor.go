// Package monitor renders universe frames for a terminal.
package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"qlux/lib/dmx"
	"qlux/lib/patch"
	"qlux/lib/timeline"
)

const DefaultColumns = 16

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888")).Width(5)
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
)

var (
	cellOff   = colorful.Color{R: 0.08, G: 0.08, B: 0.08}
	classTint = map[patch.Class]colorful.Color{
		patch.Unclassified: {R: 0.6, G: 0.6, B: 0.6},
		patch.Intensity:    {R: 1, G: 1, B: 1},
		patch.Color:        {R: 0.9, G: 0.2, B: 0.5},
		patch.Position:     {R: 0.2, G: 0.6, B: 1},
		patch.Beam:         {R: 0.3, G: 0.9, B: 0.4},
		patch.Speed:        {R: 0.9, G: 0.8, B: 0.2},
		patch.Control:      {R: 1, G: 0.5, B: 0.1},
	}
)

type Options struct {
	Columns int
	// From and To bound the rendered channels, 1-based and inclusive.
	From, To int
	Class    *patch.Classification
}

func (o *Options) normalize() {
	if o.Columns <= 0 {
		o.Columns = DefaultColumns
	}
	if o.From < 1 {
		o.From = 1
	}
	if o.To < o.From || o.To > dmx.Channels {
		o.To = dmx.Channels
	}
}

// Render draws a grid of channel values, each cell shaded by its level.
func Render(f *dmx.Frame, opts Options) string {
	opts.normalize()

	var lines []string
	for row := opts.From; row <= opts.To; row += opts.Columns {
		var line strings.Builder
		line.WriteString(labelStyle.Render(fmt.Sprintf("%d", row)))
		for ch := row; ch < row+opts.Columns && ch <= opts.To; ch++ {
			line.WriteString(cell(f[ch-1], classOf(opts.Class, ch)))
		}
		lines = append(lines, line.String())
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func classOf(c *patch.Classification, ch int) patch.Class {
	if c == nil {
		return patch.Unclassified
	}
	return c[ch-1]
}

func cell(v byte, class patch.Class) string {
	tint, ok := classTint[class]
	if !ok {
		tint = classTint[patch.Unclassified]
	}
	bg := cellOff.BlendRgb(tint, float64(v)/255)
	fg := lipgloss.Color("#000")
	if l, _, _ := bg.Lab(); l < 0.5 {
		fg = lipgloss.Color("#ddd")
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg.Clamped().Hex())).
		Foreground(fg).
		Render(fmt.Sprintf("%4d", v))
}

// Header summarises the transport for the top of the monitor.
func Header(st timeline.Status) string {
	loop := dimStyle.Render("loop")
	if st.Loop {
		loop = headerStyle.Render("LOOP")
	}
	return headerStyle.Render(fmt.Sprintf("%-8s %8.2fs  %.1fx", strings.ToUpper(st.State.String()), st.Clock, st.Speed)) + "  " + loop
}

// Active counts channels above zero.
func Active(f *dmx.Frame) int {
	n := 0
	for _, v := range f {
		if v > 0 {
			n++
		}
	}
	return n
}
