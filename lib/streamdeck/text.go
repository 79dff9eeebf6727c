package streamdeck

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextImage renders centred lines of text on a square key face.
func TextImage(size int, bg color.Color, fg color.Color, lines ...string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	totalHeight := lineHeight * len(lines)
	startY := (size-totalHeight)/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{fg},
			Face: face,
			Dot:  fixed.P((size-width)/2, startY+i*lineHeight),
		}
		d.DrawString(line)
	}
	return img
}

func (d *Device) SetKeyText(key int, bg color.Color, fg color.Color, text string) error {
	return d.SetKeyImage(key, TextImage(d.model.KeySize, bg, fg, strings.Split(text, "\n")...))
}
