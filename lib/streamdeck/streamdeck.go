// Package streamdeck drives Elgato Stream Deck keys over USB HID.
package streamdeck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"rafaelmartins.com/p/usbhid"
)

const elgatoVendorID = 0x0fd9

type Model struct {
	Name     string
	Keys     int
	KeyRows  int
	KeyCols  int
	KeySize  int
	FlipKeys bool
}

var ModelXL = Model{
	Name:     "XL",
	Keys:     32,
	KeyRows:  4,
	KeyCols:  8,
	KeySize:  96,
	FlipKeys: true,
}

var ModelMK2 = Model{
	Name:     "MK.2",
	Keys:     15,
	KeyRows:  3,
	KeyCols:  5,
	KeySize:  72,
	FlipKeys: true,
}

var ModelPlus = Model{
	Name:    "Plus",
	Keys:    8,
	KeyRows: 2,
	KeyCols: 4,
	KeySize: 120,
}

var productModels = map[uint16]*Model{
	0x006c: &ModelXL,
	0x008f: &ModelXL,
	0x0080: &ModelMK2,
	0x0084: &ModelPlus,
}

type Device struct {
	dev   *usbhid.Device
	model *Model
}

// Open opens the first supported Stream Deck.
func Open() (*Device, error) {
	devices, err := usbhid.Enumerate(func(dev *usbhid.Device) bool {
		return dev.VendorId() == elgatoVendorID && productModels[dev.ProductId()] != nil
	})
	if err != nil {
		return nil, fmt.Errorf("streamdeck: enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("streamdeck: no device found")
	}

	dev := devices[0]
	if err := dev.Open(true); err != nil {
		return nil, fmt.Errorf("streamdeck: open: %w", err)
	}
	return &Device{dev: dev, model: productModels[dev.ProductId()]}, nil
}

func (d *Device) Model() *Model        { return d.model }
func (d *Device) Close() error         { return d.dev.Close() }
func (d *Device) SerialNumber() string { return d.dev.SerialNumber() }
func (d *Device) Product() string      { return d.dev.Product() }

func (d *Device) FirmwareVersion() (string, error) {
	buf, err := d.dev.GetFeatureReport(5)
	if err != nil {
		return "", err
	}
	b, _, _ := bytes.Cut(buf[5:], []byte{0})
	return string(b), nil
}

func (d *Device) Reset() error {
	pl := make([]byte, d.dev.GetFeatureReportLength())
	pl[0] = 0x02
	return d.dev.SetFeatureReport(3, pl)
}

func (d *Device) SetBrightness(perc byte) error {
	pl := make([]byte, d.dev.GetFeatureReportLength())
	pl[0] = 0x08
	pl[1] = min(perc, 100)
	return d.dev.SetFeatureReport(3, pl)
}

func (d *Device) SetKeyColor(key int, c color.Color) error {
	sz := d.model.KeySize
	img := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, xdraw.Src)
	return d.SetKeyImage(key, img)
}

func (d *Device) SetKeyImage(key int, img image.Image) error {
	if key < 0 || key >= d.model.Keys {
		return fmt.Errorf("streamdeck: invalid key %d", key)
	}
	data, err := EncodeKey(d.model, img)
	if err != nil {
		return err
	}
	return d.sendKeyImage(byte(key), data)
}

// EncodeKey scales img to the model's key size and encodes it the way the
// device expects.
func EncodeKey(m *Model, img image.Image) ([]byte, error) {
	sz := m.KeySize
	scaled := image.NewRGBA(image.Rect(0, 0, sz, sz))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	var src image.Image = scaled
	if m.FlipKeys {
		flipped := image.NewRGBA(scaled.Bounds())
		for y := range sz {
			for x := range sz {
				flipped.Set(sz-1-x, sz-1-y, scaled.At(x, y))
			}
		}
		src = flipped
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("streamdeck: encode key: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Device) ClearAllKeys() error {
	for i := range d.model.Keys {
		if err := d.SetKeyColor(i, color.Black); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) sendKeyImage(key byte, imgData []byte) error {
	reportLen := int(d.dev.GetOutputReportLength())
	for _, report := range keyReports(key, imgData, reportLen) {
		if err := d.dev.SetOutputReport(2, report); err != nil {
			return err
		}
	}
	return nil
}

// keyReports splits image data into output reports with an 8-byte header.
func keyReports(key byte, imgData []byte, reportLen int) [][]byte {
	const hdrLen = 8
	payloadLen := reportLen - hdrLen

	var reports [][]byte
	for page, start := 0, 0; start < len(imgData); page++ {
		end := min(start+payloadLen, len(imgData))
		last := byte(0)
		if end == len(imgData) {
			last = 1
		}

		chunk := imgData[start:end]
		report := make([]byte, reportLen)
		copy(report, []byte{
			0x02,
			0x07,
			key,
			last,
			byte(len(chunk)),
			byte(len(chunk) >> 8),
			byte(page),
			byte(page >> 8),
		})
		copy(report[hdrLen:], chunk)
		reports = append(reports, report)
		start = end
	}
	return reports
}

type KeyEvent struct {
	Key     int
	Pressed bool
}

// ReadKeys sends key state changes to ch until the device fails.
func (d *Device) ReadKeys(ch chan<- KeyEvent) error {
	states := make([]byte, d.model.Keys)
	for {
		_, buf, err := d.dev.GetInputReport()
		if err != nil {
			return err
		}
		for _, ev := range keyChanges(buf, states) {
			ch <- ev
		}
	}
}

func keyChanges(buf []byte, states []byte) []KeyEvent {
	const keyStart = 3
	if len(buf) < 4 || buf[0] != 0x00 {
		return nil
	}
	var out []KeyEvent
	for i := range states {
		if keyStart+i >= len(buf) {
			break
		}
		st := buf[keyStart+i]
		if st != states[i] {
			out = append(out, KeyEvent{Key: i, Pressed: st > 0})
			states[i] = st
		}
	}
	return out
}
