package main

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"qlux/lib/dmx"
	"qlux/lib/serialdmx"
	"qlux/lib/streamdeck"
	"qlux/lib/xtouch"
)

const usage = `usage: qluxprobe command

commands:
  ports              list MIDI and serial ports
  xtouch [PORT]      print X-Touch events, echo faders to motors and strips
  deck               label Stream Deck keys and print presses
  dmx PORT [N]       chase a full level through channels 1..N on a serial port`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args := os.Args[2:]; os.Args[1] {
	case "ports":
		err = ports()
	case "xtouch":
		port := "x-touch"
		if len(args) > 0 {
			port = args[0]
		}
		err = probeXTouch(ctx, port)
	case "deck":
		err = probeDeck(ctx)
	case "dmx":
		if len(args) == 0 {
			err = fmt.Errorf("dmx needs a serial port")
			break
		}
		n := 8
		if len(args) > 1 {
			if n, err = strconv.Atoi(args[1]); err != nil {
				break
			}
		}
		err = probeDMX(ctx, args[0], n)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func ports() error {
	defer midi.CloseDriver()

	fmt.Println("MIDI inputs:")
	for _, p := range midi.GetInPorts() {
		fmt.Printf("  %s\n", p)
	}
	fmt.Println("MIDI outputs:")
	for _, p := range midi.GetOutPorts() {
		fmt.Printf("  %s\n", p)
	}

	serial, err := serialdmx.Ports()
	if err != nil {
		return err
	}
	fmt.Println("Serial ports:")
	for _, p := range serial {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func probeXTouch(ctx context.Context, name string) error {
	defer midi.CloseDriver()

	in, err := xtouch.FindInPort(name)
	if err != nil {
		return err
	}
	outPort, err := xtouch.FindOutPort(name)
	if err != nil {
		return err
	}
	out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
	if err != nil {
		return err
	}

	for f := range uint8(8) {
		out.SetLCD(f, xtouch.ColorCyan, fmt.Sprintf("Ch %d", f+1), "0")
	}

	fmt.Printf("Listening on: %s\n", in)
	stop, err := xtouch.Listen(in, func(ev xtouch.Event) {
		fmt.Println(ev)
		if e, ok := ev.(xtouch.FaderEvent); ok && e.Fader < 8 {
			out.SetMeter(e.Fader, e.Value)
			out.SetLCD(e.Fader, xtouch.ColorCyan, fmt.Sprintf("Ch %d", e.Fader+1), fmt.Sprint(xtouch.To8Bit(e.Value)))
		}
	})
	if err != nil {
		return err
	}
	defer stop()

	<-ctx.Done()
	fmt.Println()
	return nil
}

func probeDeck(ctx context.Context) error {
	dev, err := streamdeck.Open()
	if err != nil {
		return err
	}
	defer dev.Close()

	fw, _ := dev.FirmwareVersion()
	m := dev.Model()
	fmt.Printf("Connected to: %s %s (serial: %s, firmware: %s)\n", dev.Product(), m.Name, dev.SerialNumber(), fw)
	dev.SetBrightness(80)

	bg := color.RGBA{30, 60, 120, 255}
	for k := range m.Keys {
		dev.SetKeyText(k, bg, color.White, fmt.Sprintf("Key %d\nR%d C%d", k, k/m.KeyCols, k%m.KeyCols))
	}

	keys := make(chan streamdeck.KeyEvent, 64)
	go func() {
		if err := dev.ReadKeys(keys); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			dev.ClearAllKeys()
			fmt.Println()
			return nil
		case ev := <-keys:
			fmt.Printf("Key %d pressed=%v\n", ev.Key, ev.Pressed)
			if ev.Pressed {
				dev.SetKeyColor(ev.Key, color.White)
			} else {
				dev.SetKeyText(ev.Key, bg, color.White, fmt.Sprintf("Key %d", ev.Key))
			}
		}
	}
}

func probeDMX(ctx context.Context, port string, n int) error {
	if err := dmx.CheckChannel(n); err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	u := dmx.NewUniverse()
	tx := serialdmx.New(u, serialdmx.Options{Port: port, Log: log})

	done := make(chan error, 1)
	go func() { done <- tx.Run(ctx) }()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for ch := 1; ; ch = ch%n + 1 {
		u.Blackout()
		u.Set(ch, 255)
		fmt.Printf("\rchannel %-3d", ch)

		select {
		case <-ctx.Done():
			<-done
			st := tx.Stats()
			fmt.Printf("\nsent %d, skipped %d, failed %d\n", st.Sent, st.Skipped, st.Failed)
			return nil
		case <-ticker.C:
		}
	}
}
