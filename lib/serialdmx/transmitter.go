// Package serialdmx sends a universe as DMX512 over a serial link.
package serialdmx

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"qlux/lib/dmx"
)

const (
	DefaultInterval  = 23 * time.Millisecond
	DefaultBreakBaud = 76800
	DefaultMAB       = 12 * time.Microsecond

	// After this many write failures in a row the link is dropped.
	maxFailures = 10
)

type Options struct {
	Port      string
	Interval  time.Duration
	BreakBaud int
	MAB       time.Duration
	Open      func(port string) (Link, error)
	Log       *slog.Logger
}

type Stats struct {
	Sent    uint64 `json:"sent"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

type Transmitter struct {
	opts   Options
	source *dmx.Universe

	link      Link
	busy      atomic.Bool
	connected atomic.Bool
	simulated atomic.Bool
	failures  int // consecutive, touched only by the in-flight send

	sent    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

func New(source *dmx.Universe, opts Options) *Transmitter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BreakBaud <= 0 {
		opts.BreakBaud = DefaultBreakBaud
	}
	if opts.MAB <= 0 {
		opts.MAB = DefaultMAB
	}
	if opts.Open == nil {
		opts.Open = OpenSerial
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Transmitter{opts: opts, source: source}
}

// Connected reports whether Run is emitting frames, to hardware or not.
func (t *Transmitter) Connected() bool {
	return t.connected.Load()
}

// Simulated reports whether frames are being dropped instead of written.
func (t *Transmitter) Simulated() bool {
	return t.simulated.Load()
}

func (t *Transmitter) Stats() Stats {
	return Stats{
		Sent:    t.sent.Load(),
		Skipped: t.skipped.Load(),
		Failed:  t.failed.Load(),
	}
}

// Run emits the latest frame every interval until ctx is cancelled. A tick
// that arrives while the previous frame is still being written is skipped.
func (t *Transmitter) Run(ctx context.Context) error {
	if t.opts.Port == "" {
		t.opts.Log.Info("no serial port configured, simulating")
		t.simulated.Store(true)
	} else if link, err := t.opts.Open(t.opts.Port); err != nil {
		t.opts.Log.Warn("serial link unavailable, simulating", "port", t.opts.Port, "err", err)
		t.simulated.Store(true)
	} else {
		t.opts.Log.Info("serial link open", "port", t.opts.Port)
		t.link = link
	}
	t.connected.Store(true)

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		if t.link != nil {
			t.link.Close()
		}
		t.connected.Store(false)
	}()

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !t.busy.CompareAndSwap(false, true) {
			t.skipped.Add(1)
			continue
		}
		frame := t.source.Frame()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer t.busy.Store(false)
			t.send(frame)
		}()
	}
}

func (t *Transmitter) send(frame *dmx.Frame) {
	if t.simulated.Load() {
		t.sent.Add(1)
		return
	}

	if err := t.writeFrame(frame); err != nil {
		t.failed.Add(1)
		t.failures++
		t.opts.Log.Debug("dmx frame dropped", "err", err)
		if t.failures >= maxFailures {
			t.opts.Log.Warn("serial link failing, simulating", "port", t.opts.Port, "failures", t.failures, "err", err)
			t.link.Close()
			t.link = nil
			t.simulated.Store(true)
		}
		return
	}
	t.failures = 0
	t.sent.Add(1)
}

// writeFrame sends break, mark-after-break, then start code and slots.
func (t *Transmitter) writeFrame(frame *dmx.Frame) error {
	if err := t.link.SetBaudRate(t.opts.BreakBaud); err != nil {
		return err
	}
	if _, err := t.link.Write([]byte{0}); err != nil {
		return err
	}
	if err := t.link.Drain(); err != nil {
		return err
	}
	time.Sleep(t.opts.MAB)

	if err := t.link.SetBaudRate(DataBaud); err != nil {
		return err
	}
	buf := make([]byte, 0, 1+dmx.Channels)
	buf = append(buf, 0x00)
	buf = append(buf, frame[:]...)
	if _, err := t.link.Write(buf); err != nil {
		return err
	}
	return t.link.Drain()
}
