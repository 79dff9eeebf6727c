package serialdmx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"qlux/lib/dmx"
)

type fakeLink struct {
	mu     sync.Mutex
	calls  []string
	frames [][]byte
	baud   int
	fail   bool
	gate   chan struct{}
	closed bool
}

func (l *fakeLink) SetBaudRate(baud int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baud = baud
	l.calls = append(l.calls, "baud")
	return nil
}

func (l *fakeLink) Write(p []byte) (int, error) {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return 0, errors.New("device gone")
	}
	l.calls = append(l.calls, "write")
	if l.baud == DataBaud {
		l.frames = append(l.frames, append([]byte(nil), p...))
	} else if len(p) != 1 || p[0] != 0 {
		l.calls = append(l.calls, "bad-break")
	}
	return len(p), nil
}

func (l *fakeLink) Drain() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, "drain")
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *fakeLink) snapshot() ([]string, [][]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...), append([][]byte(nil), l.frames...), l.closed
}

func setupTransmitter(t *testing.T, link *fakeLink, openErr error) (*Transmitter, *dmx.Universe, func()) {
	t.Helper()
	u := dmx.NewUniverse()
	tx := New(u, Options{
		Port:     "/dev/fake",
		Interval: time.Millisecond,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Open: func(string) (Link, error) {
			if openErr != nil {
				return nil, openErr
			}
			return link, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tx.Run(ctx) }()

	stop := func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	}
	t.Cleanup(cancel)
	return tx, u, stop
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTransmitFrame(t *testing.T) {
	link := &fakeLink{}
	tx, u, stop := setupTransmitter(t, link, nil)
	u.Set(1, 255)
	u.Set(512, 7)

	waitFor(t, "a frame", func() bool { return tx.Stats().Sent >= 2 })
	stop()

	calls, frames, closed := link.snapshot()
	want := []string{"baud", "write", "drain", "baud", "write", "drain"}
	for i, c := range want {
		if calls[i] != c {
			t.Fatalf("call %d: got %q, want %q (%v)", i, calls[i], c, calls)
		}
	}
	last := frames[len(frames)-1]
	if len(last) != 513 {
		t.Fatalf("frame length %d, want 513", len(last))
	}
	if last[0] != 0 || last[1] != 255 || last[512] != 7 {
		t.Errorf("frame start %v, slot1 %d, slot512 %d", last[0], last[1], last[512])
	}
	if !closed {
		t.Error("link not closed on shutdown")
	}
	if tx.Simulated() {
		t.Error("simulated with a working link")
	}
}

func TestTransmitSkipsWhileBusy(t *testing.T) {
	link := &fakeLink{gate: make(chan struct{})}
	tx, _, stop := setupTransmitter(t, link, nil)

	waitFor(t, "skipped ticks", func() bool { return tx.Stats().Skipped >= 3 })
	if tx.Stats().Sent != 0 {
		t.Errorf("sent %d while blocked", tx.Stats().Sent)
	}
	close(link.gate)
	waitFor(t, "a frame", func() bool { return tx.Stats().Sent >= 1 })
	stop()
}

func TestSimulationWhenOpenFails(t *testing.T) {
	tx, _, stop := setupTransmitter(t, nil, errors.New("no such device"))
	waitFor(t, "simulated frames", func() bool { return tx.Stats().Sent >= 3 })
	if !tx.Connected() || !tx.Simulated() {
		t.Errorf("connected=%v simulated=%v", tx.Connected(), tx.Simulated())
	}
	stop()
	if tx.Connected() {
		t.Error("still connected after Run returned")
	}
}

func TestDemoteAfterFailures(t *testing.T) {
	link := &fakeLink{fail: true}
	tx, _, stop := setupTransmitter(t, link, nil)

	waitFor(t, "demotion", tx.Simulated)
	if got := tx.Stats().Failed; got != maxFailures {
		t.Errorf("failed %d, want %d", got, maxFailures)
	}
	_, _, closed := link.snapshot()
	if !closed {
		t.Error("failing link not closed")
	}
	waitFor(t, "simulated frames", func() bool { return tx.Stats().Sent >= 1 })
	stop()
}
