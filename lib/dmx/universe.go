package dmx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const Channels = 512

// Frame holds one value per channel, index 0 is DMX channel 1.
type Frame [Channels]byte

type Universe struct {
	frame atomic.Pointer[Frame]

	mu       sync.Mutex
	watchers map[chan *Frame]struct{}
}

func NewUniverse() *Universe {
	u := &Universe{watchers: make(map[chan *Frame]struct{})}
	u.frame.Store(&Frame{})
	return u
}

// Frame returns the current snapshot. Callers must not modify it.
func (u *Universe) Frame() *Frame {
	return u.frame.Load()
}

// Publish replaces the current snapshot with a copy of f.
func (u *Universe) Publish(f Frame) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.store(&f)
}

func (u *Universe) store(f *Frame) {
	u.frame.Store(f)
	for ch := range u.watchers {
		select {
		case ch <- f:
			continue
		default:
		}
		// Drop the stale frame so the watcher always sees the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}

func CheckChannel(ch int) error {
	if ch < 1 || ch > Channels {
		return fmt.Errorf("dmx: channel %d out of range 1..%d: %w", ch, Channels, ErrValidation)
	}
	return nil
}

func CheckValue(v int) error {
	if v < 0 || v > 255 {
		return fmt.Errorf("dmx: value %d out of range 0..255: %w", v, ErrValidation)
	}
	return nil
}

func (u *Universe) Set(ch int, v int) error {
	if err := CheckChannel(ch); err != nil {
		return err
	}
	if err := CheckValue(v); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	next := *u.frame.Load()
	next[ch-1] = byte(v)
	u.store(&next)
	return nil
}

func (u *Universe) Get(ch int) (int, error) {
	if err := CheckChannel(ch); err != nil {
		return 0, err
	}
	return int(u.frame.Load()[ch-1]), nil
}

func (u *Universe) Blackout() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.store(&Frame{})
}

// Watch returns a channel that always holds the most recently published
// frame. Slow readers skip frames rather than queueing them.
func (u *Universe) Watch(ctx context.Context) <-chan *Frame {
	ch := make(chan *Frame, 1)
	u.mu.Lock()
	u.watchers[ch] = struct{}{}
	ch <- u.frame.Load()
	u.mu.Unlock()

	go func() {
		<-ctx.Done()
		u.mu.Lock()
		delete(u.watchers, ch)
		u.mu.Unlock()
	}()
	return ch
}

func Clamp(v float64) byte {
	switch {
	case v != v || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v + 0.5)
}
