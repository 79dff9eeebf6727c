package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"qlux/lib/dmx"
	"qlux/lib/engine"
	"qlux/lib/osc"
	"qlux/lib/serialdmx"
)

const prefix = "/qlux"

func newRouter(eng *engine.Engine, tx *serialdmx.Transmitter, log *slog.Logger) *osc.Router {
	r := osc.NewRouter()

	r.Handle(prefix+"/play", func(string, []any) (any, error) {
		eng.Play()
		return nil, nil
	})
	r.Handle(prefix+"/pause", func(string, []any) (any, error) {
		eng.Pause()
		return nil, nil
	})
	r.Handle(prefix+"/resume", func(string, []any) (any, error) {
		eng.Resume()
		return nil, nil
	})
	r.Handle(prefix+"/stop", func(string, []any) (any, error) {
		eng.Stop()
		return nil, nil
	})
	r.Handle(prefix+"/loop", func(string, []any) (any, error) {
		return eng.ToggleLoop(), nil
	})
	r.Handle(prefix+"/blackout", func(string, []any) (any, error) {
		eng.Blackout()
		return nil, nil
	})

	r.Handle(prefix+"/seek", func(_ string, args []any) (any, error) {
		t, err := osc.Float(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, eng.Seek(t)
	})
	r.Handle(prefix+"/speed", func(_ string, args []any) (any, error) {
		s, err := osc.Float(args, 0)
		if err != nil {
			return nil, err
		}
		if err := eng.SetSpeed(s); err != nil {
			return nil, err
		}
		return eng.State().Speed, nil
	})
	r.Handle(prefix+"/tracking", func(_ string, args []any) (any, error) {
		on, err := osc.Int(args, 0)
		if err != nil {
			return nil, err
		}
		eng.SetTracking(on != 0)
		return on != 0, nil
	})

	r.Handle(prefix+"/channel/*", func(addr string, args []any) (any, error) {
		ch, err := strconv.Atoi(strings.TrimPrefix(addr, prefix+"/channel/"))
		if err != nil {
			return nil, fmt.Errorf("channel address %q: %w", addr, dmx.ErrValidation)
		}
		if len(args) == 0 {
			return eng.Channel(ch)
		}
		v, err := osc.Int(args, 0)
		if err != nil {
			return nil, err
		}
		return nil, eng.SetChannel(ch, v)
	})
	r.Handle(prefix+"/mute/*", func(addr string, _ []any) (any, error) {
		muted, err := eng.ToggleMute(strings.TrimPrefix(addr, prefix+"/mute/"))
		if err != nil {
			return nil, err
		}
		log.Info("track mute", "addr", addr, "muted", muted)
		return muted, nil
	})

	r.Handle(prefix+"/state", func(string, []any) (any, error) {
		return currentState(eng, tx), nil
	})
	return r
}
