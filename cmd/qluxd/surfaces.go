package main

import (
	"context"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"qlux/lib/config"
	"qlux/lib/engine"
	"qlux/lib/streamdeck"
	"qlux/lib/surface"
	"qlux/lib/xtouch"
)

// startSurfaces attaches whichever configured surfaces are present. A
// missing device is logged and skipped.
func startSurfaces(ctx context.Context, g *errgroup.Group, cfg config.SurfacesConfig, eng *engine.Engine, log *slog.Logger) {
	if cfg.XTouch.Enabled {
		startDesk(ctx, g, cfg.XTouch, eng, log)
	}
	if cfg.StreamDeck.Enabled {
		startDeck(ctx, g, cfg.StreamDeck, eng, log)
	}
}

func startDesk(ctx context.Context, g *errgroup.Group, cfg config.XTouchConfig, eng *engine.Engine, log *slog.Logger) {
	in, err := xtouch.FindInPort(cfg.Port)
	if err != nil {
		log.Warn("x-touch not found", "err", err)
		return
	}
	outPort, err := xtouch.FindOutPort(cfg.Port)
	if err != nil {
		log.Warn("x-touch not found", "err", err)
		return
	}
	out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
	if err != nil {
		log.Warn("x-touch output", "err", err)
		return
	}

	var buttons map[uint8]surface.Action
	if len(cfg.Buttons) > 0 {
		buttons = map[uint8]surface.Action{}
		for note, action := range cfg.Buttons {
			buttons[note] = surface.Action(action)
		}
	}

	desk := surface.NewDesk(eng, out, buttons, log)
	log.Info("x-touch attached", "port", in.String())
	g.Go(func() error {
		defer midi.CloseDriver()
		return desk.Run(ctx, in)
	})
}

func startDeck(ctx context.Context, g *errgroup.Group, cfg config.StreamDeckConfig, eng *engine.Engine, log *slog.Logger) {
	dev, err := streamdeck.Open()
	if err != nil {
		log.Warn("stream deck not found", "err", err)
		return
	}
	if err := dev.SetBrightness(byte(cfg.Brightness)); err != nil {
		log.Warn("stream deck brightness", "err", err)
	}
	log.Info("stream deck attached", "model", dev.Model().Name, "serial", dev.SerialNumber())

	keys := make(chan streamdeck.KeyEvent, 16)
	go func() {
		if err := dev.ReadKeys(keys); err != nil && ctx.Err() == nil {
			log.Warn("stream deck read failed", "err", err)
		}
	}()

	deck := surface.NewDeck(eng, dev, dev.Model(), log)
	g.Go(func() error {
		defer dev.Close()
		defer dev.ClearAllKeys()
		return deck.Run(ctx, keys)
	})
}
