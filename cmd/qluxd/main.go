package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"qlux/lib/artnet"
	"qlux/lib/config"
	"qlux/lib/engine"
	"qlux/lib/osc"
	"qlux/lib/serialdmx"
	"qlux/lib/show"
)

func main() {
	configPath := "qlux.yaml"
	var showPath string
	simulate := false

	for _, arg := range os.Args[1:] {
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			configPath = v
		} else if v, ok := strings.CutPrefix(arg, "--show="); ok {
			showPath = v
		} else if arg == "--simulate" {
			simulate = true
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown argument %q\n", arg)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if showPath != "" {
		cfg.Show = showPath
	}
	if simulate {
		cfg.Serial.Port = ""
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))

	eng := engine.New(engine.Options{Tracking: cfg.Tracking, Tick: cfg.Tick, Log: log})
	if cfg.Show != "" {
		doc, err := show.Load(cfg.Show)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading show: %v\n", err)
			os.Exit(1)
		}
		if err := eng.LoadDocument(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading show: %v\n", err)
			os.Exit(1)
		}
		log.Info("show loaded", "path", cfg.Show, "name", doc.Name, "cues", len(doc.Timeline.Cues))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, eng, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *slog.Logger) error {
	tx := serialdmx.New(eng.Universe(), serialdmx.Options{
		Port:      cfg.Serial.Port,
		Interval:  cfg.Serial.Interval,
		BreakBaud: cfg.Serial.BreakBaud,
		MAB:       cfg.Serial.MAB,
		Log:       log.With("component", "serial"),
	})

	oscSrv, err := osc.Listen(cfg.OSC.Listen, newRouter(eng, tx, log), log.With("component", "osc"))
	if err != nil {
		return fmt.Errorf("osc: %w", err)
	}
	log.Info("osc listening", "addr", oscSrv.Addr().String())

	httpSrv := &http.Server{Addr: cfg.HTTP.Listen, Handler: newMux(eng, tx)}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return tx.Run(ctx) })
	g.Go(func() error { return oscSrv.Serve(ctx) })
	g.Go(func() error {
		broadcastState(ctx, eng, tx, oscSrv)
		return nil
	})

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTP.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpSrv.Shutdown(context.Background())
	})

	if cfg.ArtNet.Enabled {
		sender, err := artnet.NewSender(artnet.Options{
			Target:   cfg.ArtNet.Target,
			Universe: artnet.NewUniverse(cfg.ArtNet.Net, cfg.ArtNet.Subnet, cfg.ArtNet.Universe),
			Refresh:  cfg.ArtNet.Refresh,
			Log:      log.With("component", "artnet"),
		})
		if err != nil {
			return err
		}
		defer sender.Close()
		g.Go(func() error { return sender.Run(ctx, eng.Watch(ctx)) })
	}

	startSurfaces(ctx, g, cfg.Surfaces, eng, log.With("component", "surface"))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
