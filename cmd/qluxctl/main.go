package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"qlux/lib/dmx"
	"qlux/lib/monitor"
	"qlux/lib/osc"
	"qlux/lib/timeline"
)

const usage = `usage: qluxctl [--host=H] [--port=N] [--http=URL] command [args]

commands:
  play | pause | resume | stop | loop | blackout | state
  seek SECONDS
  speed FACTOR
  channel N [VALUE]
  mute TRACK
  tracking on|off
  watch [FROM-TO]`

func main() {
	host := "127.0.0.1"
	port := osc.DefaultPort
	httpURL := "http://127.0.0.1:8080"
	var rest []string

	for i, arg := range os.Args[1:] {
		if v, ok := strings.CutPrefix(arg, "--host="); ok {
			host = v
		} else if v, ok := strings.CutPrefix(arg, "--port="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: bad port %q\n", v)
				os.Exit(1)
			}
			port = n
		} else if v, ok := strings.CutPrefix(arg, "--http="); ok {
			httpURL = strings.TrimSuffix(v, "/")
		} else {
			rest = os.Args[1+i:]
			break
		}
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if rest[0] == "watch" {
		opts, err := watchOptions(rest[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watch(ctx, httpURL, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	addr, args, err := command(rest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n%s\n", err, usage)
		os.Exit(2)
	}

	client, err := osc.Dial(host, port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	reply, err := client.Request(addr, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(reply.Data) > 0 {
		fmt.Println(string(reply.Data))
	}
}

// command maps command line words onto an OSC address and arguments.
func command(words []string) (string, []any, error) {
	name, args := words[0], words[1:]
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s takes %d argument(s)", name, n)
		}
		return nil
	}

	switch name {
	case "play", "pause", "resume", "stop", "loop", "blackout", "state":
		if err := need(0); err != nil {
			return "", nil, err
		}
		return "/qlux/" + name, nil, nil

	case "seek", "speed":
		if err := need(1); err != nil {
			return "", nil, err
		}
		f, err := strconv.ParseFloat(args[0], 32)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", name, err)
		}
		return "/qlux/" + name, []any{float32(f)}, nil

	case "channel":
		if len(args) < 1 || len(args) > 2 {
			return "", nil, fmt.Errorf("channel takes 1 or 2 arguments")
		}
		if _, err := strconv.Atoi(args[0]); err != nil {
			return "", nil, fmt.Errorf("channel: %w", err)
		}
		addr := "/qlux/channel/" + args[0]
		if len(args) == 1 {
			return addr, nil, nil
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return "", nil, fmt.Errorf("channel value: %w", err)
		}
		return addr, []any{int32(v)}, nil

	case "mute":
		if err := need(1); err != nil {
			return "", nil, err
		}
		return "/qlux/mute/" + args[0], nil, nil

	case "tracking":
		if err := need(1); err != nil {
			return "", nil, err
		}
		switch args[0] {
		case "on":
			return "/qlux/tracking", []any{int32(1)}, nil
		case "off":
			return "/qlux/tracking", []any{int32(0)}, nil
		}
		return "", nil, fmt.Errorf("tracking takes on or off")
	}
	return "", nil, fmt.Errorf("unknown command %q", name)
}

func watchOptions(args []string) (monitor.Options, error) {
	opts := monitor.Options{}
	if len(args) == 0 {
		return opts, nil
	}
	from, to, ok := strings.Cut(args[0], "-")
	if !ok {
		return opts, fmt.Errorf("watch range %q is not FROM-TO", args[0])
	}
	var err error
	if opts.From, err = strconv.Atoi(from); err != nil {
		return opts, fmt.Errorf("watch range: %w", err)
	}
	if opts.To, err = strconv.Atoi(to); err != nil {
		return opts, fmt.Errorf("watch range: %w", err)
	}
	if dmx.CheckChannel(opts.From) != nil || dmx.CheckChannel(opts.To) != nil || opts.To < opts.From {
		return opts, fmt.Errorf("watch range %q: %w", args[0], dmx.ErrValidation)
	}
	return opts, nil
}

type state struct {
	Transport timeline.Status `json:"transport"`
	Tracking  bool            `json:"tracking"`
	Simulated bool            `json:"simulated"`
}

func watch(ctx context.Context, base string, opts monitor.Options) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		var f dmx.Frame
		if err := getJSON(ctx, client, base+"/api/universe", &f); err != nil {
			return err
		}
		var st state
		if err := getJSON(ctx, client, base+"/api/state", &st); err != nil {
			return err
		}

		mode := "tracking"
		if !st.Tracking {
			mode = "release"
		}
		fmt.Print("\033[H\033[2J")
		fmt.Printf("%s  %s  %d active\n\n", monitor.Header(st.Transport), mode, monitor.Active(&f))
		fmt.Println(monitor.Render(&f, opts))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
