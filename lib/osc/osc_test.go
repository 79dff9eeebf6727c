package osc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBuildParse(t *testing.T) {
	args := []any{int32(-7), float32(0.5), "hello", []byte{1, 2, 3}, int64(1 << 40), 2.25, true, false, nil}
	msg, err := Build("/qlux/test", args...)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg)%4 != 0 {
		t.Errorf("message length %d not aligned", len(msg))
	}

	addr, got, err := Parse(msg)
	if err != nil {
		t.Fatal(err)
	}
	if addr != "/qlux/test" {
		t.Errorf("got %q, want %q", addr, "/qlux/test")
	}
	if !reflect.DeepEqual(got, args) {
		t.Errorf("got %#v, want %#v", got, args)
	}
}

func TestBuildRejectsInt(t *testing.T) {
	if _, err := Build("/x", 5); err == nil {
		t.Error("expected error for int argument")
	}
}

func TestParseErrors(t *testing.T) {
	msg, _ := Build("/a", int32(1))
	for _, bad := range [][]byte{
		{},
		[]byte("abcd"),
		msg[:len(msg)-2],
	} {
		if _, _, err := Parse(bad); err == nil {
			t.Errorf("no error for %v", bad)
		}
	}
}

func TestNumericArgs(t *testing.T) {
	args := []any{int32(3), float32(2.6), "x"}
	if v, err := Float(args, 0); err != nil || v != 3 {
		t.Errorf("Float: %v %v", v, err)
	}
	if v, err := Int(args, 1); err != nil || v != 3 {
		t.Errorf("Int: %v %v", v, err)
	}
	if _, err := Int(args, 2); err == nil {
		t.Error("string accepted as number")
	}
	if _, err := Float(args, 5); err == nil {
		t.Error("missing argument accepted")
	}
}

func TestSLIP(t *testing.T) {
	data := []byte{1, slipEnd, 2, slipEsc, 3}
	enc := slipEncode(data)
	if bytes.Count(enc, []byte{slipEnd}) != 2 {
		t.Fatalf("END bytes not escaped: %v", enc)
	}

	stream := append(append([]byte{}, enc...), slipEncode([]byte{9})...)
	frame, rest, ok := extractFrame(stream)
	if !ok || !bytes.Equal(frame, data) {
		t.Fatalf("first frame %v ok=%v", frame, ok)
	}
	frame, rest, ok = extractFrame(rest)
	if !ok || !bytes.Equal(frame, []byte{9}) {
		t.Fatalf("second frame %v ok=%v", frame, ok)
	}
	if _, _, ok := extractFrame(rest); ok {
		t.Error("frame from empty rest")
	}
}

func TestRouterLookup(t *testing.T) {
	r := NewRouter()
	hit := ""
	mk := func(name string) Handler {
		return func(string, []any) (any, error) { hit = name; return nil, nil }
	}
	r.Handle("/qlux/play", mk("play"))
	r.Handle("/qlux/*", mk("any"))
	r.Handle("/qlux/channel/*", mk("channel"))

	tests := []struct{ addr, want string }{
		{"/qlux/play", "play"},
		{"/qlux/channel/12", "channel"},
		{"/qlux/other", "any"},
	}
	for _, tt := range tests {
		hit = ""
		h := r.lookup(tt.addr)
		if h == nil {
			t.Fatalf("%s: no handler", tt.addr)
		}
		h(tt.addr, nil)
		if hit != tt.want {
			t.Errorf("%s: got %q, want %q", tt.addr, hit, tt.want)
		}
	}
	if r.lookup("/other") != nil {
		t.Error("unexpected handler for /other")
	}
}

func setupTest(t *testing.T, router *Router) (*Server, *Client) {
	t.Helper()
	return setupTestTimeout(t, router, defaultWriteTimeout)
}

func setupTestTimeout(t *testing.T, router *Router, writeTimeout time.Duration) (*Server, *Client) {
	t.Helper()
	srv, err := Listen("127.0.0.1:0", router, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	srv.writeTimeout = writeTimeout
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(cancel)

	client, err := Dial("127.0.0.1", srv.Port())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestRequestReply(t *testing.T) {
	router := NewRouter()
	router.Handle("/qlux/speed", func(addr string, args []any) (any, error) {
		v, err := Float(args, 0)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, errors.New("speed must be positive")
		}
		return map[string]float64{"speed": v}, nil
	})
	_, client := setupTest(t, router)

	reply, err := client.Request("/qlux/speed", float32(2))
	if err != nil {
		t.Fatal(err)
	}
	var data map[string]float64
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["speed"] != 2 {
		t.Errorf("got %v, want 2", data["speed"])
	}

	_, err = client.Request("/qlux/speed", float32(-1))
	if err == nil || !strings.Contains(err.Error(), "positive") {
		t.Errorf("got %v, want handler error", err)
	}
}

func TestUnknownAddressIgnored(t *testing.T) {
	router := NewRouter()
	router.Handle("/qlux/ping", func(string, []any) (any, error) { return "pong", nil })
	_, client := setupTest(t, router)
	client.timeout = 100 * time.Millisecond

	if _, err := client.Request("/qlux/nothing"); err == nil {
		t.Error("expected timeout for unrouted address")
	}
	// The connection survives.
	if _, err := client.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
}

func TestBroadcast(t *testing.T) {
	router := NewRouter()
	router.Handle("/qlux/ping", func(string, []any) (any, error) { return nil, nil })
	srv, client := setupTest(t, router)

	// A round trip guarantees the server registered the connection.
	if _, err := client.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
	srv.Broadcast("/qlux/update/state", "playing")

	select {
	case u := <-client.Updates():
		if u.Address != "/qlux/update/state" || len(u.Args) != 1 || u.Args[0] != "playing" {
			t.Errorf("got %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no update")
	}
}

func connCount(srv *Server) int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.conns)
}

// dialIdle connects a client that never reads and waits for the server to
// register it.
func dialIdle(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	before := connCount(srv)
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for connCount(srv) <= before {
		if time.Now().After(deadline) {
			t.Fatal("idle client not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func floodBroadcast(t *testing.T, srv *Server) {
	t.Helper()
	payload := strings.Repeat("x", 1<<16)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			srv.Broadcast("/qlux/update/flood", payload)
		}
	}()
	t.Cleanup(func() {
		close(stop)
		srv.Close()
		wg.Wait()
	})
}

func TestRepliesDuringStalledBroadcast(t *testing.T) {
	router := NewRouter()
	router.Handle("/qlux/ping", func(string, []any) (any, error) { return "pong", nil })
	srv, client := setupTestTimeout(t, router, time.Minute)
	client.timeout = time.Second

	if _, err := client.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
	dialIdle(t, srv)
	floodBroadcast(t, srv)

	// Give the broadcaster time to fill the idle client's socket buffers
	// and block on it.
	time.Sleep(300 * time.Millisecond)
	for range 5 {
		if _, err := client.Request("/qlux/ping"); err != nil {
			t.Fatal(err)
		}
	}

	late, err := Dial("127.0.0.1", srv.Port())
	if err != nil {
		t.Fatal(err)
	}
	defer late.Close()
	late.timeout = time.Second
	if _, err := late.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
}

func TestStalledClientDropped(t *testing.T) {
	router := NewRouter()
	router.Handle("/qlux/ping", func(string, []any) (any, error) { return nil, nil })
	srv, client := setupTestTimeout(t, router, 100*time.Millisecond)

	if _, err := client.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
	dialIdle(t, srv)
	if n := connCount(srv); n != 2 {
		t.Fatalf("got %d connections, want 2", n)
	}
	floodBroadcast(t, srv)

	deadline := time.Now().Add(5 * time.Second)
	for connCount(srv) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("got %d connections, want 1", connCount(srv))
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := client.Request("/qlux/ping"); err != nil {
		t.Fatal(err)
	}
}
