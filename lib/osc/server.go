package osc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net"
	"sort"
	"strings"
	"sync"
	"time"
)

const DefaultPort = 53100

// A client that cannot take a message within this long is disconnected.
const defaultWriteTimeout = 2 * time.Second

// Reply answers a request. It travels as a JSON string argument on
// "/reply" + the request address.
type Reply struct {
	Address string          `json:"address"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Handler serves one message. The returned value, if not nil, is sent back
// JSON encoded in the reply.
type Handler func(addr string, args []any) (any, error)

// Router dispatches messages by address. A pattern ending in "/*" matches
// any address below it; the longest matching pattern wins.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Handler
}

func NewRouter() *Router {
	return &Router{routes: map[string]Handler{}}
}

func (r *Router) Handle(pattern string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[pattern] = h
}

func (r *Router) lookup(addr string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.routes[addr]; ok {
		return h
	}

	var prefixes []string
	for p := range r.routes {
		if strings.HasSuffix(p, "/*") && strings.HasPrefix(addr, p[:len(p)-1]) {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return nil
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return r.routes[prefixes[0]]
}

type Server struct {
	listener net.Listener
	router   *Router
	log      *slog.Logger

	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[net.Conn]*sync.Mutex
}

func Listen(addr string, router *Router, log *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		listener: ln,
		router:   router,
		log:      log,
		conns:    map[net.Conn]*sync.Mutex{},

		writeTimeout: defaultWriteTimeout,
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = &sync.Mutex{}
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}

// Broadcast sends a message to every connected client. Writes happen outside
// s.mu; a slow client delays only the broadcast.
func (s *Server) Broadcast(addr string, args ...any) {
	s.mu.Lock()
	conns := maps.Clone(s.conns)
	s.mu.Unlock()

	for conn, wmu := range conns {
		if err := s.send(conn, wmu, addr, args...); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("osc broadcast failed", "remote", conn.RemoteAddr().String(), "err", err)
		}
	}
}

// send writes one message under the connection's write lock. A failed write
// may leave a partial frame on the stream, so the connection is closed.
func (s *Server) send(conn net.Conn, wmu *sync.Mutex, addr string, args ...any) error {
	wmu.Lock()
	defer wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	err := writeMessage(conn, addr, args...)
	if err != nil {
		conn.Close()
	}
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	s.log.Debug("osc client connected", "remote", conn.RemoteAddr().String())
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	readFrames(conn, func(frame []byte) {
		addr, args, err := Parse(frame)
		if err != nil {
			s.log.Debug("bad osc message", "err", err)
			return
		}
		s.dispatch(conn, addr, args)
	})
}

func (s *Server) dispatch(conn net.Conn, addr string, args []any) {
	h := s.router.lookup(addr)
	if h == nil {
		s.log.Debug("unhandled osc address", "addr", addr)
		return
	}

	reply := Reply{Address: addr, Status: "ok"}
	data, err := h(addr, args)
	if err != nil {
		s.log.Warn("osc handler failed", "addr", addr, "err", err)
		reply.Status = err.Error()
	} else if data != nil {
		if reply.Data, err = json.Marshal(data); err != nil {
			reply.Status = err.Error()
		}
	}

	body, _ := json.Marshal(reply)
	s.mu.Lock()
	wmu := s.conns[conn]
	s.mu.Unlock()
	if wmu == nil {
		return
	}
	if err := s.send(conn, wmu, "/reply"+addr, string(body)); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Debug("osc reply failed", "addr", addr, "err", err)
	}
}
