package osc

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

type Update struct {
	Address string
	Args    []any
}

type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	pending map[string]chan *Reply
	updates chan Update
	timeout time.Duration
}

func Dial(host string, port int) (*Client, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprint(port)), 5*time.Second)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan *Reply),
		updates: make(chan Update, 64),
		timeout: 5 * time.Second,
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Updates delivers unsolicited messages from the server. Messages are
// dropped when the channel is full.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

func (c *Client) readLoop() {
	readFrames(c.conn, c.handleFrame)
	close(c.updates)
}

func (c *Client) handleFrame(frame []byte) {
	addr, args, err := Parse(frame)
	if err != nil {
		return
	}

	replyAddr, isReply := strings.CutPrefix(addr, "/reply")
	if !isReply || len(args) == 0 {
		select {
		case c.updates <- Update{Address: addr, Args: args}:
		default:
		}
		return
	}

	body, ok := args[0].(string)
	if !ok {
		return
	}
	var reply Reply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return
	}
	c.mu.Lock()
	ch, exists := c.pending[replyAddr]
	if exists {
		delete(c.pending, replyAddr)
	}
	c.mu.Unlock()
	if exists {
		ch <- &reply
	}
}

// Send writes a message without waiting for the reply.
func (c *Client) Send(addr string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeMessage(c.conn, addr, args...)
}

// Request sends a message and waits for the server's reply.
func (c *Client) Request(addr string, args ...any) (*Reply, error) {
	ch := make(chan *Reply, 1)
	c.mu.Lock()
	c.pending[addr] = ch
	c.mu.Unlock()

	if err := c.Send(addr, args...); err != nil {
		c.mu.Lock()
		delete(c.pending, addr)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case reply := <-ch:
		if reply.Status != "ok" {
			return reply, fmt.Errorf("osc: %s: %s", addr, reply.Status)
		}
		return reply, nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, addr)
		c.mu.Unlock()
		return nil, fmt.Errorf("osc: %s: timeout", addr)
	}
}
