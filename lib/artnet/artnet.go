// Package artnet forwards universe frames as Art-Net ArtDMX packets.
package artnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"qlux/lib/dmx"
)

const (
	Port = 6454

	opDMX      = 0x5000
	protocol   = 14
	headerSize = 18

	// Nodes drop a universe that goes quiet, so unchanged frames are
	// resent at this interval.
	DefaultRefresh = time.Second
)

var packetID = []byte("Art-Net\x00")

// Universe is a 15-bit Art-Net port address: net (7 bits), sub-net and
// universe (4 bits each).
type Universe uint16

func NewUniverse(net, subnet, universe int) Universe {
	return Universe((net&0x7F)<<8 | (subnet&0x0F)<<4 | universe&0x0F)
}

// BuildDMX encodes an ArtDMX packet.
func BuildDMX(seq uint8, universe Universe, data []byte) []byte {
	n := len(data)
	if n%2 == 1 {
		n++
	}
	packet := make([]byte, headerSize+n)
	copy(packet, packetID)
	packet[8], packet[9] = byte(opDMX&0xFF), byte(opDMX>>8)
	packet[10], packet[11] = 0x00, protocol
	packet[12], packet[13] = seq, 0x00
	packet[14], packet[15] = byte(universe&0xFF), byte(universe>>8&0x7F)
	packet[16], packet[17] = byte(n>>8), byte(n)
	copy(packet[headerSize:], data)
	return packet
}

// ParseDMX decodes an ArtDMX packet.
func ParseDMX(packet []byte) (seq uint8, universe Universe, data []byte, err error) {
	if len(packet) < headerSize || string(packet[:8]) != string(packetID) {
		return 0, 0, nil, fmt.Errorf("artnet: not an Art-Net packet")
	}
	if op := int(packet[8]) | int(packet[9])<<8; op != opDMX {
		return 0, 0, nil, fmt.Errorf("artnet: opcode %#04x is not ArtDMX", op)
	}
	n := int(packet[16])<<8 | int(packet[17])
	if headerSize+n > len(packet) || n > dmx.Channels {
		return 0, 0, nil, fmt.Errorf("artnet: bad length %d", n)
	}
	universe = Universe(packet[14]) | Universe(packet[15]&0x7F)<<8
	return packet[12], universe, packet[headerSize : headerSize+n], nil
}

type Options struct {
	Target   string // host or host:port, broadcast allowed
	Universe Universe
	Refresh  time.Duration
	Log      *slog.Logger
}

type Sender struct {
	conn     *net.UDPConn
	target   *net.UDPAddr
	universe Universe
	refresh  time.Duration
	seq      uint8
	log      *slog.Logger
}

func NewSender(opts Options) (*Sender, error) {
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	target := opts.Target
	if target == "" {
		target = net.IPv4bcast.String()
	}
	if _, _, err := net.SplitHostPort(target); err != nil {
		target = net.JoinHostPort(target, fmt.Sprint(Port))
	}
	addr, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("artnet: resolve %s: %w", target, err)
	}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("artnet: listen: %w", err)
	}
	if raw, err := conn.SyscallConn(); err == nil {
		raw.Control(func(fd uintptr) {
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
		})
	} else {
		opts.Log.Warn("unable to enable broadcast", "err", err)
	}

	return &Sender{
		conn:     conn,
		target:   addr,
		universe: opts.Universe,
		refresh:  opts.Refresh,
		seq:      1,
		log:      opts.Log,
	}, nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// Send transmits one frame. The sequence runs 1..255; 0 means "unsequenced"
// to receivers and is skipped.
func (s *Sender) Send(f *dmx.Frame) error {
	packet := BuildDMX(s.seq, s.universe, f[:])
	s.seq++
	if s.seq == 0 {
		s.seq = 1
	}
	if _, err := s.conn.WriteToUDP(packet, s.target); err != nil {
		return fmt.Errorf("artnet: send to %s: %w", s.target, err)
	}
	return nil
}

// Run sends every frame received on frames, and repeats the last one when
// nothing new arrives within the refresh interval.
func (s *Sender) Run(ctx context.Context, frames <-chan *dmx.Frame) error {
	s.log.Info("sending Art-Net", "target", s.target.String(), "universe", uint16(s.universe))
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	var last *dmx.Frame
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-frames:
			last = f
			ticker.Reset(s.refresh)
		case <-ticker.C:
			if last == nil {
				continue
			}
		}
		if err := s.Send(last); err != nil {
			s.log.Debug("art-net frame dropped", "err", err)
		}
	}
}
