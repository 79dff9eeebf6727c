package osc

import (
	"io"
)

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

func slipEncode(data []byte) []byte {
	out := []byte{slipEnd}
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	return out
}

func slipDecode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == slipEsc && i+1 < len(data) {
			switch data[i+1] {
			case slipEscEnd:
				out = append(out, slipEnd)
			case slipEscEsc:
				out = append(out, slipEsc)
			}
			i++
		} else {
			out = append(out, data[i])
		}
	}
	return out
}

// extractFrame returns the first complete frame in data. Empty frames
// (back to back END bytes) are skipped.
func extractFrame(data []byte) (frame []byte, rest []byte, ok bool) {
	start := -1
	for i, b := range data {
		if b != slipEnd {
			continue
		}
		if start == -1 || i == start+1 {
			start = i
			continue
		}
		return slipDecode(data[start+1 : i]), data[i+1:], true
	}
	return nil, data, false
}

// readFrames calls fn for every frame read from r until r fails.
func readFrames(r io.Reader, fn func(frame []byte)) error {
	buf := make([]byte, 0, 65536)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		if err != nil {
			return err
		}
		buf = append(buf, tmp[:n]...)
		for {
			frame, rest, ok := extractFrame(buf)
			if !ok {
				break
			}
			buf = rest
			fn(frame)
		}
	}
}

func writeMessage(w io.Writer, addr string, args ...any) error {
	msg, err := Build(addr, args...)
	if err != nil {
		return err
	}
	_, err = w.Write(slipEncode(msg))
	return err
}
