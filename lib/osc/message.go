// Package osc implements OSC 1.0 messages carried over SLIP-framed TCP.
package osc

import (
	"encoding/binary"
	"fmt"
	"math"
)

func pad(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for range pad(len(s) + 1) {
		buf = append(buf, 0)
	}
	return buf
}

// Build encodes a message. Supported argument types are int32, float32,
// string, []byte, int64, float64, bool and nil; int and other types are
// rejected.
func Build(addr string, args ...any) ([]byte, error) {
	typetag := ","
	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			typetag += "i"
		case float32:
			typetag += "f"
		case string:
			typetag += "s"
		case []byte:
			typetag += "b"
		case int64:
			typetag += "h"
		case float64:
			typetag += "d"
		case bool:
			if v {
				typetag += "T"
			} else {
				typetag += "F"
			}
		case nil:
			typetag += "N"
		default:
			return nil, fmt.Errorf("osc: unsupported argument type %T", arg)
		}
	}

	buf := appendString(nil, addr)
	buf = appendString(buf, typetag)

	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			for range pad(len(v)) {
				buf = append(buf, 0)
			}
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case float64:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return buf, nil
}

func Parse(data []byte) (addr string, args []any, err error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("osc: message too short")
	}
	if data[0] != '/' {
		return "", nil, fmt.Errorf("osc: address must start with /")
	}

	end := 0
	for end < len(data) && data[end] != 0 {
		end++
	}
	addr = string(data[:end])
	pos := end + 1 + pad(end+1)

	if pos >= len(data) || data[pos] != ',' {
		return addr, nil, nil
	}

	ttEnd := pos
	for ttEnd < len(data) && data[ttEnd] != 0 {
		ttEnd++
	}
	typetag := string(data[pos+1 : ttEnd])
	pos = ttEnd + 1 + pad(ttEnd-pos+1)

	for _, t := range typetag {
		switch t {
		case 'i', 'f':
			if pos+4 > len(data) {
				return addr, args, fmt.Errorf("osc: truncated %c argument", t)
			}
			v := binary.BigEndian.Uint32(data[pos:])
			if t == 'i' {
				args = append(args, int32(v))
			} else {
				args = append(args, math.Float32frombits(v))
			}
			pos += 4
		case 'h', 'd':
			if pos+8 > len(data) {
				return addr, args, fmt.Errorf("osc: truncated %c argument", t)
			}
			v := binary.BigEndian.Uint64(data[pos:])
			if t == 'h' {
				args = append(args, int64(v))
			} else {
				args = append(args, math.Float64frombits(v))
			}
			pos += 8
		case 's':
			end := pos
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return addr, args, fmt.Errorf("osc: unterminated string")
			}
			args = append(args, string(data[pos:end]))
			pos = end + 1 + pad(end-pos+1)
		case 'b':
			if pos+4 > len(data) {
				return addr, args, fmt.Errorf("osc: truncated blob size")
			}
			size := int(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
			if size < 0 || pos+size > len(data) {
				return addr, args, fmt.Errorf("osc: truncated blob")
			}
			b := make([]byte, size)
			copy(b, data[pos:pos+size])
			args = append(args, b)
			pos += size + pad(size)
		case 'T':
			args = append(args, true)
		case 'F':
			args = append(args, false)
		case 'N':
			args = append(args, nil)
		default:
			return addr, args, fmt.Errorf("osc: unsupported type tag %q", t)
		}
	}
	return addr, args, nil
}

// Float returns a numeric argument as float64.
func Float(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("osc: missing argument %d", i)
	}
	switch v := args[i].(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("osc: argument %d is %T, not a number", i, args[i])
}

// Int returns a numeric argument as int, rounding floats.
func Int(args []any, i int) (int, error) {
	f, err := Float(args, i)
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}
