// Package wire decodes and encodes the tagged binary format used by view
// hierarchy dumps.
//
// Every value is a one-byte ASCII tag followed by a big-endian payload. Maps
// are sequences of (short key, value) pairs closed by the short key 0.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value tags. These match the JNI type signatures used by the producer.
const (
	TagBoolean byte = 'Z'
	TagByte    byte = 'B'
	TagShort   byte = 'S'
	TagInt     byte = 'I'
	TagLong    byte = 'J'
	TagFloat   byte = 'F'
	TagDouble  byte = 'D'
	TagString  byte = 'R'
	TagMap     byte = 'M'
)

// EndMap is the short key that terminates a map.
const EndMap int16 = 0

// MaxDepth bounds map nesting. View trees are far shallower; deeper input is
// rejected instead of exhausting the stack.
const MaxDepth = 1024

// Map is a decoded container keyed by short property ids.
type Map map[int16]any

// DecodeError reports malformed input. It is fatal for the dump being decoded.
type DecodeError struct {
	Byte   byte // offending tag byte, 0 when not applicable
	Offset int  // position of the offending byte
	Msg    string
}

func (e *DecodeError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("unexpected byte %q seen at position %d", e.Byte, e.Offset)
}

// Decoder is a cursor over a dump buffer. It holds no view semantics.
type Decoder struct {
	buf   []byte
	pos   int
	depth int
}

// NewDecoder creates a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// HasRemaining reports whether unread bytes remain.
func (d *Decoder) HasRemaining() bool {
	return d.pos < len(d.buf)
}

// Offset returns the current cursor position.
func (d *Decoder) Offset() int {
	return d.pos
}

// ReadObject consumes one tagged value and returns it as bool, int8, int16,
// int32, int64, float32, float64, string or Map.
func (d *Decoder) ReadObject() (any, error) {
	start := d.pos
	if !d.HasRemaining() {
		return nil, &DecodeError{Offset: start, Msg: "unexpected end of buffer"}
	}
	tag := d.buf[d.pos]
	d.pos++

	switch tag {
	case TagBoolean:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case TagByte:
		b, err := d.take(1)
		if err != nil {
			return nil, err
		}
		return int8(b[0]), nil
	case TagShort:
		return d.readShort()
	case TagInt:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(b)), nil
	case TagLong:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case TagFloat:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
	case TagDouble:
		b, err := d.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case TagString:
		return d.readString()
	case TagMap:
		if d.depth >= MaxDepth {
			return nil, &DecodeError{
				Byte:   tag,
				Offset: start,
				Msg:    fmt.Sprintf("maps nested deeper than %d", MaxDepth),
			}
		}
		d.depth++
		m, err := d.readMap()
		d.depth--
		return m, err
	default:
		return nil, &DecodeError{Byte: tag, Offset: start}
	}
}

func (d *Decoder) readShort() (int16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (d *Decoder) readString() (string, error) {
	lb, err := d.take(2)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(lb))
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) readMap() (Map, error) {
	m := make(Map)
	for {
		keyPos := d.pos
		o, err := d.ReadObject()
		if err != nil {
			return nil, err
		}
		key, ok := o.(int16)
		if !ok {
			return nil, &DecodeError{
				Byte:   d.buf[keyPos],
				Offset: keyPos,
				Msg:    fmt.Sprintf("expected short map key, got %T", o),
			}
		}
		if key == EndMap {
			return m, nil
		}
		v, err := d.ReadObject()
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n > len(d.buf)-d.pos {
		return nil, &DecodeError{
			Offset: d.pos,
			Msg:    fmt.Sprintf("need %d bytes, %d remaining", n, len(d.buf)-d.pos),
		}
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}
