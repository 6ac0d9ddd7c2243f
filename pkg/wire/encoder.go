package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Encoder writes tagged values in the dump format. Map keys are written in
// ascending order so output is deterministic.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Bool(v bool) {
	e.buf.WriteByte(TagBoolean)
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *Encoder) Byte(v int8) {
	e.buf.WriteByte(TagByte)
	e.buf.WriteByte(byte(v))
}

func (e *Encoder) Short(v int16) {
	e.buf.WriteByte(TagShort)
	e.put(uint16(v))
}

func (e *Encoder) Int(v int32) {
	e.buf.WriteByte(TagInt)
	e.put(uint32(v))
}

func (e *Encoder) Long(v int64) {
	e.buf.WriteByte(TagLong)
	e.put(uint64(v))
}

func (e *Encoder) Float(v float32) {
	e.buf.WriteByte(TagFloat)
	e.put(math.Float32bits(v))
}

func (e *Encoder) Double(v float64) {
	e.buf.WriteByte(TagDouble)
	e.put(math.Float64bits(v))
}

// String writes a length-prefixed UTF-8 string. Strings longer than 65535
// bytes cannot be represented.
func (e *Encoder) String(v string) error {
	if len(v) > math.MaxUint16 {
		return fmt.Errorf("string of %d bytes exceeds wire limit", len(v))
	}
	e.buf.WriteByte(TagString)
	e.put(uint16(len(v)))
	e.buf.WriteString(v)
	return nil
}

// Map writes m followed by the end-of-map key. Key 0 is reserved.
func (e *Encoder) Map(m Map) error {
	keys := make([]int16, 0, len(m))
	for k := range m {
		if k == EndMap {
			return fmt.Errorf("map key %d is reserved", EndMap)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	e.buf.WriteByte(TagMap)
	for _, k := range keys {
		e.Short(k)
		if err := e.Value(m[k]); err != nil {
			return fmt.Errorf("key %d: %w", k, err)
		}
	}
	e.Short(EndMap)
	return nil
}

// Value writes any value ReadObject can return.
func (e *Encoder) Value(v any) error {
	switch x := v.(type) {
	case bool:
		e.Bool(x)
	case int8:
		e.Byte(x)
	case int16:
		e.Short(x)
	case int32:
		e.Int(x)
	case int64:
		e.Long(x)
	case float32:
		e.Float(x)
	case float64:
		e.Double(x)
	case string:
		return e.String(x)
	case Map:
		return e.Map(x)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return nil
}

func (e *Encoder) put(v any) {
	// bytes.Buffer writes never fail
	_ = binary.Write(&e.buf, binary.BigEndian, v)
}
