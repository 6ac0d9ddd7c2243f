package wire

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestRoundTripPrimitives(t *testing.T) {
	values := []any{
		true,
		false,
		int8(-7),
		int16(math.MinInt16),
		int16(1234),
		int32(-1),
		int32(math.MaxInt32),
		int64(math.MinInt64),
		float32(1.5),
		float32(-0.25),
		float64(math.Pi),
		"",
		"héllo wörld",
	}

	enc := NewEncoder()
	for _, v := range values {
		if err := enc.Value(v); err != nil {
			t.Fatalf("Value(%v) failed: %v", v, err)
		}
	}
	data := enc.Bytes()

	dec := NewDecoder(data)
	for i, want := range values {
		got, err := dec.ReadObject()
		if err != nil {
			t.Fatalf("value %d: ReadObject failed: %v", i, err)
		}
		if reflect.TypeOf(got) != reflect.TypeOf(want) {
			t.Errorf("value %d: type = %T, want %T", i, got, want)
		}
		if got != want {
			t.Errorf("value %d: got %v, want %v", i, got, want)
		}
	}
	if dec.HasRemaining() {
		t.Errorf("decoder has %d unread bytes", len(data)-dec.Offset())
	}
	if dec.Offset() != len(data) {
		t.Errorf("Offset() = %d, want %d", dec.Offset(), len(data))
	}
}

func TestEncodingLayout(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []byte
	}{
		{"bool", true, []byte{'Z', 1}},
		{"byte", int8(-1), []byte{'B', 0xff}},
		{"short", int16(0x0102), []byte{'S', 0x01, 0x02}},
		{"int", int32(0x01020304), []byte{'I', 1, 2, 3, 4}},
		{"long", int64(1), []byte{'J', 0, 0, 0, 0, 0, 0, 0, 1}},
		{"float", float32(1), []byte{'F', 0x3f, 0x80, 0, 0}},
		{"string", "ab", []byte{'R', 0, 2, 'a', 'b'}},
		{"map", Map{3: int16(7)}, []byte{'M', 'S', 0, 3, 'S', 0, 7, 'S', 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewEncoder()
			if err := enc.Value(tt.value); err != nil {
				t.Fatalf("Value failed: %v", err)
			}
			if got := enc.Bytes(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("bytes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNestedMap(t *testing.T) {
	in := Map{
		1: "FrameLayout",
		2: int32(3),
		5: Map{1: "TextView", 9: true},
	}

	enc := NewEncoder()
	if err := enc.Map(in); err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	got, err := NewDecoder(enc.Bytes()).ReadObject()
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("decoded %#v, want %#v", got, in)
	}
}

func TestUnknownTag(t *testing.T) {
	dec := NewDecoder([]byte{'S', 0, 1, 'X', 0})
	if _, err := dec.ReadObject(); err != nil {
		t.Fatalf("first value: %v", err)
	}

	_, err := dec.ReadObject()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Byte != 'X' {
		t.Errorf("Byte = %q, want 'X'", de.Byte)
	}
	if de.Offset != 3 {
		t.Errorf("Offset = %d, want 3", de.Offset)
	}
}

func TestNestingLimit(t *testing.T) {
	nested := func(depth int) []byte {
		var buf []byte
		for i := 0; i < depth; i++ {
			buf = append(buf, TagMap, TagShort, 0, 1)
		}
		buf = append(buf, TagInt, 0, 0, 0, 7)
		for i := 0; i < depth; i++ {
			buf = append(buf, TagShort, 0, 0)
		}
		return buf
	}

	if _, err := NewDecoder(nested(MaxDepth)).ReadObject(); err != nil {
		t.Fatalf("depth %d: %v", MaxDepth, err)
	}

	dec := NewDecoder(nested(MaxDepth + 1))
	_, err := dec.ReadObject()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Byte != TagMap || de.Offset != MaxDepth*4 {
		t.Errorf("error at %q/%d, want 'M'/%d", de.Byte, de.Offset, MaxDepth*4)
	}

	// Unterminated input far past the limit fails the same way.
	deep := make([]byte, 0, 4*5_000_000)
	for i := 0; i < 5_000_000; i++ {
		deep = append(deep, TagMap, TagShort, 0, 1)
	}
	if _, err := NewDecoder(deep).ReadObject(); !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestMapWithNonShortKey(t *testing.T) {
	// M, then an int key instead of a short
	data := []byte{'M', 'I', 0, 0, 0, 1, 'Z', 1, 'S', 0, 0}

	_, err := NewDecoder(data).ReadObject()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Offset != 1 || de.Byte != 'I' {
		t.Errorf("DecodeError = %+v, want offset 1 byte 'I'", de)
	}
}

func TestTruncatedInput(t *testing.T) {
	inputs := map[string][]byte{
		"empty":          {},
		"short payload":  {'S', 0},
		"int payload":    {'I', 0, 0},
		"string length":  {'R', 0},
		"string body":    {'R', 0, 5, 'a'},
		"unterminated":   {'M', 'S', 0, 1, 'Z', 1},
		"missing value":  {'M', 'S', 0, 1},
		"double payload": {'D', 1, 2, 3},
	}

	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := NewDecoder(data).ReadObject()
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
		})
	}
}

func TestEncoderRejectsReservedKey(t *testing.T) {
	if err := NewEncoder().Map(Map{0: "x"}); err == nil {
		t.Error("expected error for reserved key 0")
	}
}

func TestEncoderRejectsUnsupportedType(t *testing.T) {
	if err := NewEncoder().Value(42); err == nil {
		t.Error("expected error for plain int")
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{Byte: 'Q', Offset: 12}
	if got := err.Error(); got != `unexpected byte 'Q' seen at position 12` {
		t.Errorf("Error() = %q", got)
	}
}
