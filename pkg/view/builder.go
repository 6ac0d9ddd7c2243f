package view

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/cyborg/pkg/wire"
)

// Well-known meta property names.
const (
	propName       = "meta:__name__"
	propHash       = "meta:__hash__"
	propChildCount = "meta:__childCount__"
	propChildPfx   = "meta:__child__"
)

// IsEncoded reports whether data is a binary dump. The first byte decides:
// binary dumps open with the window-position short or a view map. Text dumps
// open with a lower-case package name.
func IsEncoded(data []byte) bool {
	return len(data) > 0 && (data[0] == wire.TagShort || data[0] == wire.TagMap)
}

// Build reconstructs the view tree of one dump. Binary and legacy text dumps
// are both accepted. An empty dump yields a nil tree and no error.
func Build(data []byte, w Window) (*Node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !IsEncoded(data) {
		return BuildText(bytes.NewReader(data), w)
	}

	d, err := parseDump(data)
	if err != nil {
		return nil, err
	}
	if len(d.views) == 0 {
		return nil, nil
	}
	return d.expand(d.views[0], nil, w), nil
}

// dump is the flat form of a binary dump: view maps plus the symbol table.
type dump struct {
	views []wire.Map
	names map[int16]string
	ids   map[string]int16
}

func parseDump(data []byte) (*dump, error) {
	dec := wire.NewDecoder(data)

	// Legacy producers prefix the dump with window left/top pairs.
	var windowPos wire.Map
	if data[0] == wire.TagShort {
		windowPos = make(wire.Map, 2)
		for i := 0; i < 2; i++ {
			off := dec.Offset()
			k, err := dec.ReadObject()
			if err != nil {
				return nil, err
			}
			v, err := dec.ReadObject()
			if err != nil {
				return nil, err
			}
			key, ok := k.(int16)
			if !ok {
				return nil, &wire.DecodeError{Offset: off, Msg: fmt.Sprintf("window position key is %T", k)}
			}
			val, ok := v.(int32)
			if !ok {
				return nil, &wire.DecodeError{Offset: off, Msg: fmt.Sprintf("window position value is %T", v)}
			}
			windowPos[key] = val
		}
	}

	d := &dump{}
	for dec.HasRemaining() {
		o, err := dec.ReadObject()
		if err != nil {
			return nil, err
		}
		if m, ok := o.(wire.Map); ok {
			d.views = append(d.views, m)
		}
	}
	if len(d.views) == 0 {
		return d, nil
	}

	// The trailing map is the symbol table.
	table := d.views[len(d.views)-1]
	d.views = d.views[:len(d.views)-1]
	d.names = make(map[int16]string, len(table))
	d.ids = make(map[string]int16, len(table))
	for k, v := range table {
		if s, ok := v.(string); ok {
			d.names[k] = s
			d.ids[s] = k
		}
	}

	if len(d.views) > 0 {
		for k, v := range windowPos {
			d.views[0][k] = v
		}
	}
	return d, nil
}

func (d *dump) lookup(m wire.Map, name string) (any, bool) {
	k, ok := d.ids[name]
	if !ok {
		return nil, false
	}
	v, ok := m[k]
	return v, ok
}

func (d *dump) childCount(m wire.Map) int {
	v, _ := d.lookup(m, propChildCount)
	var n int
	switch c := v.(type) {
	case int32:
		n = int(c)
	case int16:
		n = int(c)
	}
	// Each child occupies its own key.
	return max(0, min(n, len(m)))
}

func (d *dump) expand(m wire.Map, parent *Node, w Window) *Node {
	count := d.childCount(m)
	childKeys := make(map[int16]bool, count)
	for i := 0; i < count; i++ {
		if k, ok := d.ids[propChildPfx+strconv.Itoa(i)]; ok {
			childKeys[k] = true
		}
	}

	keys := make([]int16, 0, len(m))
	for k := range m {
		if !childKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	props := make([]Property, 0, len(keys))
	for _, k := range keys {
		name, ok := d.names[k]
		if !ok {
			continue
		}
		props = append(props, Property{Name: name, Value: formatValue(m[k])})
	}

	n := newNode(w, parent, props)
	if v, ok := d.lookup(m, propName); ok {
		if s, ok := v.(string); ok {
			n.Name = s
		}
	}
	if v, ok := d.lookup(m, propHash); ok {
		if h, ok := v.(int32); ok {
			n.HashCode = strconv.FormatUint(uint64(uint32(h)), 16)
		}
	}

	for i := 0; i < count; i++ {
		v, ok := d.lookup(m, propChildPfx+strconv.Itoa(i))
		if !ok {
			continue
		}
		child, ok := v.(wire.Map)
		if !ok {
			continue
		}
		d.expand(child, n, w)
	}
	return n
}

// formatValue renders a decoded value the way the producer's own tooling
// prints it, so text comparisons behave the same on both ends.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int8:
		return strconv.Itoa(int(x))
	case int16:
		return strconv.Itoa(int(x))
	case int32:
		return strconv.Itoa(int(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if a := math.Abs(f); a == 0 || (a >= 1e-3 && a < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	// Outside [1e-3, 1e7) the format is d.dddE<exp>, as in 1.0E-4.
	s := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(e)
}
