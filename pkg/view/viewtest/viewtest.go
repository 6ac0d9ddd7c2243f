// Package viewtest builds binary hierarchy dumps for tests.
package viewtest

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/devicelab-dev/cyborg/pkg/wire"
)

// V describes one view of a fixture tree. Props values may be bool, int,
// int32, int64, float32, float64 or string; int is written as an int.
type V struct {
	Name     string
	Hash     int32
	Props    map[string]any
	Children []V
}

// Dump encodes root the way the device does: the view map followed by the
// symbol table.
func Dump(root V) []byte {
	return encode(root, nil)
}

// DumpAt encodes root with the window-position prefix some devices send
// ahead of the first view.
func DumpAt(root V, left, top int32) []byte {
	return encode(root, []int32{left, top})
}

type symbols struct {
	ids   map[string]int16
	table wire.Map
}

func (s *symbols) id(name string) int16 {
	if k, ok := s.ids[name]; ok {
		return k
	}
	k := int16(len(s.ids) + 1)
	s.ids[name] = k
	s.table[k] = name
	return k
}

func encode(root V, pos []int32) []byte {
	s := &symbols{ids: map[string]int16{}, table: wire.Map{}}
	e := wire.NewEncoder()
	if pos != nil {
		e.Short(s.id("window:left"))
		e.Int(pos[0])
		e.Short(s.id("window:top"))
		e.Int(pos[1])
	}
	m := toMap(root, s)
	must(e.Map(m))
	must(e.Map(s.table))
	return e.Bytes()
}

func toMap(v V, s *symbols) wire.Map {
	m := wire.Map{}
	if v.Name != "" {
		m[s.id("meta:__name__")] = v.Name
	}
	if v.Hash != 0 {
		m[s.id("meta:__hash__")] = v.Hash
	}
	names := make([]string, 0, len(v.Props))
	for name := range v.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		val := v.Props[name]
		if i, ok := val.(int); ok {
			val = int32(i)
		}
		m[s.id(name)] = val
	}
	if len(v.Children) > 0 {
		m[s.id("meta:__childCount__")] = int32(len(v.Children))
		for i, c := range v.Children {
			m[s.id("meta:__child__"+strconv.Itoa(i))] = toMap(c, s)
		}
	}
	return m
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("viewtest: %v", err))
	}
}
