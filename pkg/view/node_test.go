package view

import (
	"reflect"
	"testing"
)

func TestPropertyNames(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		shortName string
	}{
		{"layout:left", "layout", "left"},
		{"id", "", "id"},
		{"meta:__child__0", "meta", "__child__0"},
	}
	for _, tt := range tests {
		p := Property{Name: tt.name}
		if p.Category() != tt.category || p.ShortName() != tt.shortName {
			t.Errorf("Property(%q) = %q/%q, want %q/%q", tt.name, p.Category(), p.ShortName(), tt.category, tt.shortName)
		}
	}
}

func TestNodeDefaults(t *testing.T) {
	n := newNode(testWindow, nil, nil)
	if n.ID != UnknownID {
		t.Errorf("ID = %q, want %q", n.ID, UnknownID)
	}
	if n.HasMargins() {
		t.Error("HasMargins() should be false without margin properties")
	}
	if n.Visibility() != -1 {
		t.Errorf("Visibility() = %d, want -1", n.Visibility())
	}
	if n.Categories != nil {
		t.Errorf("Categories = %v, want none", n.Categories)
	}
	if n.ChildIndex() != -1 {
		t.Error("root ChildIndex() should be -1")
	}
}

func TestNodeAccessors(t *testing.T) {
	n := newNode(testWindow, nil, []Property{
		{"layout:width", "120"},
		{"drawing:alpha", "0.5"},
		{"focus:isFocused", "true"},
		{"layout:bad", "x"},
	})
	if n.Width != 120 {
		t.Errorf("Width = %d", n.Width)
	}
	if got := n.Int("layout:bad", 7); got != 7 {
		t.Errorf("Int(malformed) = %d, want default", got)
	}
	if got := n.Float("drawing:alpha", 1); got != 0.5 {
		t.Errorf("Float() = %v", got)
	}
	if !n.Bool("focus:isFocused", false) {
		t.Error("Bool() = false")
	}
	if _, ok := n.Value("missing"); ok {
		t.Error("Value(missing) reported present")
	}
	want := []string{"drawing", "focus", "layout", "miscellaneous"}
	if !reflect.DeepEqual(n.Categories, want) {
		t.Errorf("Categories = %v, want %v", n.Categories, want)
	}
}

func TestWalkStops(t *testing.T) {
	root := newNode(testWindow, nil, nil)
	a := newNode(testWindow, root, nil)
	newNode(testWindow, a, nil)
	newNode(testWindow, root, nil)

	var visited int
	completed := Walk(root, func(n *Node) bool {
		visited++
		return visited < 2
	})
	if completed || visited != 2 {
		t.Errorf("Walk visited %d, completed=%v", visited, completed)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		line    string
		want    Window
		wantErr bool
	}{
		{"41a8c2 com.example/.Main", Window{Title: "com.example/.Main", ID: 0x41a8c2}, false},
		{"ffffffff StatusBar", Window{Title: "StatusBar", ID: -1}, false},
		{"  1f  ", Window{ID: 0x1f}, false},
		{"zz Title", Window{}, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) error = %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestWindowIdentity(t *testing.T) {
	a := Window{Title: "one", ID: 0x2a}
	b := Window{Title: "renamed", ID: 0x2a}
	if !a.Equal(b) {
		t.Error("windows with the same id should be equal")
	}
	if a.Encode() != "2a" {
		t.Errorf("Encode() = %q", a.Encode())
	}
	if (Window{ID: -1}).Encode() != "ffffffff" {
		t.Error("negative ids encode as unsigned hex")
	}
}
