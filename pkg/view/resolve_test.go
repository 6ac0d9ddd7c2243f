package view

import (
	"math"
	"strings"
	"testing"

	"github.com/devicelab-dev/cyborg/pkg/core"
	"github.com/devicelab-dev/cyborg/pkg/view/viewtest"
)

func chain(offsets ...[2]int) viewtest.V {
	var v viewtest.V
	for i := len(offsets) - 1; i >= 0; i-- {
		n := viewtest.V{Props: map[string]any{
			"layout:left":   offsets[i][0],
			"layout:top":    offsets[i][1],
			"layout:width":  10,
			"layout:height": 20,
		}}
		if i < len(offsets)-1 {
			n.Children = []viewtest.V{v}
		}
		v = n
	}
	return v
}

func leaf(n *Node) *Node {
	for len(n.Children) > 0 {
		n = n.Children[0]
	}
	return n
}

func TestAbsoluteRectAdditive(t *testing.T) {
	root, err := Build(viewtest.Dump(chain([2]int{10, 10}, [2]int{5, 5}, [2]int{2, 2})), testWindow)
	if err != nil {
		t.Fatal(err)
	}
	got := AbsoluteRect(leaf(root))
	want := core.Rect{X: 17, Y: 17, W: 10, H: 20}
	if got != want {
		t.Errorf("AbsoluteRect() = %v, want %v", got, want)
	}
}

func TestAbsoluteRectWindowOffset(t *testing.T) {
	root, err := Build(viewtest.DumpAt(chain([2]int{10, 10}, [2]int{5, 5}), 100, 50), testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if got := AbsoluteRect(leaf(root)); got.X != 115 || got.Y != 65 {
		t.Errorf("AbsoluteRect() = %v, want origin (115, 65)", got)
	}
	if got := AbsoluteRect(root); got.X != 110 || got.Y != 60 {
		t.Errorf("AbsoluteRect(root) = %v, want origin (110, 60)", got)
	}
}

func TestAbsoluteRectTranslation(t *testing.T) {
	tree := viewtest.V{
		Props: map[string]any{"layout:left": 0, "layout:top": 0},
		Children: []viewtest.V{{
			Props: map[string]any{
				"layout:left":          10,
				"layout:top":           10,
				"drawing:translationX": float32(3.7),
				"drawing:translationY": float32(-2.5),
			},
			Children: []viewtest.V{{
				Props: map[string]any{
					"layout:left":          1,
					"layout:top":           1,
					"layout:width":         4,
					"layout:height":        4,
					"drawing:translationX": float32(100),
				},
			}},
		}},
	}
	root, err := Build(viewtest.Dump(tree), testWindow)
	if err != nil {
		t.Fatal(err)
	}
	// The node's own translation is not applied; the parent's is truncated.
	got := AbsoluteRect(leaf(root))
	want := core.Rect{X: 14, Y: 8, W: 4, H: 4}
	if got != want {
		t.Errorf("AbsoluteRect() = %v, want %v", got, want)
	}
}

func TestAddTruncated(t *testing.T) {
	tests := []struct {
		acc  int
		t    float32
		want int
	}{
		{10, 0.9, 10},
		{10, 1.5, 11},
		{10, -0.5, 9},
		{0, -0.5, 0},
		{5, float32(math.NaN()), 5},
		{5, float32(math.Inf(1)), 5},
	}
	for _, tt := range tests {
		if got := addTruncated(tt.acc, tt.t); got != tt.want {
			t.Errorf("addTruncated(%d, %v) = %d, want %d", tt.acc, tt.t, got, tt.want)
		}
	}
}

func TestIsVisibleOn(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]any
		want  bool
	}{
		{"visible on screen", map[string]any{"misc:visibility": 0, "layout:left": 10, "layout:width": 10, "layout:height": 10}, true},
		{"invisible", map[string]any{"misc:visibility": 4, "layout:width": 10, "layout:height": 10}, false},
		{"gone", map[string]any{"misc:visibility": 8}, false},
		{"no visibility", map[string]any{"layout:width": 10}, false},
		{"right of display", map[string]any{"misc:visibility": 0, "layout:left": 2000}, false},
		{"above display", map[string]any{"misc:visibility": 0, "layout:top": -500, "layout:height": 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Build(viewtest.Dump(viewtest.V{Props: tt.props}), testWindow)
			if err != nil {
				t.Fatal(err)
			}
			if got := IsVisibleOn(root, 1080, 1920); got != tt.want {
				t.Errorf("IsVisibleOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayoutInfo(t *testing.T) {
	root, err := Build(viewtest.Dump(viewtest.V{Props: map[string]any{
		"layout:left":   3,
		"layout:top":    4,
		"layout:bottom": 24,
	}}), testWindow)
	if err != nil {
		t.Fatal(err)
	}
	info := LayoutInfo(root)
	for _, want := range []string{"l=3", "t=4", "b=24", "r=-", "tX=0"} {
		if !strings.Contains(info, want) {
			t.Errorf("LayoutInfo() = %q, missing %q", info, want)
		}
	}
}
