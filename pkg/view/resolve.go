package view

import (
	"fmt"
	"math"
	"strings"

	"github.com/devicelab-dev/cyborg/pkg/core"
)

// AbsoluteRect resolves the on-screen rectangle of n by accumulating the
// offsets and render translations of every ancestor, then the window
// placement carried by the root. Size is the node's own; transforms do not
// scale it.
func AbsoluteRect(n *Node) core.Rect {
	x, y := n.Left, n.Top
	root := n
	for p := n.Parent; p != nil; p = p.Parent {
		x += p.Left
		y += p.Top
		x = addTruncated(x, p.TranslationX)
		y = addTruncated(y, p.TranslationY)
		root = p
	}
	if root.Has("window:left") {
		x += root.Int("window:left", 0)
		y += root.Int("window:top", 0)
	}
	return core.Rect{X: x, Y: y, W: n.Width, H: n.Height}
}

// addTruncated adds a float translation to an integer coordinate in float32
// and truncates toward zero, matching how the device composes them.
func addTruncated(acc int, t float32) int {
	if t == 0 || math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
		return acc
	}
	return int(float32(acc) + t)
}

// IsVisibleOn reports whether n is marked visible and its absolute rect
// overlaps a display of the given size.
func IsVisibleOn(n *Node, width, height int) bool {
	if n.Visibility() != Visible {
		return false
	}
	return AbsoluteRect(n).OverlapsDisplay(width, height)
}

// LayoutInfo renders the layout-relevant properties of n for diagnostics.
// Missing values print as "-".
func LayoutInfo(n *Node) string {
	get := func(name string) string {
		if v, ok := n.Value(name); ok {
			return v
		}
		return "-"
	}
	fields := []string{
		fmt.Sprintf("l=%d", n.Left),
		fmt.Sprintf("t=%d", n.Top),
		"b=" + get("layout:bottom"),
		"r=" + get("layout:right"),
		fmt.Sprintf("w=%d", n.Width),
		fmt.Sprintf("h=%d", n.Height),
		fmt.Sprintf("tX=%g", n.TranslationX),
		fmt.Sprintf("tY=%g", n.TranslationY),
		"tZ=" + get("drawing:translationZ"),
		fmt.Sprintf("sX=%d", n.ScrollX),
		fmt.Sprintf("sY=%d", n.ScrollY),
		"rot=" + get("drawing:rotation"),
		"scX=" + get("drawing:scaleX"),
		"scY=" + get("drawing:scaleY"),
	}
	return "(" + strings.Join(fields, " ") + ")"
}
