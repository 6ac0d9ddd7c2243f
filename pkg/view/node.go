// Package view reconstructs view trees from hierarchy dumps and resolves
// their on-screen geometry.
package view

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// MarginUnset marks a margin that the dump did not report.
const MarginUnset = math.MinInt32

// UnknownID is the ID of a node whose dump carried no resource id.
const UnknownID = "unknown"

// Visibility codes reported by the device.
const (
	Visible   = 0
	Invisible = 4
	Gone      = 8
)

const miscellaneous = "miscellaneous"

// Property is one named attribute of a node. Values are kept as text and
// interpreted on demand.
type Property struct {
	Name  string
	Value string
}

// Category returns the prefix before the first ':' or "" when there is none.
func (p Property) Category() string {
	if i := strings.IndexByte(p.Name, ':'); i != -1 {
		return p.Name[:i]
	}
	return ""
}

// ShortName returns the name without its category prefix.
func (p Property) ShortName() string {
	if i := strings.IndexByte(p.Name, ':'); i != -1 {
		return p.Name[i+1:]
	}
	return p.Name
}

func (p Property) String() string {
	return p.Name + "=" + p.Value
}

// Node is one element of a reconstructed view tree. Nodes are built once by
// Build or BuildText and must not be modified afterwards.
type Node struct {
	Name     string // class name
	HashCode string // identity hash in hex, opaque
	ID       string // resource id such as "id/title", or UnknownID

	Left, Top, Width, Height int
	ScrollX, ScrollY         int

	PaddingLeft, PaddingRight, PaddingTop, PaddingBottom int
	MarginLeft, MarginRight, MarginTop, MarginBottom     int

	Baseline     int
	WillNotDraw  bool
	HasFocus     bool
	TranslationX float32
	TranslationY float32

	Properties []Property
	Categories []string

	Children []*Node
	Parent   *Node  // non-owning back reference; nil for the root
	Window   Window // window this node was dumped from

	named map[string]int
}

// newNode attaches a node to parent and loads its derived fields from props.
func newNode(w Window, parent *Node, props []Property) *Node {
	n := &Node{Window: w, Parent: parent}
	n.Properties = props
	n.named = make(map[string]int, len(props))
	for i, p := range props {
		n.named[p.Name] = i
	}
	n.load()
	if parent != nil {
		parent.Children = append(parent.Children, n)
	}
	return n
}

// load derives typed fields. Both binary and legacy text key spellings are
// accepted; the first present key wins.
func (n *Node) load() {
	n.ID = n.first(UnknownID, "id", "mID")
	n.Left = n.firstInt(0, "layout:left", "mLeft", "layout:mLeft")
	n.Top = n.firstInt(0, "layout:top", "mTop", "layout:mTop")
	n.Width = n.firstInt(0, "layout:width", "getWidth()", "layout:getWidth()")
	n.Height = n.firstInt(0, "layout:height", "getHeight()", "layout:getHeight()")
	n.ScrollX = n.firstInt(0, "layout:scrollX", "mScrollX", "scrolling:mScrollX")
	n.ScrollY = n.firstInt(0, "layout:scrollY", "mScrollY", "scrolling:mScrollY")

	n.PaddingLeft = n.firstInt(0, "padding:paddingLeft", "mPaddingLeft", "padding:mPaddingLeft")
	n.PaddingRight = n.firstInt(0, "padding:paddingRight", "mPaddingRight", "padding:mPaddingRight")
	n.PaddingTop = n.firstInt(0, "padding:paddingTop", "mPaddingTop", "padding:mPaddingTop")
	n.PaddingBottom = n.firstInt(0, "padding:paddingBottom", "mPaddingBottom", "padding:mPaddingBottom")

	n.MarginLeft = n.firstInt(MarginUnset, "layout_leftMargin", "layout:layout_leftMargin")
	n.MarginRight = n.firstInt(MarginUnset, "layout_rightMargin", "layout:layout_rightMargin")
	n.MarginTop = n.firstInt(MarginUnset, "layout_topMargin", "layout:layout_topMargin")
	n.MarginBottom = n.firstInt(MarginUnset, "layout_bottomMargin", "layout:layout_bottomMargin")

	n.Baseline = n.firstInt(0, "layout:baseline", "getBaseline()", "layout:getBaseline()")
	n.WillNotDraw = n.firstBool(false, "drawing:willNotDraw", "willNotDraw()", "drawing:willNotDraw()")
	n.HasFocus = n.firstBool(false, "focus:hasFocus", "hasFocus()", "focus:hasFocus()")
	n.TranslationX = n.firstFloat(0, "drawing:translationX", "drawing:getTranslationX()", "getTranslationX()")
	n.TranslationY = n.firstFloat(0, "drawing:translationY", "drawing:getTranslationY()", "getTranslationY()")

	seen := make(map[string]bool)
	for _, p := range n.Properties {
		if c := p.Category(); c != "" && !seen[c] {
			seen[c] = true
			n.Categories = append(n.Categories, c)
		}
	}
	if len(n.Categories) != 0 {
		n.Categories = append(n.Categories, miscellaneous)
	}
	sort.Strings(n.Categories)
}

// Property returns the named property.
func (n *Node) Property(name string) (Property, bool) {
	i, ok := n.named[name]
	if !ok {
		return Property{}, false
	}
	return n.Properties[i], true
}

// Has reports whether the node carries the named property.
func (n *Node) Has(name string) bool {
	_, ok := n.named[name]
	return ok
}

// Value returns the raw text value of a property.
func (n *Node) Value(name string) (string, bool) {
	p, ok := n.Property(name)
	return p.Value, ok
}

// Int returns a property parsed as an integer, or def when it is missing or malformed.
func (n *Node) Int(name string, def int) int {
	v, ok := n.Value(name)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// Float returns a property parsed as a float, or def when it is missing or malformed.
func (n *Node) Float(name string, def float32) float32 {
	v, ok := n.Value(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil {
		return def
	}
	return float32(f)
}

// Bool returns a property parsed as a boolean, or def when it is missing or malformed.
func (n *Node) Bool(name string, def bool) bool {
	v, ok := n.Value(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// HasMargins reports whether all four margins were reported.
func (n *Node) HasMargins() bool {
	return n.MarginLeft != MarginUnset && n.MarginRight != MarginUnset &&
		n.MarginTop != MarginUnset && n.MarginBottom != MarginUnset
}

// Visibility returns Visible, Invisible, Gone, or -1 when the dump did not say.
func (n *Node) Visibility() int {
	if v, ok := n.Value("misc:visibility"); ok {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return -1
		}
		return i
	}
	for _, name := range []string{"misc:getVisibility()", "getVisibility()"} {
		v, ok := n.Value(name)
		if !ok {
			continue
		}
		switch strings.TrimSpace(v) {
		case "VISIBLE":
			return Visible
		case "INVISIBLE":
			return Invisible
		case "GONE":
			return Gone
		}
	}
	return -1
}

// ChildIndex returns the position of n within its parent's children, or -1.
func (n *Node) ChildIndex() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// Depth returns the number of ancestors of n.
func (n *Node) Depth() int {
	d := 0
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// Root returns the topmost ancestor of n.
func (n *Node) Root() *Node {
	r := n
	for r.Parent != nil {
		r = r.Parent
	}
	return r
}

// Walk visits n and its descendants depth first, parents before children.
// Returning false from fn stops the walk.
func Walk(n *Node, fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

func (n *Node) first(def string, names ...string) string {
	for _, name := range names {
		if v, ok := n.Value(name); ok {
			return v
		}
	}
	return def
}

func (n *Node) firstInt(def int, names ...string) int {
	for _, name := range names {
		if n.Has(name) {
			return n.Int(name, def)
		}
	}
	return def
}

func (n *Node) firstFloat(def float32, names ...string) float32 {
	for _, name := range names {
		if n.Has(name) {
			return n.Float(name, def)
		}
	}
	return def
}

func (n *Node) firstBool(def bool, names ...string) bool {
	for _, name := range names {
		if n.Has(name) {
			return n.Bool(name, def)
		}
	}
	return def
}
