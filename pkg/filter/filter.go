// Package filter provides composable predicates over view nodes.
package filter

import (
	"strconv"
	"strings"

	"github.com/devicelab-dev/cyborg/pkg/view"
)

// Filter selects nodes. Filters are immutable and safe to share between
// goroutines. The set of variants is closed; build filters with the
// constructors in this package.
type Filter interface {
	Apply(n *view.Node) bool
	Describe() string
	String() string
	sealed()
}

// match is a leaf predicate.
type match struct {
	desc string
	fn   func(*view.Node) bool
}

func (m match) Apply(n *view.Node) bool { return n != nil && m.fn(n) }
func (m match) Describe() string        { return m.desc }
func (m match) String() string          { return format(m) }
func (match) sealed()                   {}

// allOf matches when every member matches. Evaluation stops at the first miss.
type allOf []Filter

func (a allOf) Apply(n *view.Node) bool {
	for _, f := range a {
		if !f.Apply(n) {
			return false
		}
	}
	return true
}

func (a allOf) Describe() string { return join(a, " AND ") }
func (a allOf) String() string   { return format(a) }
func (allOf) sealed()            {}

// anyOf matches when some member matches. Evaluation stops at the first hit.
type anyOf []Filter

func (a anyOf) Apply(n *view.Node) bool {
	for _, f := range a {
		if f.Apply(n) {
			return true
		}
	}
	return false
}

func (a anyOf) Describe() string { return join(a, " OR ") }
func (a anyOf) String() string   { return format(a) }
func (anyOf) sealed()            {}

type not struct{ f Filter }

func (x not) Apply(n *view.Node) bool { return !x.f.Apply(n) }
func (x not) Describe() string        { return "NOT (" + x.f.Describe() + ")" }
func (x not) String() string          { return format(x) }
func (not) sealed()                   {}

func format(f Filter) string {
	return "<Filter for " + f.Describe() + ">"
}

func join(fs []Filter, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Describe()
	}
	return strings.Join(parts, sep)
}

// And matches nodes accepted by every filter. And() matches everything.
func And(filters ...Filter) Filter {
	return allOf(append([]Filter(nil), filters...))
}

// Or matches nodes accepted by any filter. Or() matches nothing.
func Or(filters ...Filter) Filter {
	return anyOf(append([]Filter(nil), filters...))
}

// Not inverts f.
func Not(f Filter) Filter {
	return not{f: f}
}

// WithID matches nodes whose resource id is "id/<id>". An id already carrying
// the "id/" prefix is used as is.
func WithID(id string) Filter {
	want := qualify(id)
	return match{
		desc: "id='" + id + "'",
		fn:   func(n *view.Node) bool { return n.ID == want },
	}
}

// WithContentDescriptionStart matches content descriptions starting with text.
func WithContentDescriptionStart(text string) Filter {
	return match{
		desc: "contentDesc='" + text + "...'",
		fn: func(n *view.Node) bool {
			d, ok := n.Value("accessibility:contentDescription")
			return ok && strings.HasPrefix(d, text)
		},
	}
}

// WithContentDescriptionEnd matches content descriptions ending with text.
func WithContentDescriptionEnd(text string) Filter {
	return match{
		desc: "contentDesc='..." + text + "'",
		fn: func(n *view.Node) bool {
			d, ok := n.Value("accessibility:contentDescription")
			return ok && strings.HasSuffix(d, text)
		},
	}
}

// WithText matches nodes whose text equals text, ignoring surrounding whitespace.
func WithText(text string) Filter {
	want := strings.TrimSpace(text)
	return match{
		desc: "text='" + text + "'",
		fn: func(n *view.Node) bool {
			t, ok := n.Value("text:text")
			return ok && strings.TrimSpace(t) == want
		},
	}
}

// NthChildOfParentWithID matches the child at index i of a parent with the given id.
func NthChildOfParentWithID(i int, id string) Filter {
	want := qualify(id)
	return match{
		desc: "child #" + strconv.Itoa(i) + " of parent with id " + id,
		fn: func(n *view.Node) bool {
			p := n.Parent
			if p == nil || p.ID != want || i < 0 || i >= len(p.Children) {
				return false
			}
			return p.Children[i] == n
		},
	}
}

// Clickable matches nodes reporting misc:clickable=true.
func Clickable() Filter {
	return match{
		desc: "clickable",
		fn:   func(n *view.Node) bool { return isTrue(n, "misc:clickable") },
	}
}

// IsFocused matches nodes reporting focus:isFocused=true.
func IsFocused() Filter {
	return match{
		desc: "is focused",
		fn:   func(n *view.Node) bool { return isTrue(n, "focus:isFocused") },
	}
}

// WithParentWithID matches direct children of a node with the given id.
func WithParentWithID(id string) Filter {
	want := qualify(id)
	return match{
		desc: "parentId='" + id + "'",
		fn:   func(n *view.Node) bool { return n.Parent != nil && n.Parent.ID == want },
	}
}

// WithName matches nodes by class name. A simple name such as "Button"
// matches any package; a qualified name must match exactly.
func WithName(class string) Filter {
	return match{
		desc: "class='" + class + "'",
		fn: func(n *view.Node) bool {
			return n.Name == class || strings.HasSuffix(n.Name, "."+class)
		},
	}
}

func isTrue(n *view.Node, name string) bool {
	v, ok := n.Value(name)
	return ok && v == "true"
}

func qualify(id string) string {
	if strings.HasPrefix(id, "id/") {
		return id
	}
	return "id/" + id
}
