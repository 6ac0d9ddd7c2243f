package view

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// legacyAliases maps legacy text dump keys to the names used by binary dumps,
// so filters work the same on both formats.
var legacyAliases = []struct {
	canonical string
	legacy    []string
}{
	{"text:text", []string{"text:mText", "mText", "text:getText()"}},
	{"accessibility:contentDescription", []string{"accessibility:mContentDescription", "mContentDescription", "accessibility:getContentDescription()"}},
	{"misc:clickable", []string{"isClickable()", "misc:isClickable()"}},
	{"focus:isFocused", []string{"isFocused()", "focus:isFocused()"}},
	{"drawing:translationX", []string{"drawing:getTranslationX()", "getTranslationX()"}},
	{"drawing:translationY", []string{"drawing:getTranslationY()", "getTranslationY()"}},
}

// BuildText parses the legacy plain-text dump: one view per line, depth given
// by leading spaces, terminated by "DONE." or end of input.
//
// Deprecated: no current producer is known to emit this format. Build
// selects it automatically for non-binary input.
func BuildText(r io.Reader, w Window) (*Node, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var current *Node
	currentDepth := -1
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.EqualFold(line, "DONE.") {
			break
		}
		depth := 0
		for depth < len(line) && line[depth] == ' ' {
			depth++
		}
		if depth == len(line) {
			continue
		}
		for depth <= currentDepth {
			if current != nil {
				current = current.Parent
			}
			currentDepth--
		}
		current = parseTextNode(line[depth:], current, w)
		currentDepth = depth
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}
	return current.Root(), nil
}

// parseTextNode parses "<Class>@<hash> key=value key=LEN,value ...".
func parseTextNode(desc string, parent *Node, w Window) *Node {
	head, rest, _ := strings.Cut(desc, " ")
	name, hash, _ := strings.Cut(head, "@")

	props := parseTextProperties(rest)
	for _, a := range legacyAliases {
		if hasProperty(props, a.canonical) {
			continue
		}
		for _, l := range a.legacy {
			if v, ok := propertyValue(props, l); ok {
				props = append(props, Property{Name: a.canonical, Value: v})
				break
			}
		}
	}

	n := newNode(w, parent, props)
	n.Name = name
	n.HashCode = hash
	return n
}

// parseTextProperties reads space separated key=value pairs. A value of the
// form LEN,text holds exactly LEN characters and may contain spaces.
func parseTextProperties(s string) []Property {
	var props []Property
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return props
		}
		eq := strings.IndexByte(s, '=')
		if eq == -1 {
			return props
		}
		key := s[:eq]
		s = s[eq+1:]

		var value string
		value, s = readTextValue(s)
		props = append(props, Property{Name: key, Value: value})
	}
}

func readTextValue(s string) (string, string) {
	if comma := strings.IndexByte(s, ','); comma > 0 {
		if n, err := strconv.Atoi(s[:comma]); err == nil && n >= 0 {
			body := s[comma+1:]
			// LEN counts UTF-16 units, so runes outside the BMP count twice.
			end := 0
			for units := 0; units < n && end < len(body); {
				r, size := utf8.DecodeRuneInString(body[end:])
				if l := utf16.RuneLen(r); l > 0 {
					units += l
				} else {
					units++
				}
				end += size
			}
			return body[:end], body[end:]
		}
	}
	if sp := strings.IndexByte(s, ' '); sp != -1 {
		return s[:sp], s[sp:]
	}
	return s, ""
}

func hasProperty(props []Property, name string) bool {
	_, ok := propertyValue(props, name)
	return ok
}

func propertyValue(props []Property, name string) (string, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}
