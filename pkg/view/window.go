package view

import (
	"fmt"
	"strconv"
	"strings"
)

// Window is one top-level surface owned by a process. It addresses a dump
// request; two windows are the same window iff their IDs match.
type Window struct {
	Title string
	ID    int32
}

// Equal reports whether w and o identify the same window. Titles are ignored
// because they may be re-fetched between calls.
func (w Window) Equal(o Window) bool {
	return w.ID == o.ID
}

// Encode renders the identity as lowercase hex, the form used to address dumps.
func (w Window) Encode() string {
	return strconv.FormatUint(uint64(uint32(w.ID)), 16)
}

func (w Window) String() string {
	return w.Title
}

// ParseWindow parses a "<hex id> <title>" window listing line.
func ParseWindow(line string) (Window, error) {
	line = strings.TrimSpace(line)
	hash, title, _ := strings.Cut(line, " ")
	id, err := strconv.ParseUint(hash, 16, 32)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window id in %q: %w", line, err)
	}
	return Window{Title: strings.TrimSpace(title), ID: int32(uint32(id))}, nil
}
