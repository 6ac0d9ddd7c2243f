// Package core provides the shared geometry, error and result types for cyborg.
package core

import "fmt"

// Rect is an absolute on-screen rectangle in device pixels.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the center point of the rect (integer division, as input tap expects).
func (r Rect) Center() (int, int) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Contains checks if a point is within the rect
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Grow returns the rect expanded by units on every side.
func (r Rect) Grow(units int) Rect {
	return Rect{X: r.X - units, Y: r.Y - units, W: r.W + 2*units, H: r.H + 2*units}
}

// Shrink returns the rect reduced by units on every side.
func (r Rect) Shrink(units int) Rect {
	return r.Grow(-units)
}

// OverlapsDisplay reports whether the rect touches the display area [0,0]-[width,height].
// A rect is only excluded when it lies entirely above, left of, below or right of the display.
func (r Rect) OverlapsDisplay(width, height int) bool {
	if r.X > width || r.Y > height {
		return false
	}
	if r.X+r.W < 0 || r.Y+r.H < 0 {
		return false
	}
	return true
}

func (r Rect) String() string {
	return fmt.Sprintf("<Rect (%d, %d) w=%d h=%d>", r.X, r.Y, r.W, r.H)
}
