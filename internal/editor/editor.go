// Package editor holds the geometry rules for adjusting template regions
// with a pointer: hit testing, moving, corner resizing and adding regions.
//
// Region slices passed in are never modified; the functions that change
// geometry return a new slice. Apart from AddRegion's random colour the
// results depend only on the arguments.
package editor

import (
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/docroi/internal/field"
	"github.com/ironsheep/docroi/internal/template"
)

const (
	// HitMargin widens every region when deciding what was clicked.
	HitMargin = 5

	// HandleTolerance is how close to a corner a press must be to grab it.
	HandleTolerance = 10

	// MinSize is the smallest width and height a resize can produce.
	MinSize = 20

	// Size of a newly added region.
	NewRegionWidth  = 200
	NewRegionHeight = 30
)

// Handle names a resize corner.
type Handle string

const (
	NoHandle    Handle = ""
	TopLeft     Handle = "topleft"
	TopRight    Handle = "topright"
	BottomLeft  Handle = "bottomleft"
	BottomRight Handle = "bottomright"
)

// Mode is what a drag currently does.
type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	}
	return "idle"
}

// State is the pointer state between events.
type State struct {
	// Editing is the region in resize mode, or "" when every region moves.
	Editing string

	Mode   Mode
	Active string
	Handle Handle

	// Offset from the active region's top-left corner to the press point.
	Offset image.Point
}

// HitTest returns the first region, in order, whose rectangle grown by
// HitMargin contains p. Edges count as inside.
func HitTest(regions template.Regions, p image.Point) (string, bool) {
	for _, r := range regions {
		c := r.Coords
		if p.X >= c.X1-HitMargin && p.X <= c.X2+HitMargin &&
			p.Y >= c.Y1-HitMargin && p.Y <= c.Y2+HitMargin {
			return r.Name, true
		}
	}
	return "", false
}

// HandleAt returns the corner of r within HandleTolerance of p.
func HandleAt(r template.Rect, p image.Point) Handle {
	near := func(x, y int) bool {
		return abs(p.X-x) < HandleTolerance && abs(p.Y-y) < HandleTolerance
	}
	switch {
	case near(r.X1, r.Y1):
		return TopLeft
	case near(r.X2, r.Y1):
		return TopRight
	case near(r.X1, r.Y2):
		return BottomLeft
	case near(r.X2, r.Y2):
		return BottomRight
	}
	return NoHandle
}

// Press starts a gesture at p. On the region in resize mode it grabs a
// corner, or nothing when p is not near one; on any other region it starts
// a move.
func Press(s State, regions template.Regions, p image.Point) State {
	s.Mode, s.Active, s.Handle, s.Offset = Idle, "", NoHandle, image.Point{}

	name, ok := HitTest(regions, p)
	if !ok {
		return s
	}
	r, _ := regions.Find(name)

	if name == s.Editing {
		if h := HandleAt(r.Coords, p); h != NoHandle {
			s.Mode, s.Active, s.Handle = Resizing, name, h
		}
		return s
	}
	s.Mode, s.Active = Dragging, name
	s.Offset = image.Pt(p.X-r.Coords.X1, p.Y-r.Coords.Y1)
	return s
}

// Drag applies pointer movement to p and returns the updated regions. It
// returns regions unchanged when no gesture is active.
func Drag(s State, regions template.Regions, p image.Point, canvas image.Point) template.Regions {
	if s.Mode == Idle {
		return regions
	}
	idx := -1
	for i, r := range regions {
		if r.Name == s.Active {
			idx = i
			break
		}
	}
	if idx < 0 {
		return regions
	}

	out := append(template.Regions(nil), regions...)
	c := out[idx].Coords
	switch s.Mode {
	case Dragging:
		c = move(c, p.Sub(s.Offset), canvas)
	case Resizing:
		c = resize(c, s.Handle, p)
	}
	out[idx].Coords = clampRect(c, canvas)
	return out
}

// Release ends the gesture. The resize-mode region is kept.
func Release(s State) State {
	return State{Editing: s.Editing}
}

// ToggleResize handles a double click on name: it puts name in resize mode,
// or returns every region to move mode when name already was.
func ToggleResize(s State, name string) State {
	if s.Editing == name {
		s.Editing = ""
	} else {
		s.Editing = name
	}
	return s
}

func move(c template.Rect, topLeft, canvas image.Point) template.Rect {
	w, h := c.Width(), c.Height()
	n := template.Rect{X1: topLeft.X, Y1: topLeft.Y, X2: topLeft.X + w, Y2: topLeft.Y + h}
	if n.X1 < 0 {
		n.X1, n.X2 = 0, w
	}
	if n.Y1 < 0 {
		n.Y1, n.Y2 = 0, h
	}
	if n.X2 > canvas.X {
		n.X2, n.X1 = canvas.X, canvas.X-w
	}
	if n.Y2 > canvas.Y {
		n.Y2, n.Y1 = canvas.Y, canvas.Y-h
	}
	return n
}

func resize(c template.Rect, h Handle, p image.Point) template.Rect {
	switch h {
	case TopLeft:
		c.X1 = min(p.X, c.X2-MinSize)
		c.Y1 = min(p.Y, c.Y2-MinSize)
	case TopRight:
		c.X2 = max(p.X, c.X1+MinSize)
		c.Y1 = min(p.Y, c.Y2-MinSize)
	case BottomLeft:
		c.X1 = min(p.X, c.X2-MinSize)
		c.Y2 = max(p.Y, c.Y1+MinSize)
	case BottomRight:
		c.X2 = max(p.X, c.X1+MinSize)
		c.Y2 = max(p.Y, c.Y1+MinSize)
	}
	return c
}

func clampRect(c template.Rect, canvas image.Point) template.Rect {
	return template.Rect{
		X1: clamp(c.X1, 0, canvas.X), Y1: clamp(c.Y1, 0, canvas.Y),
		X2: clamp(c.X2, 0, canvas.X), Y2: clamp(c.Y2, 0, canvas.Y),
	}
}

// AddRegion appends a NewRegionWidth x NewRegionHeight region centred on
// the canvas with a random colour. Names are trimmed and upper-cased.
func AddRegion(regions template.Regions, name string, t field.Type, canvas image.Point) (template.Regions, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("region name is empty")
	}
	if !t.Valid() {
		return nil, fmt.Errorf("unknown field type %q", t)
	}
	if _, exists := regions.Find(name); exists {
		return nil, fmt.Errorf("region %q already exists", name)
	}

	cx, cy := canvas.X/2, canvas.Y/2
	col := template.RandomColor()
	r := template.Region{
		Name: name,
		Coords: clampRect(template.Rect{
			X1: cx - NewRegionWidth/2, Y1: cy - NewRegionHeight/2,
			X2: cx + NewRegionWidth/2, Y2: cy + NewRegionHeight/2,
		}, canvas),
		Color:        &col,
		ExpectedType: t,
	}
	return append(append(template.Regions(nil), regions...), r), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
