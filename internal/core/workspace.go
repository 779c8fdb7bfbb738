package core

import "fmt"

// Pos is a grid cell. X is the column, Y the row.
type Pos struct {
	X, Y int
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Step returns the cell one step from p in direction d.
func (p Pos) Step(d Direction) Pos {
	dx, dy := d.Delta()
	return Pos{X: p.X + dx, Y: p.Y + dy}
}

// Manhattan returns |dx| + |dy| between two cells.
func Manhattan(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Grid is the rectangular workspace.
type Grid struct {
	Width  int // columns
	Height int // rows
}

// InBounds checks if p lies on the grid.
func (g Grid) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Cells returns the number of cells on the grid.
func (g Grid) Cells() int {
	return g.Width * g.Height
}

// Index maps an in-bounds cell to a dense index.
func (g Grid) Index(p Pos) int {
	return p.Y*g.Width + p.X
}

// Neighbors returns the in-bounds 4-neighbors of p in a fixed order
// (down, right, up, left).
func (g Grid) Neighbors(p Pos) []Pos {
	out := make([]Pos, 0, 4)
	for _, d := range [...][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}} {
		n := Pos{X: p.X + d[0], Y: p.Y + d[1]}
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Corners returns the four corner cells: top-left, top-right,
// bottom-left, bottom-right.
func (g Grid) Corners() []Pos {
	return []Pos{
		{X: 0, Y: 0},
		{X: g.Width - 1, Y: 0},
		{X: 0, Y: g.Height - 1},
		{X: g.Width - 1, Y: g.Height - 1},
	}
}

// CellSet is a set of grid cells.
type CellSet map[Pos]struct{}

// NewCellSet builds a set from the given cells.
func NewCellSet(cells ...Pos) CellSet {
	s := make(CellSet, len(cells))
	for _, c := range cells {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts p.
func (s CellSet) Add(p Pos) { s[p] = struct{}{} }

// Remove deletes p.
func (s CellSet) Remove(p Pos) { delete(s, p) }

// Has reports membership. A nil set contains nothing.
func (s CellSet) Has(p Pos) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy.
func (s CellSet) Clone() CellSet {
	out := make(CellSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}
