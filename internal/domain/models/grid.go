package models

// Cell is one integer coordinate of the dispatch grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InBounds reports whether the cell lies inside an nx×ny grid
// (coordinates are zero-based, so valid values are 0..n-1).
func (c Cell) InBounds(nx, ny int) bool {
	return c.X >= 0 && c.X < nx && c.Y >= 0 && c.Y < ny
}

// Manhattan returns the L1 distance between two cells. Fares and ETAs are
// computed from it.
func Manhattan(a, b Cell) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Chebyshev returns the L∞ distance between two cells. Search rings are
// Chebyshev rings.
func Chebyshev(a, b Cell) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
