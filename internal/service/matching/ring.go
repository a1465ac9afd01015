package matching

import (
	"github.com/gridcab/dispatch/internal/domain/models"
)

// RingCells enumerates the Chebyshev ring of radius r around origin, clipped
// to an nx×ny grid. r=0 is the origin cell alone. A ring that lies entirely
// outside the grid comes back empty, and so does every larger one.
func RingCells(origin models.Cell, r, nx, ny int) []models.Cell {
	if r == 0 {
		if origin.InBounds(nx, ny) {
			return []models.Cell{origin}
		}
		return nil
	}

	cells := make([]models.Cell, 0, 8*r)

	// верхняя и нижняя стороны
	for x := origin.X - r; x <= origin.X+r; x++ {
		for _, y := range []int{origin.Y - r, origin.Y + r} {
			if c := (models.Cell{X: x, Y: y}); c.InBounds(nx, ny) {
				cells = append(cells, c)
			}
		}
	}

	// боковые стороны без углов
	for y := origin.Y - r + 1; y <= origin.Y+r-1; y++ {
		for _, x := range []int{origin.X - r, origin.X + r} {
			if c := (models.Cell{X: x, Y: y}); c.InBounds(nx, ny) {
				cells = append(cells, c)
			}
		}
	}

	return cells
}
