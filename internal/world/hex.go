// Package world provides the hex grid coordinate mapping and the tile index.
// Tiles are addressed by integer (x, y) pairs; odd rows are shifted half a
// tile so that flat-topped hexagonal prisms pack without gaps.
package world

import (
	"fmt"
	"math"
)

// Packing constants for a unit-radius hexagonal prism.
const (
	RowWidth   = 1.77  // Horizontal distance between tile centres in one row
	RowSpacing = 1.535 // Vertical distance between rows
)

// TileCoord is an integer tile address on the hex grid.
type TileCoord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the coordinate as "(x,y)".
func (c TileCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Position is a continuous coordinate on the ground plane.
type Position struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Length returns the Euclidean distance from the origin.
func (p Position) Length() float64 {
	return math.Hypot(p.X, p.Z)
}

// Distance returns the Euclidean distance between two positions.
func (p Position) Distance(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Z-o.Z)
}

// ToPosition maps a tile coordinate to its centre on the ground plane.
// Go's remainder keeps the sign of the dividend, so negative odd rows
// shift by -0.5 and positive odd rows by +0.5.
func ToPosition(c TileCoord) Position {
	return Position{
		X: (float64(c.X) + float64(c.Y%2)*0.5) * RowWidth,
		Z: float64(c.Y) * RowSpacing,
	}
}

// rowShift returns the row offset in half-tile units (-1, 0 or +1).
func rowShift(y int) int {
	return y % 2
}

// Neighbors returns the six tiles that touch c: two in the same row and two
// in each adjacent row.
func (c TileCoord) Neighbors() [6]TileCoord {
	result := [6]TileCoord{
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
	}

	i := 2
	for _, y := range [2]int{c.Y - 1, c.Y + 1} {
		// Centres in half-tile units: 2x + shift. A touching tile in the
		// adjacent row sits exactly one half-tile to either side.
		base := 2*c.X + rowShift(c.Y) - rowShift(y)
		result[i] = TileCoord{X: (base - 1) / 2, Y: y}
		result[i+1] = TileCoord{X: (base + 1) / 2, Y: y}
		i += 2
	}
	return result
}
