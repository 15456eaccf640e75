package terrain

import "github.com/vreezy/hexsnow/internal/world"

// Bands is an ordered classification table, highest threshold first.
type Bands []Band

// Classify returns the index of the first band whose threshold the height
// reaches, or -1 when only the fallback applies.
func (b Bands) Classify(height, maxHeight float64) int {
	for i, band := range b {
		if height >= band.MinFraction*maxHeight {
			return i
		}
	}
	return -1
}

// archetypeAt resolves a band index, -1 meaning the fallback.
func (b Bands) archetypeAt(i int, fallback world.Archetype) (world.Archetype, float64) {
	if i < 0 || i >= len(b) {
		return fallback, 1
	}
	scale := b[i].HeightScale
	if scale == 0 {
		scale = 1
	}
	return b[i].Archetype, scale
}
