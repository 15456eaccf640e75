package world

import "fmt"

// Tile is one placed terrain tile.
type Tile struct {
	Coord     TileCoord `json:"coord"`
	Position  Position  `json:"position"`
	Height    float64   `json:"height"`
	Archetype Archetype `json:"archetype"`

	// Decorations placed on this tile, if any.
	Decorations []Archetype `json:"decorations,omitempty"`
}

// Map indexes the placed tiles of one generation pass.
type Map struct {
	Tiles  map[TileCoord]*Tile `json:"-"` // All tiles keyed by coordinate
	Radius float64             `json:"radius"`
}

// NewMap creates an empty map bounded by the given world radius.
func NewMap(radius float64) *Map {
	return &Map{
		Tiles:  make(map[TileCoord]*Tile),
		Radius: radius,
	}
}

// Get returns the tile at the given coordinate, or nil if none was placed.
func (m *Map) Get(coord TileCoord) *Tile {
	return m.Tiles[coord]
}

// Set places a tile at its coordinate.
func (m *Map) Set(t *Tile) {
	m.Tiles[t.Coord] = t
}

// InBounds returns true if the coordinate maps strictly inside the radius.
func (m *Map) InBounds(coord TileCoord) bool {
	return ToPosition(coord).Length() < m.Radius
}

// TileCount returns the total number of placed tiles.
func (m *Map) TileCount() int {
	return len(m.Tiles)
}

// Counts returns the number of tiles per archetype.
func (m *Map) Counts() map[Archetype]int {
	counts := make(map[Archetype]int)
	for _, t := range m.Tiles {
		counts[t.Archetype]++
	}
	return counts
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%.1f, tiles=%d)", m.Radius, m.TileCount())
}
