package terrain

import (
	"github.com/vreezy/hexsnow/internal/world"
)

// Placement is one accepted placement command. Slot is the index into the
// archetype's fixed-capacity buffer and is always below its capacity.
type Placement struct {
	Seq        int             `json:"seq"`
	Archetype  world.Archetype `json:"archetype"`
	Slot       int             `json:"slot"`
	Coord      world.TileCoord `json:"coord"`
	Position   world.Position  `json:"position"`
	Height     float64         `json:"height"`
	Seed       float64         `json:"seed"` // Per-instance jitter seed in [0, 1)
	Decoration bool            `json:"decoration,omitempty"`
}

// Sink receives placements. Capacity is queried once per archetype before
// a pass; Submit is called once per accepted placement, in order.
type Sink interface {
	Capacity(a world.Archetype) int
	Submit(p Placement) error
}

// Collector is a Sink that records placements against fixed capacities.
type Collector struct {
	Capacities map[world.Archetype]int
	Placements []Placement
}

// NewCollector creates a collector with the given capacities. Archetypes
// not listed have zero capacity.
func NewCollector(capacities map[world.Archetype]int) *Collector {
	return &Collector{Capacities: capacities}
}

// Capacity returns the declared capacity for a.
func (c *Collector) Capacity(a world.Archetype) int {
	return c.Capacities[a]
}

// Submit records p.
func (c *Collector) Submit(p Placement) error {
	c.Placements = append(c.Placements, p)
	return nil
}

// Multi fans placements out to several sinks. Capacity is the smallest
// capacity any of them declares.
type Multi []Sink

// Capacity returns the minimum capacity across all sinks.
func (m Multi) Capacity(a world.Archetype) int {
	if len(m) == 0 {
		return 0
	}
	n := m[0].Capacity(a)
	for _, s := range m[1:] {
		if c := s.Capacity(a); c < n {
			n = c
		}
	}
	return n
}

// Submit forwards p to every sink, stopping at the first error.
func (m Multi) Submit(p Placement) error {
	for _, s := range m {
		if err := s.Submit(p); err != nil {
			return err
		}
	}
	return nil
}
