package terrain

import (
	"errors"
	"fmt"

	"github.com/vreezy/hexsnow/internal/world"
)

// ErrCapacityExceeded reports placements beyond declared capacity.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// Stats counts candidates by outcome.
type Stats struct {
	Candidates  int `json:"candidates"`
	OutOfRadius int `json:"out_of_radius"`
	Negative    int `json:"negative"`
	Skipped     int `json:"skipped"`   // Classified into a None band
	Exhausted   int `json:"exhausted"` // Band (and every cascade target) full
	Cascaded    int `json:"cascaded"`  // Steps taken down the band list
	Decorations int `json:"decorations"`
}

// Result is the output of one generation pass.
type Result struct {
	Config     Config                  `json:"-"`
	Placements []Placement             `json:"placements"`
	Used       map[world.Archetype]int `json:"used"`
	Capacity   map[world.Archetype]int `json:"capacity"`
	Stats      Stats                   `json:"stats"`
}

func newResult(cfg Config) *Result {
	return &Result{
		Config:   cfg,
		Used:     make(map[world.Archetype]int),
		Capacity: make(map[world.Archetype]int),
	}
}

// Primary returns the tile placements, excluding decorations.
func (r *Result) Primary() []Placement {
	out := make([]Placement, 0, len(r.Placements))
	for _, p := range r.Placements {
		if !p.Decoration {
			out = append(out, p)
		}
	}
	return out
}

// Verify asserts that no archetype used more slots than it declared and
// that total usage stays within total capacity.
func (r *Result) Verify() error {
	var used, capacity int
	for _, a := range world.Archetypes {
		if r.Used[a] > r.Capacity[a] {
			return fmt.Errorf("%w: %s used %d of %d", ErrCapacityExceeded, a, r.Used[a], r.Capacity[a])
		}
		used += r.Used[a]
		capacity += r.Capacity[a]
	}
	if used > capacity {
		return fmt.Errorf("%w: %d slots used of %d declared", ErrCapacityExceeded, used, capacity)
	}
	return nil
}

// Map indexes the primary placements by tile, attaching decorations to the
// tile they sit on.
func (r *Result) Map() *world.Map {
	m := world.NewMap(r.Config.WorldRadius)
	var pending []Placement
	for _, p := range r.Placements {
		if p.Decoration {
			pending = append(pending, p)
			continue
		}
		m.Set(&world.Tile{
			Coord:     p.Coord,
			Position:  p.Position,
			Height:    p.Height,
			Archetype: p.Archetype,
		})
	}
	for _, p := range pending {
		if t := m.Get(p.Coord); t != nil {
			t.Decorations = append(t.Decorations, p.Archetype)
		}
	}
	return m
}
