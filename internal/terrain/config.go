// Package terrain turns a height field into classified, positioned tile
// placements. One generation pass walks a bounded spiral of tile
// coordinates, rejects candidates outside the world radius, remaps the
// sampled height through a power curve, classifies it into an archetype
// and submits indexed placements to a fixed-capacity sink.
package terrain

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vreezy/hexsnow/internal/world"
)

// ErrInvalidConfig is returned when a Config cannot drive a generation pass.
var ErrInvalidConfig = errors.New("invalid terrain config")

// SampleSpace selects which coordinates feed the height field.
type SampleSpace string

const (
	SampleTile  SampleSpace = "tile"  // Sample at (tileX, tileY) / divisor
	SampleWorld SampleSpace = "world" // Sample at (position.X, position.Z) / divisor
)

// Band maps heights at or above MinFraction*MaxHeight to an archetype.
type Band struct {
	MinFraction float64         `json:"min_fraction"`
	Archetype   world.Archetype `json:"archetype"`
	HeightScale float64         `json:"height_scale,omitempty"` // Emitted height multiplier (0 = 1)
}

// Decoration places a secondary archetype on tiles of archetype On when an
// independent uniform draw exceeds Threshold.
type Decoration struct {
	On        world.Archetype `json:"on"`
	Place     world.Archetype `json:"place"`
	Threshold float64         `json:"threshold"`
}

// Config holds terrain generation parameters.
type Config struct {
	WorldRadius float64 `json:"world_radius"` // Euclidean cutoff on the ground plane
	TileBound   int     `json:"tile_bound"`   // Spiral bound in tiles per axis direction

	// Height = pow((sample + Bias) * Scale, Exponent) * MaxHeight + Offset
	MaxHeight float64 `json:"max_height"`
	Exponent  float64 `json:"exponent"`
	Bias      float64 `json:"bias"`
	Scale     float64 `json:"scale"`
	Offset    float64 `json:"offset"`

	SampleSpace   SampleSpace `json:"sample_space"`
	SampleDivisor float64     `json:"sample_divisor"`

	Bands    []Band          `json:"bands"`
	Fallback world.Archetype `json:"fallback"`
	Cascade  bool            `json:"cascade"` // Exhausted band falls through to the next lower band

	// Capacity sizes the reference instance buffers. The generator itself
	// always asks its sink.
	Capacity map[world.Archetype]int `json:"capacity"`

	Decorations    []Decoration `json:"decorations"`
	DecorationSeed int64        `json:"decoration_seed"` // 0 = non-reproducible decorations

	Workers int `json:"workers"` // >1 precomputes positions and heights concurrently
}

// Validate checks that the config can drive a generation pass.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"world_radius", c.WorldRadius},
		{"max_height", c.MaxHeight},
		{"exponent", c.Exponent},
		{"bias", c.Bias},
		{"scale", c.Scale},
		{"offset", c.Offset},
		{"sample_divisor", c.SampleDivisor},
	} {
		if !finite(f.v) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, f.name)
		}
	}
	if c.WorldRadius <= 0 {
		return fmt.Errorf("%w: world_radius must be positive", ErrInvalidConfig)
	}
	if c.TileBound <= 0 {
		return fmt.Errorf("%w: tile_bound must be positive", ErrInvalidConfig)
	}
	if c.MaxHeight <= 0 {
		return fmt.Errorf("%w: max_height must be positive", ErrInvalidConfig)
	}
	if c.Exponent <= 0 {
		return fmt.Errorf("%w: exponent must be positive", ErrInvalidConfig)
	}
	if c.SampleDivisor <= 0 {
		return fmt.Errorf("%w: sample_divisor must be positive", ErrInvalidConfig)
	}
	switch c.SampleSpace {
	case SampleTile, SampleWorld:
	default:
		return fmt.Errorf("%w: unknown sample_space %q", ErrInvalidConfig, c.SampleSpace)
	}
	if c.Fallback.IsDecoration() {
		return fmt.Errorf("%w: fallback %s is a decoration", ErrInvalidConfig, c.Fallback)
	}
	for i, b := range c.Bands {
		if !finite(b.MinFraction) || !finite(b.HeightScale) {
			return fmt.Errorf("%w: band %d has a non-finite value", ErrInvalidConfig, i)
		}
		if b.Archetype.IsDecoration() {
			return fmt.Errorf("%w: band %d archetype %s is a decoration", ErrInvalidConfig, i, b.Archetype)
		}
		if b.HeightScale < 0 {
			return fmt.Errorf("%w: band %d height_scale is negative", ErrInvalidConfig, i)
		}
	}
	for i, d := range c.Decorations {
		if !d.Place.IsDecoration() {
			return fmt.Errorf("%w: decoration %d places non-decoration %s", ErrInvalidConfig, i, d.Place)
		}
		if !(d.Threshold >= 0 && d.Threshold < 1) {
			return fmt.Errorf("%w: decoration %d threshold must be in [0, 1)", ErrInvalidConfig, i)
		}
	}
	for a, n := range c.Capacity {
		if n < 0 {
			return fmt.Errorf("%w: capacity for %s is negative", ErrInvalidConfig, a)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sortedBands returns a copy of the bands in descending threshold order.
func (c Config) sortedBands() Bands {
	bands := make(Bands, len(c.Bands))
	copy(bands, c.Bands)
	sort.SliceStable(bands, func(i, j int) bool {
		return bands[i].MinFraction > bands[j].MinFraction
	})
	return bands
}

// DefaultConfig returns the pillar-and-spike landscape: tall rare pillars,
// metal plateaus with spikes, rocky slopes with pebbles and ground below.
func DefaultConfig() Config {
	radius := 300.0
	return Config{
		WorldRadius:   radius,
		TileBound:     100,
		MaxHeight:     70,
		Exponent:      2.5,
		Bias:          -0.125, // (simplex + 0.75) * 0.6 with simplex in [-1, 1]
		Scale:         1.2,
		Offset:        0.25,
		SampleSpace:   SampleTile,
		SampleDivisor: 40.0 / 3.0, // x * 0.075
		Bands: []Band{
			{MinFraction: 0.9, Archetype: world.ArchetypeNone},
			{MinFraction: 0.895, Archetype: world.ArchetypePillar, HeightScale: 2.5},
			{MinFraction: 0.5, Archetype: world.ArchetypeMetal},
			{MinFraction: 0.3, Archetype: world.ArchetypeRock},
		},
		Fallback: world.ArchetypeGround,
		Cascade:  true,
		Capacity: map[world.Archetype]int{
			world.ArchetypePillar: 40,
			world.ArchetypeMetal:  int(radius) * 460,
			world.ArchetypeRock:   int(radius) * 460,
			world.ArchetypeGround: int(radius) * 460,
			world.ArchetypeSpike:  500,
			world.ArchetypePebble: 1000,
		},
		Decorations: []Decoration{
			{On: world.ArchetypeMetal, Place: world.ArchetypeSpike, Threshold: 0.92},
			{On: world.ArchetypeRock, Place: world.ArchetypePebble, Threshold: 0.985},
		},
		Workers: 1,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() Config {
	cfg := DefaultConfig()
	cfg.WorldRadius = 20
	cfg.TileBound = 15
	cfg.DecorationSeed = 42
	return cfg
}
