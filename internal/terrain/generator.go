package terrain

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/vreezy/hexsnow/internal/entropy"
	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/world"
)

// Generator runs generation passes. It owns the per-archetype slot counters
// for the duration of a pass; the sink only ever sees indexed submits.
type Generator struct {
	cfg     Config
	bands   Bands
	sampler noise.Sampler
	rng     entropy.Source
	sink    Sink
}

// New creates a generator. The sampler supplies heights, rng supplies
// decoration draws and jitter seeds, sink receives placements.
func New(cfg Config, sampler noise.Sampler, rng entropy.Source, sink Sink) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil || rng == nil || sink == nil {
		return nil, fmt.Errorf("%w: sampler, random source and sink are required", ErrInvalidConfig)
	}
	return &Generator{
		cfg:     cfg,
		bands:   cfg.sortedBands(),
		sampler: sampler,
		rng:     rng,
		sink:    sink,
	}, nil
}

// Config returns the generator's configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// rejection reasons for a candidate before classification.
type rejection uint8

const (
	accepted rejection = iota
	outOfRadius
	negativeHeight
)

func (r rejection) String() string {
	switch r {
	case outOfRadius:
		return "out_of_radius"
	case negativeHeight:
		return "negative"
	}
	return "accepted"
}

// candidate is the order-independent part of a tile's evaluation.
type candidate struct {
	coord    world.TileCoord
	position world.Position
	height   float64
	reject   rejection
}

// evaluate maps, bounds and samples one coordinate. It touches no shared
// mutable state and may run concurrently.
func (g *Generator) evaluate(coord world.TileCoord) candidate {
	c := candidate{coord: coord, position: world.ToPosition(coord)}
	if c.position.Length() >= g.cfg.WorldRadius {
		c.reject = outOfRadius
		return c
	}

	var sx, sy float64
	switch g.cfg.SampleSpace {
	case SampleWorld:
		sx, sy = c.position.X/g.cfg.SampleDivisor, c.position.Z/g.cfg.SampleDivisor
	default:
		sx, sy = float64(coord.X)/g.cfg.SampleDivisor, float64(coord.Y)/g.cfg.SampleDivisor
	}

	h, ok := g.Height(g.sampler.Sample(sx, sy))
	if !ok {
		c.reject = negativeHeight
		return c
	}
	c.height = h
	return c
}

// Height remaps a raw sample through the bias/scale/power curve. It returns
// false when the biased sample is negative or not a number.
func (g *Generator) Height(raw float64) (float64, bool) {
	v := (raw + g.cfg.Bias) * g.cfg.Scale
	if v < 0 || math.IsNaN(v) {
		return 0, false
	}
	return math.Pow(v, g.cfg.Exponent)*g.cfg.MaxHeight + g.cfg.Offset, true
}

// Generate runs one complete pass and returns every accepted placement in
// submission order. Rejections are counted, never reported as errors; the
// only errors come from the sink.
func (g *Generator) Generate() (*Result, error) {
	res := newResult(g.cfg)
	for _, a := range world.Archetypes {
		res.Capacity[a] = g.sink.Capacity(a)
	}

	if g.cfg.Workers > 1 {
		candidates, err := g.precompute()
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			if err := g.place(res, c); err != nil {
				return nil, err
			}
		}
	} else {
		for coord := range Spiral(g.cfg.TileBound) {
			if err := g.place(res, g.evaluate(coord)); err != nil {
				return nil, err
			}
		}
	}

	counts := make([]any, 0, 2*len(world.Archetypes))
	for _, a := range world.Archetypes {
		if n := res.Used[a]; n > 0 {
			counts = append(counts, a.String(), n)
		}
	}
	slog.Info("terrain pass complete",
		"placements", len(res.Placements),
		slog.Group("used", counts...),
		"candidates", res.Stats.Candidates,
		"out_of_radius", res.Stats.OutOfRadius,
		"negative", res.Stats.Negative,
		"skipped", res.Stats.Skipped,
		"exhausted", res.Stats.Exhausted,
	)
	return res, nil
}

// precompute evaluates every spiral coordinate with a bounded worker pool.
// Results keep spiral order so placement stays sequential and reproducible.
func (g *Generator) precompute() ([]candidate, error) {
	var coords []world.TileCoord
	for coord := range Spiral(g.cfg.TileBound) {
		coords = append(coords, coord)
	}

	out := make([]candidate, len(coords))
	chunk := (len(coords) + g.cfg.Workers - 1) / g.cfg.Workers

	var eg errgroup.Group
	eg.SetLimit(g.cfg.Workers)
	for start := 0; start < len(coords); start += chunk {
		end := min(start+chunk, len(coords))
		eg.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = g.evaluate(coords[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// place applies the order-sensitive steps for one candidate: classification,
// capacity, decoration draw and submission.
func (g *Generator) place(res *Result, c candidate) error {
	res.Stats.Candidates++
	switch c.reject {
	case outOfRadius:
		res.Stats.OutOfRadius++
		slog.Debug("tile rejected", "coord", c.coord, "reason", c.reject)
		return nil
	case negativeHeight:
		res.Stats.Negative++
		slog.Debug("tile rejected", "coord", c.coord, "reason", c.reject)
		return nil
	}

	band := g.bands.Classify(c.height, g.cfg.MaxHeight)
	archetype, scale := g.bands.archetypeAt(band, g.cfg.Fallback)
	for {
		if archetype == world.ArchetypeNone {
			res.Stats.Skipped++
			slog.Debug("tile rejected", "coord", c.coord, "reason", "skipped", "height", c.height)
			return nil
		}
		if res.Used[archetype] < res.Capacity[archetype] {
			break
		}
		if !g.cfg.Cascade || band < 0 {
			res.Stats.Exhausted++
			slog.Debug("tile rejected", "coord", c.coord, "reason", "exhausted", "archetype", archetype)
			return nil
		}
		band++
		if band >= len(g.bands) {
			band = -1
		}
		archetype, scale = g.bands.archetypeAt(band, g.cfg.Fallback)
		res.Stats.Cascaded++
	}

	height := c.height * scale

	for _, d := range g.cfg.Decorations {
		if d.On != archetype {
			continue
		}
		if g.rng.Float() > d.Threshold && res.Used[d.Place] < res.Capacity[d.Place] {
			if err := g.submit(res, d.Place, c, height, true); err != nil {
				return err
			}
			res.Stats.Decorations++
		}
		break
	}

	return g.submit(res, archetype, c, height, false)
}

func (g *Generator) submit(res *Result, a world.Archetype, c candidate, height float64, decoration bool) error {
	p := Placement{
		Seq:        len(res.Placements),
		Archetype:  a,
		Slot:       res.Used[a],
		Coord:      c.coord,
		Position:   c.position,
		Height:     height,
		Seed:       g.rng.Float(),
		Decoration: decoration,
	}
	if err := g.sink.Submit(p); err != nil {
		return fmt.Errorf("submit %s slot %d at %v: %w", a, p.Slot, c.coord, err)
	}
	res.Used[a]++
	res.Placements = append(res.Placements, p)
	return nil
}
