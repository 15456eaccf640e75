package terrain

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/vreezy/hexsnow/internal/entropy"
	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/world"
)

func flatConfig() Config {
	return Config{
		WorldRadius:   10,
		TileBound:     10,
		MaxHeight:     8,
		Exponent:      1,
		Bias:          0,
		Scale:         1,
		SampleSpace:   SampleTile,
		SampleDivisor: 1,
		Bands:         []Band{{MinFraction: 0, Archetype: world.ArchetypeGround}},
		Fallback:      world.ArchetypeGround,
		Capacity:      map[world.Archetype]int{world.ArchetypeGround: 1000},
		Workers:       1,
	}
}

func generate(t *testing.T, cfg Config, s noise.Sampler, rng entropy.Source) *Result {
	t.Helper()
	g, err := New(cfg, s, rng, NewCollector(cfg.Capacity))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	res, err := g.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return res
}

func TestGenerate_ConstantSamplerFillsDisc(t *testing.T) {
	cfg := flatConfig()
	res := generate(t, cfg, noise.Constant(0.5), entropy.NewSeeded(1))

	want := make(map[world.TileCoord]bool)
	for x := -20; x <= 20; x++ {
		for y := -20; y <= 20; y++ {
			c := world.TileCoord{X: x, Y: y}
			if world.ToPosition(c).Length() < 10 {
				want[c] = true
			}
		}
	}

	if len(res.Placements) != len(want) {
		t.Fatalf("placements = %d, want %d", len(res.Placements), len(want))
	}
	got := make(map[world.TileCoord]bool)
	for _, p := range res.Placements {
		if p.Archetype != world.ArchetypeGround {
			t.Fatalf("placement %v archetype %s, want Ground", p.Coord, p.Archetype)
		}
		if p.Height != 0.5*cfg.MaxHeight {
			t.Fatalf("placement %v height %v, want %v", p.Coord, p.Height, 0.5*cfg.MaxHeight)
		}
		if !want[p.Coord] {
			t.Fatalf("unexpected placement at %v", p.Coord)
		}
		if got[p.Coord] {
			t.Fatalf("tile %v placed twice", p.Coord)
		}
		got[p.Coord] = true
	}
	if res.Used[world.ArchetypeGround] != len(want) {
		t.Fatalf("used = %d", res.Used[world.ArchetypeGround])
	}
	if err := res.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestGenerate_NegativeSamplerPlacesNothing(t *testing.T) {
	cfg := flatConfig()
	cfg.WorldRadius = 500
	cfg.TileBound = 30
	cfg.Capacity[world.ArchetypeGround] = 1 << 20
	res := generate(t, cfg, noise.Constant(-1), entropy.NewSeeded(1))
	if len(res.Placements) != 0 {
		t.Fatalf("placements = %d, want 0", len(res.Placements))
	}
	if res.Stats.Negative == 0 {
		t.Fatal("expected negative-height rejections to be counted")
	}
}

func TestGenerate_SlotsAreSequentialPerArchetype(t *testing.T) {
	cfg := SmallTestConfig()
	f, err := noise.New(noise.Config{Seed: 3})
	if err != nil {
		t.Fatal(err)
	}
	res := generate(t, cfg, f, entropy.NewSeeded(3))
	next := make(map[world.Archetype]int)
	for i, p := range res.Placements {
		if p.Seq != i {
			t.Fatalf("placement %d has seq %d", i, p.Seq)
		}
		if p.Slot != next[p.Archetype] {
			t.Fatalf("%s slot %d, want %d", p.Archetype, p.Slot, next[p.Archetype])
		}
		next[p.Archetype]++
	}
}

func TestGenerate_DeterministicPrimaryPlacements(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.DecorationSeed = 0

	run := func() []Placement {
		f, err := noise.New(noise.Config{Seed: 77})
		if err != nil {
			t.Fatal(err)
		}
		// Decorations and jitter come from an unseeded stream on purpose.
		return generate(t, cfg, f, entropy.Crypto()).Primary()
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("primary counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Coord != b[i].Coord || a[i].Position != b[i].Position ||
			a[i].Height != b[i].Height || a[i].Archetype != b[i].Archetype {
			t.Fatalf("primary placement %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerate_RadiusContainmentAndCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorldRadius = 40
	cfg.TileBound = 30
	cfg.Cascade = false
	cfg.Capacity = map[world.Archetype]int{
		world.ArchetypeGround: 120,
		world.ArchetypeRock:   60,
		world.ArchetypeMetal:  30,
		world.ArchetypePillar: 2,
		world.ArchetypeSpike:  3,
		world.ArchetypePebble: 3,
	}
	for seed := int64(1); seed <= 5; seed++ {
		f, err := noise.New(noise.Config{Seed: seed, Octaves: 3})
		if err != nil {
			t.Fatal(err)
		}
		res := generate(t, cfg, f, entropy.NewSeeded(seed))

		counts := make(map[world.Archetype]int)
		for _, p := range res.Placements {
			if p.Position.Length() >= cfg.WorldRadius {
				t.Fatalf("seed %d: placement %v outside radius (%.3f)", seed, p.Coord, p.Position.Length())
			}
			counts[p.Archetype]++
		}
		for a, n := range counts {
			if n > cfg.Capacity[a] {
				t.Fatalf("seed %d: %s placed %d, capacity %d", seed, a, n, cfg.Capacity[a])
			}
		}
		if err := res.Verify(); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
	}
}

func TestGenerate_CascadeFallsToNextBand(t *testing.T) {
	cfg := flatConfig()
	cfg.Bands = []Band{
		{MinFraction: 0.5, Archetype: world.ArchetypePillar, HeightScale: 2.5},
		{MinFraction: 0.2, Archetype: world.ArchetypeMetal},
	}
	cfg.Capacity = map[world.Archetype]int{
		world.ArchetypePillar: 2,
		world.ArchetypeMetal:  5,
		world.ArchetypeGround: 1000,
	}
	cfg.Cascade = true
	res := generate(t, cfg, noise.Constant(0.9), entropy.NewSeeded(1))

	if res.Used[world.ArchetypePillar] != 2 || res.Used[world.ArchetypeMetal] != 5 {
		t.Fatalf("used = %v", res.Used)
	}
	if res.Used[world.ArchetypeGround] != len(res.Placements)-7 {
		t.Fatalf("remaining tiles should fall back to ground: %v", res.Used)
	}
	if res.Stats.Exhausted != 0 {
		t.Fatalf("exhausted = %d, want 0 with a roomy fallback", res.Stats.Exhausted)
	}
	for _, p := range res.Placements[:2] {
		if p.Archetype != world.ArchetypePillar || p.Height != 0.9*cfg.MaxHeight*2.5 {
			t.Fatalf("first placements should be scaled pillars, got %+v", p)
		}
	}
}

func TestGenerate_WithoutCascadeSkipsExhausted(t *testing.T) {
	cfg := flatConfig()
	cfg.Capacity[world.ArchetypeGround] = 4
	res := generate(t, cfg, noise.Constant(0.5), entropy.NewSeeded(1))
	if len(res.Placements) != 4 {
		t.Fatalf("placements = %d, want 4", len(res.Placements))
	}
	if res.Stats.Exhausted == 0 {
		t.Fatal("expected exhausted rejections")
	}
	want := []world.TileCoord{{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: -2}, {X: -1, Y: 1}}
	for i, p := range res.Placements {
		if p.Coord != want[i] {
			t.Fatalf("placement %d at %v, want %v (spiral order)", i, p.Coord, want[i])
		}
	}
}

func TestGenerate_NoneBandSkipsTiles(t *testing.T) {
	cfg := flatConfig()
	cfg.Bands = []Band{
		{MinFraction: 0.9, Archetype: world.ArchetypeNone},
		{MinFraction: 0, Archetype: world.ArchetypeGround},
	}
	res := generate(t, cfg, noise.Constant(0.95), entropy.NewSeeded(1))
	if len(res.Placements) != 0 {
		t.Fatalf("placements = %d, want 0", len(res.Placements))
	}
	if res.Stats.Skipped == 0 {
		t.Fatal("expected skipped tiles")
	}
}

func TestGenerate_DecorationsRespectCapacity(t *testing.T) {
	cfg := flatConfig()
	cfg.Decorations = []Decoration{{On: world.ArchetypeGround, Place: world.ArchetypeTree, Threshold: 0}}
	cfg.Capacity[world.ArchetypeTree] = 3
	res := generate(t, cfg, noise.Constant(0.5), entropy.NewSeeded(11))

	if res.Used[world.ArchetypeTree] != 3 || res.Stats.Decorations != 3 {
		t.Fatalf("trees used = %d, decorations = %d", res.Used[world.ArchetypeTree], res.Stats.Decorations)
	}
	for i, p := range res.Placements[:6] {
		// Each decorated tile emits its decoration first, then the tile.
		if wantDeco := i%2 == 0; p.Decoration != wantDeco {
			t.Fatalf("placement %d decoration = %v", i, p.Decoration)
		}
	}
	if got := res.Map().Get(res.Placements[1].Coord); got == nil || len(got.Decorations) != 1 {
		t.Fatalf("decorated tile missing decoration in map: %+v", got)
	}
}

func TestGenerate_ParallelMatchesSequential(t *testing.T) {
	cfg := SmallTestConfig()
	cfg.TileBound = 25
	cfg.WorldRadius = 35

	run := func(workers int) *Result {
		c := cfg
		c.Workers = workers
		f, err := noise.New(noise.Config{Seed: 5, Octaves: 2})
		if err != nil {
			t.Fatal(err)
		}
		return generate(t, c, f, entropy.NewSeeded(5))
	}
	seq, par := run(1), run(8)
	if len(seq.Placements) != len(par.Placements) {
		t.Fatalf("counts differ: %d vs %d", len(seq.Placements), len(par.Placements))
	}
	for i := range seq.Placements {
		if seq.Placements[i] != par.Placements[i] {
			t.Fatalf("placement %d differs: %+v vs %+v", i, seq.Placements[i], par.Placements[i])
		}
	}
	if seq.Stats != par.Stats {
		t.Fatalf("stats differ: %+v vs %+v", seq.Stats, par.Stats)
	}
}

func TestGenerate_WorldSpaceSampling(t *testing.T) {
	cfg := flatConfig()
	cfg.SampleSpace = SampleWorld
	cfg.SampleDivisor = 170
	var maxInput float64
	s := noise.SamplerFunc(func(x, y float64) float64 {
		maxInput = math.Max(maxInput, math.Hypot(x, y))
		return 0.5
	})
	generate(t, cfg, s, entropy.NewSeeded(1))
	if maxInput == 0 || maxInput >= cfg.WorldRadius/170 {
		t.Fatalf("world-space sample inputs should lie within radius/divisor, max %v", maxInput)
	}
}

type failingSink struct{ Collector }

func (f *failingSink) Submit(Placement) error { return errors.New("buffer gone") }

func TestGenerate_SinkErrorPropagates(t *testing.T) {
	cfg := flatConfig()
	sink := &failingSink{Collector: Collector{Capacities: cfg.Capacity}}
	g, err := New(cfg, noise.Constant(0.5), entropy.NewSeeded(1), sink)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.WorldRadius = 0 },
		func(c *Config) { c.TileBound = -1 },
		func(c *Config) { c.Exponent = 0 },
		func(c *Config) { c.SampleDivisor = 0 },
		func(c *Config) { c.SampleSpace = "polar" },
		func(c *Config) { c.Bands = []Band{{Archetype: world.ArchetypeTree}} },
		func(c *Config) {
			c.Decorations = []Decoration{{On: world.ArchetypeGround, Place: world.ArchetypeRock, Threshold: 0.5}}
		},
		func(c *Config) {
			c.Decorations = []Decoration{{On: world.ArchetypeGround, Place: world.ArchetypeTree, Threshold: 1}}
		},
		func(c *Config) { c.WorldRadius = math.NaN() },
		func(c *Config) { c.WorldRadius = math.Inf(1) },
		func(c *Config) { c.MaxHeight = math.NaN() },
		func(c *Config) { c.Exponent = math.NaN() },
		func(c *Config) { c.Bias = math.NaN() },
		func(c *Config) { c.Scale = math.Inf(-1) },
		func(c *Config) { c.Offset = math.NaN() },
		func(c *Config) { c.SampleDivisor = math.NaN() },
		func(c *Config) { c.Bands[0].MinFraction = math.NaN() },
		func(c *Config) { c.Bands[0].HeightScale = math.Inf(1) },
		func(c *Config) {
			c.Decorations = []Decoration{{On: world.ArchetypeGround, Place: world.ArchetypeTree, Threshold: math.NaN()}}
		},
	}
	for i, mutate := range bad {
		cfg := flatConfig()
		mutate(&cfg)
		if _, err := New(cfg, noise.Constant(0.5), entropy.NewSeeded(1), NewCollector(nil)); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("case %d: err = %v, want ErrInvalidConfig", i, err)
		}
	}
}

func TestBands_Monotonic(t *testing.T) {
	cfg := DefaultConfig()
	bands := cfg.sortedBands()
	threshold := func(i int) float64 {
		if i < 0 {
			return math.Inf(-1)
		}
		return bands[i].MinFraction
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		h1 := rng.Float64() * cfg.MaxHeight * 1.1
		h2 := rng.Float64() * cfg.MaxHeight * 1.1
		if h1 > h2 {
			h1, h2 = h2, h1
		}
		b1 := bands.Classify(h1, cfg.MaxHeight)
		b2 := bands.Classify(h2, cfg.MaxHeight)
		if threshold(b1) > threshold(b2) {
			t.Fatalf("h1=%v band %d threshold above h2=%v band %d", h1, b1, h2, b2)
		}
	}
}

func TestBands_SortedRegardlessOfInputOrder(t *testing.T) {
	cfg := flatConfig()
	cfg.Bands = []Band{
		{MinFraction: 0.3, Archetype: world.ArchetypeRock},
		{MinFraction: 0.8, Archetype: world.ArchetypeSnow},
	}
	bands := cfg.sortedBands()
	if bands.Classify(0.9*cfg.MaxHeight, cfg.MaxHeight) != 0 || bands[0].Archetype != world.ArchetypeSnow {
		t.Fatal("highest band should be evaluated first")
	}
	if bands.Classify(0.1*cfg.MaxHeight, cfg.MaxHeight) != -1 {
		t.Fatal("low height should fall back")
	}
}

func TestVerify_DetectsOverrun(t *testing.T) {
	r := newResult(flatConfig())
	r.Capacity[world.ArchetypeGround] = 2
	r.Used[world.ArchetypeGround] = 3
	if err := r.Verify(); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestHeight_Curve(t *testing.T) {
	cfg := DefaultConfig()
	g, err := New(cfg, noise.Constant(0), entropy.NewSeeded(1), NewCollector(nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Height(0.1); ok {
		t.Fatal("sample below the bias should be rejected")
	}
	h, ok := g.Height(1)
	want := math.Pow(0.875*1.2, 2.5)*70 + 0.25
	if !ok || math.Abs(h-want) > 1e-9 {
		t.Fatalf("Height(1) = %v, %v; want %v", h, ok, want)
	}
}

func TestGenerate_LogsSummaryAndRejections(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := flatConfig()
	cfg.Capacity[world.ArchetypeGround] = 4
	generate(t, cfg, noise.Constant(0.5), entropy.NewSeeded(1))

	out := buf.String()
	for _, want := range []string{
		`level=INFO msg="terrain pass complete"`,
		"used.Ground=4",
		"level=DEBUG",
		"reason=exhausted",
		"reason=out_of_radius",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q", want)
		}
	}
}
