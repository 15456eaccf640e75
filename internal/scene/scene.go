// Package scene composes one generated terrain with its per-frame effects:
// the ice surface and the snowfall. Update advances effects only; terrain
// changes only through Regenerate.
package scene

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vreezy/hexsnow/internal/entropy"
	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/render"
	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/weather"
)

// Options configures a scene.
type Options struct {
	Terrain terrain.Config
	Noise   noise.Config
	Snow    weather.SnowConfig

	SurfaceResolution int   // Ice texture size (0 = 256)
	SurfaceSeed       int64 // Ice texture noise seed (0 = 1)
	SnowSeed          int64 // 0 = non-reproducible flakes

	Entropy *entropy.Client // Optional decoration entropy when unseeded
	Weather *weather.Client // Optional live conditions for snow intensity
	Record  terrain.Sink    // Optional extra sink; its capacities also bound each pass

	// Initial, when set, is installed as the first pass instead of
	// generating one. InitialSeed is the noise seed it was generated with.
	Initial     *terrain.Result
	InitialSeed int64
}

// Generation identifies one installed terrain pass.
type Generation struct {
	Pass   int
	Seed   int64 // Noise seed of the pass's height field
	Result *terrain.Result
}

// Scene holds the current terrain pass and its effects.
type Scene struct {
	mu sync.RWMutex

	opts    Options
	field   *noise.Field
	buffers *render.InstanceBuffers
	result  *terrain.Result
	pass    int

	surface *Surface
	snow    *weather.Snowfall
	time    float64
}

// New builds a scene and runs its first terrain pass.
func New(opts Options) (*Scene, error) {
	if opts.SurfaceResolution <= 0 {
		opts.SurfaceResolution = 256
	}
	if opts.SurfaceSeed == 0 {
		opts.SurfaceSeed = 1
	}
	if opts.Snow.Radius <= 0 {
		opts.Snow.Radius = opts.Terrain.WorldRadius
	}

	iceNoise, err := noise.New(noise.Config{Seed: opts.SurfaceSeed, Kind: noise.KindSimplex, Octaves: 1})
	if err != nil {
		return nil, fmt.Errorf("ice texture: %w", err)
	}

	s := &Scene{
		opts:    opts,
		surface: NewSurface(iceNoise, opts.SurfaceResolution, opts.Terrain.WorldRadius),
		snow:    weather.NewSnowfall(opts.Snow, entropy.Select(opts.SnowSeed, nil)),
	}
	if opts.Initial != nil {
		if _, err := s.Install(opts.Initial, opts.InitialSeed); err != nil {
			return nil, err
		}
		return s, nil
	}
	if _, err := s.Regenerate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Regenerate runs a new terrain pass with a fresh height field (unless the
// noise seed is fixed) and replaces the current result.
func (s *Scene) Regenerate() (Generation, error) {
	field, err := noise.New(s.opts.Noise)
	if err != nil {
		return Generation{}, fmt.Errorf("height field: %w", err)
	}

	buffers := render.NewInstanceBuffers(s.opts.Terrain.Capacity)
	var sink terrain.Sink = buffers
	if s.opts.Record != nil {
		sink = terrain.Multi{buffers, s.opts.Record}
	}
	rng := entropy.Select(s.opts.Terrain.DecorationSeed, s.opts.Entropy)
	gen, err := terrain.New(s.opts.Terrain, field, rng, sink)
	if err != nil {
		return Generation{}, err
	}
	res, err := gen.Generate()
	if err != nil {
		return Generation{}, fmt.Errorf("generate: %w", err)
	}
	if err := res.Verify(); err != nil {
		return Generation{}, err
	}
	return s.swap(field, buffers, res), nil
}

// Install replaces the current pass with a previously generated result,
// rebuilding its instance buffers and the height field of noiseSeed.
func (s *Scene) Install(res *terrain.Result, noiseSeed int64) (Generation, error) {
	if err := res.Verify(); err != nil {
		return Generation{}, err
	}
	nc := s.opts.Noise
	nc.Seed = noiseSeed
	field, err := noise.New(nc)
	if err != nil {
		return Generation{}, fmt.Errorf("height field: %w", err)
	}

	buffers := render.NewInstanceBuffers(res.Capacity)
	for _, p := range res.Placements {
		if err := buffers.Submit(p); err != nil {
			return Generation{}, fmt.Errorf("install: %w", err)
		}
	}
	return s.swap(field, buffers, res), nil
}

func (s *Scene) swap(field *noise.Field, buffers *render.InstanceBuffers, res *terrain.Result) Generation {
	s.mu.Lock()
	s.field = field
	s.buffers = buffers
	s.result = res
	s.pass++
	g := Generation{Pass: s.pass, Seed: field.Seed(), Result: res}
	s.mu.Unlock()

	slog.Info("terrain installed", "pass", g.Pass, "seed", g.Seed, "placements", len(res.Placements))
	return g
}

// Update advances the surface and snowfall to the given time in seconds.
func (s *Scene) Update(time float64) {
	s.mu.Lock()
	s.time = time
	s.mu.Unlock()
	s.surface.Update(time)
	s.snow.Update(time)
}

// RefreshWeather scales the snowfall by live conditions. Without a weather
// client it is a no-op.
func (s *Scene) RefreshWeather() error {
	if s.opts.Weather == nil {
		return nil
	}
	cond, err := s.opts.Weather.Fetch()
	if err != nil {
		return err
	}
	s.snow.SetIntensity(cond.SnowIntensity())
	return nil
}

// Current returns the current pass, its seed and result read together.
func (s *Scene) Current() Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Generation{Pass: s.pass, Seed: s.field.Seed(), Result: s.result}
}

// Result returns the current terrain pass.
func (s *Scene) Result() *terrain.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Pass returns how many terrain passes have completed.
func (s *Scene) Pass() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pass
}

// Field returns the height field of the current pass.
func (s *Scene) Field() *noise.Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.field
}

// Buffers returns the instance buffers of the current pass.
func (s *Scene) Buffers() *render.InstanceBuffers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffers
}

// Time returns the time of the last Update.
func (s *Scene) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

// Surface returns the ice surface.
func (s *Scene) Surface() *Surface {
	return s.surface
}

// Snow returns the snowfall.
func (s *Scene) Snow() *weather.Snowfall {
	return s.snow
}

// Options returns the scene configuration.
func (s *Scene) Options() Options {
	return s.opts
}
