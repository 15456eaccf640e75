// Package noise provides the deterministic height field that terrain
// generation samples. Samples are normalized to the unit interval.
package noise

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/aquilax/go-perlin"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// Sampler is a pure 2D height field. Implementations must return the same
// value for the same input and be safe for concurrent use.
type Sampler interface {
	Sample(x, y float64) float64
}

// SamplerFunc adapts an ordinary function to the Sampler interface.
type SamplerFunc func(x, y float64) float64

// Sample calls f(x, y).
func (f SamplerFunc) Sample(x, y float64) float64 {
	return f(x, y)
}

// Constant returns a sampler that yields v everywhere.
func Constant(v float64) Sampler {
	return SamplerFunc(func(float64, float64) float64 { return v })
}

// Kind selects the noise backend.
type Kind string

const (
	KindSimplex Kind = "simplex"
	KindPerlin  Kind = "perlin"
)

// Config holds height field parameters.
type Config struct {
	Seed        int64   `yaml:"seed" json:"seed"`               // 0 = fresh seed per process
	Kind        Kind    `yaml:"kind" json:"kind"`               // simplex (default) or perlin
	Octaves     int     `yaml:"octaves" json:"octaves"`         // Layers of detail (default 1)
	Persistence float64 `yaml:"persistence" json:"persistence"` // Amplitude falloff per octave
	Lacunarity  float64 `yaml:"lacunarity" json:"lacunarity"`   // Frequency growth per octave
}

// DefaultConfig returns a single-octave simplex field with a fresh seed.
func DefaultConfig() Config {
	return Config{
		Kind:        KindSimplex,
		Octaves:     1,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

// Field is a seeded, multi-octave noise field normalized to [0, 1].
type Field struct {
	cfg  Config
	seed int64
	eval func(x, y float64) float64 // single octave, already in [0, 1]
}

// New creates a height field. A zero seed picks a fresh one, so two
// unseeded fields in one process still differ.
func New(cfg Config) (*Field, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	if cfg.Persistence <= 0 {
		cfg.Persistence = 0.5
	}
	if cfg.Lacunarity <= 0 {
		cfg.Lacunarity = 2
	}

	f := &Field{cfg: cfg, seed: seed}
	switch cfg.Kind {
	case "", KindSimplex:
		n := opensimplex.NewNormalized(seed)
		f.eval = func(x, y float64) float64 {
			return clamp01(n.Eval2(x, y))
		}
	case KindPerlin:
		p := perlin.NewPerlin(2, 2, 3, seed)
		f.eval = func(x, y float64) float64 {
			return clamp01((p.Noise2D(x, y) + 1) * 0.5)
		}
	default:
		return nil, fmt.Errorf("unknown noise kind %q", cfg.Kind)
	}
	return f, nil
}

// Seed returns the effective seed, including one picked at construction.
func (f *Field) Seed() int64 {
	return f.seed
}

// Sample returns the field value at (x, y), in [0, 1].
func (f *Field) Sample(x, y float64) float64 {
	if f.cfg.Octaves == 1 {
		return f.eval(x, y)
	}
	return octaveNoise(f.eval, x, y, f.cfg.Octaves, f.cfg.Persistence, f.cfg.Lacunarity)
}

// octaveNoise layers multiple frequencies. The weighted mean of unit-interval
// samples stays in the unit interval.
func octaveNoise(eval func(x, y float64) float64, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += eval(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	return total / maxVal
}

// Bake samples s on a resolution×resolution grid over [0,1)×[0,1).
// Row i holds y = i/resolution; column j holds x = j/resolution.
func Bake(s Sampler, resolution int) [][]float64 {
	if resolution <= 0 {
		return nil
	}
	out := make([][]float64, resolution)
	step := 1.0 / float64(resolution)
	for i := range out {
		row := make([]float64, resolution)
		for j := range row {
			row[j] = s.Sample(float64(j)*step, float64(i)*step)
		}
		out[i] = row
	}
	return out
}

// Bake samples the field on a normalized grid. See the package-level Bake.
func (f *Field) Bake(resolution int) [][]float64 {
	return Bake(f, resolution)
}

// BakeImage renders a baked field as an 8-bit grayscale image, the form the
// surface distortion effect consumes as a texture.
func BakeImage(s Sampler, resolution int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, max(resolution, 0), max(resolution, 0)))
	for y, row := range Bake(s, resolution) {
		for x, v := range row {
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(clamp01(v) * 255))})
		}
	}
	return img
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
