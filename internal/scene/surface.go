package scene

import (
	"image"
	"math"
	"sync"

	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/render"
)

// Surface is the ice plane under the terrain. Its texture is a baked noise
// field read with mirrored wrapping; Time drives the texture drift.
type Surface struct {
	Resolution int
	Radius     float64 // Disc radius, twice the world radius
	Depth      float64 // Plane height below the tiles
	Repeat     float64
	Material   render.Material

	field [][]float64
	image *image.Gray

	mu   sync.RWMutex
	time float64
}

// NewSurface bakes the texture from s at the given resolution.
func NewSurface(s noise.Sampler, resolution int, worldRadius float64) *Surface {
	return &Surface{
		Resolution: resolution,
		Radius:     worldRadius * 2,
		Depth:      -0.25,
		Repeat:     1,
		Material:   render.Material{Color: 0xffffff, Metalness: 1, Roughness: 0.82},
		field:      noise.Bake(s, resolution),
		image:      noise.BakeImage(s, resolution),
	}
}

// Update sets the time uniform.
func (s *Surface) Update(time float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time = time
}

// Time returns the current time uniform.
func (s *Surface) Time() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.time
}

// Drift returns the texture offset applied at the current time.
func (s *Surface) Drift() float64 {
	return math.Abs(math.Sin(s.Time() * 0.01))
}

// Rotation returns the texel rotation at (u, v), read from the baked field.
// Coordinates outside [0, 1) mirror back into the texture.
func (s *Surface) Rotation(u, v float64) float64 {
	if s.Resolution <= 0 {
		return 0
	}
	i := mirror(v, s.Resolution)
	j := mirror(u, s.Resolution)
	return s.field[i][j]
}

// Image returns the baked texture.
func (s *Surface) Image() *image.Gray {
	return s.image
}

func mirror(t float64, n int) int {
	period := 2 * n
	k := int(math.Floor(t*float64(n))) % period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - 1 - k
	}
	return k
}
