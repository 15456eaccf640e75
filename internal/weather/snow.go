package weather

import (
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vreezy/hexsnow/internal/entropy"
)

// Particle is one snowflake.
type Particle struct {
	Position mgl32.Vec3 `json:"position"`
	Velocity mgl32.Vec3 `json:"velocity"`
	Rotation float64    `json:"rotation"`
	Size     float64    `json:"size"`
	Alpha    float64    `json:"alpha"`
	Life     float64    `json:"life"`
	MaxLife  float64    `json:"max_life"`
}

// SnowConfig holds snowfall parameters.
type SnowConfig struct {
	Radius  float64 // Horizontal extent of the spawn square
	Rate    float64 // Flakes per second at intensity 1 (0 = Radius)
	Ceiling float64 // Spawn height scale (0 = 100)
}

// Snowfall is the ambient particle system. Update advances it to an
// absolute time; it never touches terrain.
type Snowfall struct {
	mu sync.Mutex

	cfg       SnowConfig
	rng       entropy.Source
	alpha     Spline
	camera    mgl32.Vec3
	intensity float64

	particles []Particle
	previous  float64
	pending   float64 // Unspent spawn time
}

// NewSnowfall creates an empty snowfall.
func NewSnowfall(cfg SnowConfig, rng entropy.Source) *Snowfall {
	if cfg.Rate <= 0 {
		cfg.Rate = cfg.Radius
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 100
	}
	s := &Snowfall{cfg: cfg, rng: rng, intensity: 1}
	// Fade in, hold, fade out over a flake's life.
	s.alpha.AddPoint(0.0, 0.0)
	s.alpha.AddPoint(0.35, 1.0)
	s.alpha.AddPoint(0.65, 1.0)
	s.alpha.AddPoint(1.0, 0.0)
	return s
}

// SetIntensity scales the spawn rate. Negative values are treated as 0.
func (s *Snowfall) SetIntensity(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intensity = math.Max(v, 0)
}

// SetCamera sets the eye position used for back-to-front ordering.
func (s *Snowfall) SetCamera(eye mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = eye
}

// Update advances the system to the given time in seconds.
func (s *Snowfall) Update(time float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time - s.previous
	if elapsed < 0 {
		elapsed = 0
	}
	s.spawn(elapsed)
	s.advance(elapsed)
	s.previous = time
}

func (s *Snowfall) spawn(elapsed float64) {
	rate := s.cfg.Rate * s.intensity
	if rate <= 0 {
		return
	}
	s.pending += elapsed
	n := int(math.Floor(s.pending * rate))
	s.pending -= float64(n) / rate

	r := s.cfg.Radius
	for i := 0; i < n; i++ {
		life := (s.rng.Float()*0.75 + 0.4) * 10.0
		s.particles = append(s.particles, Particle{
			Position: mgl32.Vec3{
				float32((s.rng.Float() - 0.5) * r),
				float32((s.rng.Float() + 0.15) * s.cfg.Ceiling),
				float32((s.rng.Float() - 0.5) * r),
			},
			Velocity: mgl32.Vec3{0, float32((s.rng.Float() + 0.25) * -4), 0},
			Rotation: s.rng.Float() * 2.0 * math.Pi,
			Size:     s.rng.Float() + 0.25,
			Alpha:    1.0,
			Life:     life,
			MaxLife:  life,
		})
	}
}

func (s *Snowfall) advance(elapsed float64) {
	alive := s.particles[:0]
	for _, p := range s.particles {
		p.Life -= elapsed
		if p.Life > 0 {
			alive = append(alive, p)
		}
	}
	s.particles = alive

	dt := float32(elapsed)
	for i := range s.particles {
		p := &s.particles[i]
		t := 1.0 - p.Life/p.MaxLife

		p.Rotation += elapsed * 0.5
		p.Alpha = s.alpha.Get(t)
		p.Position = p.Position.Add(p.Velocity.Mul(dt))

		// Drag never reverses a component; sway follows the flake's height.
		drag := p.Velocity.Mul(dt * 0.1)
		drag[0] = clampDrag(drag[0], p.Velocity[0]) + float32(math.Sin(float64(p.Position[1]))*0.1)
		drag[1] = clampDrag(drag[1], p.Velocity[1])
		drag[2] = clampDrag(drag[2], p.Velocity[2])
		p.Velocity = p.Velocity.Sub(drag)
	}

	eye := s.camera
	sort.SliceStable(s.particles, func(i, j int) bool {
		return s.particles[i].Position.Sub(eye).Len() > s.particles[j].Position.Sub(eye).Len()
	})
}

func clampDrag(d, v float32) float32 {
	m := float32(math.Min(math.Abs(float64(d)), math.Abs(float64(v))))
	switch {
	case v > 0:
		return m
	case v < 0:
		return -m
	default:
		return 0
	}
}

// Particles returns a snapshot of the live flakes, farthest first.
func (s *Snowfall) Particles() []Particle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Particle, len(s.particles))
	copy(out, s.particles)
	return out
}

// Len returns the number of live flakes.
func (s *Snowfall) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.particles)
}
