// Package render holds the reference rendering collaborator: fixed-size
// per-archetype instance buffers that turn placements into 4x4 transforms,
// and the material parameters each buffer is drawn with.
package render

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/world"
)

// ErrSlotOutOfRange is returned when a placement addresses a slot past the
// end of its buffer.
var ErrSlotOutOfRange = errors.New("instance slot out of range")

// Buffer is a pre-sized instance buffer for one archetype.
type Buffer struct {
	Archetype world.Archetype
	Matrices  []mgl32.Mat4
	Count     int // Number of leading slots written
}

// InstanceBuffers implements terrain.Sink over fixed-capacity buffers.
type InstanceBuffers struct {
	mu      sync.RWMutex
	buffers map[world.Archetype]*Buffer
}

// NewInstanceBuffers allocates one buffer per archetype with the given
// capacities. Archetypes not listed get an empty buffer.
func NewInstanceBuffers(capacity map[world.Archetype]int) *InstanceBuffers {
	ib := &InstanceBuffers{buffers: make(map[world.Archetype]*Buffer)}
	for _, a := range world.Archetypes {
		n := capacity[a]
		if n < 0 {
			n = 0
		}
		ib.buffers[a] = &Buffer{Archetype: a, Matrices: make([]mgl32.Mat4, n)}
	}
	return ib
}

// Capacity returns the fixed size of a's buffer.
func (ib *InstanceBuffers) Capacity(a world.Archetype) int {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	if b, ok := ib.buffers[a]; ok {
		return len(b.Matrices)
	}
	return 0
}

// Submit writes the placement's transform into its slot.
func (ib *InstanceBuffers) Submit(p terrain.Placement) error {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	b, ok := ib.buffers[p.Archetype]
	if !ok || p.Slot < 0 || p.Slot >= len(b.Matrices) {
		return fmt.Errorf("%w: %s slot %d", ErrSlotOutOfRange, p.Archetype, p.Slot)
	}
	b.Matrices[p.Slot] = Transform(p)
	if p.Slot+1 > b.Count {
		b.Count = p.Slot + 1
	}
	return nil
}

// Buffer returns a copy of the written part of a's buffer.
func (ib *InstanceBuffers) Buffer(a world.Archetype) Buffer {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	b, ok := ib.buffers[a]
	if !ok {
		return Buffer{Archetype: a}
	}
	out := Buffer{Archetype: a, Count: b.Count, Matrices: make([]mgl32.Mat4, b.Count)}
	copy(out.Matrices, b.Matrices[:b.Count])
	return out
}

// Transform builds the instance matrix for a placement. Tiles are unit
// prisms stretched to their height and lifted so the base sits on the
// ground; decorations sit on the tile top with jitter derived from the seed.
func Transform(p terrain.Placement) mgl32.Mat4 {
	x, z, h := float32(p.Position.X), float32(p.Position.Z), float32(p.Height)
	if !p.Decoration {
		return mgl32.Translate3D(x, h*0.5, z).Mul4(mgl32.Scale3D(1, h, 1))
	}

	jitter := rand.New(rand.NewSource(int64(math.Float64bits(p.Seed))))
	switch p.Archetype {
	case world.ArchetypeSpike:
		dx, dz := float32(jitter.Float64()*0.5), float32(jitter.Float64()*0.5)
		tilt := float32(jitter.Float64() - 0.5)
		return mgl32.Translate3D(x+dx, h, z+dz).Mul4(mgl32.HomogRotate3DZ(tilt))
	case world.ArchetypePebble:
		s := float32(jitter.Float64() * 1.5)
		dx, dz := float32(jitter.Float64()*0.4), float32(jitter.Float64()*0.4)
		return mgl32.Translate3D(x+dx, h, z+dz).Mul4(mgl32.Scale3D(s, s, s))
	case world.ArchetypeTree:
		s := float32((0.65 + jitter.Float64()*0.35) * 0.3)
		return mgl32.Translate3D(x, h, z).Mul4(mgl32.Scale3D(s, s, s))
	default:
		return mgl32.Translate3D(x, h, z)
	}
}
