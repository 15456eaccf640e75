package world

import (
	"fmt"
	"strings"
)

// Archetype is a biome or feature category. It selects the instance buffer
// and visual treatment a placement receives.
type Archetype uint8

const (
	ArchetypeNone   Archetype = iota // Tile is skipped; never placed
	ArchetypeGround                  // Plain ground tile
	ArchetypeGrass                   // Grass tile
	ArchetypeSand                    // Sand tile, usually the lowest band
	ArchetypeSnow                    // Snow tile
	ArchetypeRock                    // Rocky tile
	ArchetypeMetal                   // Elevated metal tile
	ArchetypePillar                  // Tall pillar, rare by construction
	ArchetypeSpike                   // Decoration: cone spike
	ArchetypePebble                  // Decoration: small rock
	ArchetypeTree                    // Decoration: tree
)

var archetypeNames = [...]string{
	ArchetypeNone:   "None",
	ArchetypeGround: "Ground",
	ArchetypeGrass:  "Grass",
	ArchetypeSand:   "Sand",
	ArchetypeSnow:   "Snow",
	ArchetypeRock:   "Rock",
	ArchetypeMetal:  "Metal",
	ArchetypePillar: "Pillar",
	ArchetypeSpike:  "Spike",
	ArchetypePebble: "Pebble",
	ArchetypeTree:   "Tree",
}

// Archetypes lists every archetype that can receive placements.
var Archetypes = []Archetype{
	ArchetypeGround,
	ArchetypeGrass,
	ArchetypeSand,
	ArchetypeSnow,
	ArchetypeRock,
	ArchetypeMetal,
	ArchetypePillar,
	ArchetypeSpike,
	ArchetypePebble,
	ArchetypeTree,
}

// String returns a human-readable name for an archetype.
func (a Archetype) String() string {
	if int(a) < len(archetypeNames) {
		return archetypeNames[a]
	}
	return "Unknown"
}

// IsDecoration reports whether the archetype sits on top of a tile rather
// than being a tile itself.
func (a Archetype) IsDecoration() bool {
	return a == ArchetypeSpike || a == ArchetypePebble || a == ArchetypeTree
}

// ParseArchetype resolves a case-insensitive archetype name.
func ParseArchetype(s string) (Archetype, error) {
	for i, name := range archetypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Archetype(i), nil
		}
	}
	return ArchetypeNone, fmt.Errorf("unknown archetype %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Archetype) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Archetype) UnmarshalText(b []byte) error {
	v, err := ParseArchetype(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
