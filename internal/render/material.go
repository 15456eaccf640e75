package render

import "github.com/vreezy/hexsnow/internal/world"

// Material holds the surface parameters an instance buffer is drawn with.
type Material struct {
	Color     uint32  `json:"color"`
	Metalness float64 `json:"metalness"`
	Roughness float64 `json:"roughness"`
}

// DefaultMaterials returns the stock look for every archetype.
func DefaultMaterials() map[world.Archetype]Material {
	return map[world.Archetype]Material{
		world.ArchetypeGround: {Color: 0xa18ca1, Metalness: 0.8, Roughness: 0.7},
		world.ArchetypeGrass:  {Color: 0xffffff, Metalness: 0.4, Roughness: 0.8},
		world.ArchetypeSand:   {Color: 0xffffff, Metalness: 0.0, Roughness: 1.0},
		world.ArchetypeSnow:   {Color: 0xf2f6ff, Metalness: 0.1, Roughness: 0.9},
		world.ArchetypeRock:   {Color: 0x8c8c94, Metalness: 0.3, Roughness: 0.9},
		world.ArchetypeMetal:  {Color: 0xc0c0d0, Metalness: 0.9, Roughness: 0.35},
		world.ArchetypePillar: {Color: 0x9042f5, Metalness: 0.0, Roughness: 1.0},
		world.ArchetypeSpike:  {Color: 0xff0000, Metalness: 0.0, Roughness: 1.0},
		world.ArchetypePebble: {Color: 0xffffff, Metalness: 0.0, Roughness: 1.0},
		world.ArchetypeTree:   {Color: 0xd1623d, Metalness: 0.0, Roughness: 1.0},
	}
}
