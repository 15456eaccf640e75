package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/world"
)

// DefaultPreset is used when neither the caller nor the file names one.
const DefaultPreset = "spires"

var presets = map[string]func() terrain.Config{
	"spires": terrain.DefaultConfig,
	"meadow": meadow,
	"tundra": tundra,
}

// Presets returns the preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the full configuration for a named preset.
func Preset(name string) (Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultPreset
	}
	build, ok := presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q (have %s)", ErrUnknownPreset, name, strings.Join(Presets(), ", "))
	}
	cfg := Config{
		Preset:  name,
		Noise:   noise.DefaultConfig(),
		Terrain: SpecFromTerrain(build()),
	}
	cfg.Normalize()
	return cfg, nil
}

// meadow is rolling ground broken by a few doubled-height pillars.
func meadow() terrain.Config {
	return terrain.Config{
		WorldRadius:   300,
		TileBound:     100,
		MaxHeight:     70,
		Exponent:      3.2,
		Bias:          -0.125,
		Scale:         1,
		SampleSpace:   terrain.SampleTile,
		SampleDivisor: 10,
		Bands: []terrain.Band{
			{MinFraction: 0.45, Archetype: world.ArchetypePillar, HeightScale: 2},
		},
		Fallback: world.ArchetypeGround,
		Cascade:  true,
		Capacity: map[world.Archetype]int{
			world.ArchetypePillar: 100,
			world.ArchetypeGround: 300 * 460,
			world.ArchetypePebble: 1000,
		},
		Decorations: []terrain.Decoration{
			{On: world.ArchetypeGround, Place: world.ArchetypePebble, Threshold: 0.95},
		},
		Workers: 1,
	}
}

// tundra is low snowfields over grass and sand, sampled in world space.
func tundra() terrain.Config {
	return terrain.Config{
		WorldRadius:   300,
		TileBound:     100,
		MaxHeight:     60,
		Exponent:      4.5,
		Bias:          0,
		Scale:         1.1,
		Offset:        0.5,
		SampleSpace:   terrain.SampleWorld,
		SampleDivisor: 170,
		Bands: []terrain.Band{
			{MinFraction: 0.6, Archetype: world.ArchetypeSnow},
			{MinFraction: 0.35, Archetype: world.ArchetypeRock},
			{MinFraction: 0.12, Archetype: world.ArchetypeGrass},
		},
		Fallback: world.ArchetypeSand,
		Cascade:  true,
		Capacity: map[world.Archetype]int{
			world.ArchetypeSnow:  300 * 460,
			world.ArchetypeRock:  300 * 460,
			world.ArchetypeGrass: 300 * 460,
			world.ArchetypeSand:  300 * 460,
			world.ArchetypeTree:  300 * 6,
		},
		Decorations: []terrain.Decoration{
			{On: world.ArchetypeSnow, Place: world.ArchetypeTree, Threshold: 0.99},
			{On: world.ArchetypeGrass, Place: world.ArchetypeTree, Threshold: 0.99},
		},
		Workers: 1,
	}
}
