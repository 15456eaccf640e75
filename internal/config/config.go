// Package config loads hexsnow configuration: a named preset, optionally
// overlaid by a YAML file and then by environment variables.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/world"
)

// ErrUnknownPreset is returned for a preset name with no definition.
var ErrUnknownPreset = errors.New("unknown preset")

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Config is the full application configuration.
type Config struct {
	Preset  string       `yaml:"preset"`
	Noise   noise.Config `yaml:"noise"`
	Terrain TerrainSpec  `yaml:"terrain"`
	Snow    SnowSpec     `yaml:"snow"`
	Server  ServerSpec   `yaml:"server"`
	Storage StorageSpec  `yaml:"storage"`

	// Secrets come from the environment only.
	AdminKey     string `yaml:"-"`
	RandomOrgKey string `yaml:"-"`
	WeatherKey   string `yaml:"-"`
}

// TerrainSpec is the file form of terrain.Config with archetypes by name.
type TerrainSpec struct {
	WorldRadius    float64          `yaml:"world_radius"`
	TileBound      int              `yaml:"tile_bound"`
	MaxHeight      float64          `yaml:"max_height"`
	Exponent       float64          `yaml:"exponent"`
	Bias           float64          `yaml:"bias"`
	Scale          float64          `yaml:"scale"`
	Offset         float64          `yaml:"offset"`
	SampleSpace    string           `yaml:"sample_space"`
	SampleDivisor  float64          `yaml:"sample_divisor"`
	Bands          []BandSpec       `yaml:"bands"`
	Fallback       string           `yaml:"fallback"`
	Cascade        bool             `yaml:"cascade"`
	Capacity       map[string]int   `yaml:"capacity"`
	Decorations    []DecorationSpec `yaml:"decorations"`
	DecorationSeed int64            `yaml:"decoration_seed"`
	Workers        int              `yaml:"workers"`
}

type BandSpec struct {
	MinFraction float64 `yaml:"min_fraction"`
	Archetype   string  `yaml:"archetype"`
	HeightScale float64 `yaml:"height_scale,omitempty"`
}

type DecorationSpec struct {
	On        string  `yaml:"on"`
	Place     string  `yaml:"place"`
	Threshold float64 `yaml:"threshold"`
}

// SnowSpec configures the snowfall. A zero rate follows the world radius.
type SnowSpec struct {
	Rate            float64 `yaml:"rate"`
	Ceiling         float64 `yaml:"ceiling"`
	Seed            int64   `yaml:"seed"`
	WeatherLocation string  `yaml:"weather_location"`
}

type ServerSpec struct {
	Addr                string   `yaml:"addr"`
	CORSOrigins         []string `yaml:"cors_origins"`
	RegeneratePerMinute int      `yaml:"regenerate_per_minute"`
	FrameRate           int      `yaml:"frame_rate"`
}

type StorageSpec struct {
	DBPath      string `yaml:"db_path"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Load builds a configuration. The preset argument wins over the file's
// preset key; both empty means DefaultPreset. An empty path skips the file.
func Load(path, preset string) (Config, error) {
	var b []byte
	if strings.TrimSpace(path) != "" {
		var err error
		b, err = os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := validateSchema(b); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		if preset == "" {
			var head struct {
				Preset string `yaml:"preset"`
			}
			if err := yaml.Unmarshal(b, &head); err != nil {
				return Config{}, fmt.Errorf("%s: %w", path, err)
			}
			preset = head.Preset
		}
	}

	cfg, err := Preset(preset)
	if err != nil {
		return Config{}, err
	}
	if b != nil {
		name := cfg.Preset
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
		// The overlay may carry its own preset key; the resolved one built cfg.
		cfg.Preset = name
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	if _, err := cfg.TerrainConfig(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateSchema checks a YAML document against the embedded JSON Schema.
func validateSchema(b []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile config schema: %w", schemaErr)
	}

	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON value types.
	j, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config is not JSON-compatible: %w", err)
	}
	var v any
	if err := json.Unmarshal(j, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// ApplyEnv overlays environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("HEXSNOW_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Noise.Seed = seed
			c.Terrain.DecorationSeed = seed
		} else {
			slog.Warn("ignoring invalid HEXSNOW_SEED", "value", v, "error", err)
		}
	}
	if v := os.Getenv("HEXSNOW_ADMIN_KEY"); v != "" {
		c.AdminKey = v
	}
	if v := os.Getenv("HEXSNOW_RANDOM_ORG_KEY"); v != "" {
		c.RandomOrgKey = v
	}
	if v := os.Getenv("HEXSNOW_WEATHER_KEY"); v != "" {
		c.WeatherKey = v
	}
	if v := os.Getenv("HEXSNOW_WEATHER_LOCATION"); v != "" {
		c.Snow.WeatherLocation = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
}

// Normalize fills zero-valued operational settings.
func (c *Config) Normalize() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RegeneratePerMinute <= 0 {
		c.Server.RegeneratePerMinute = 6
	}
	if c.Server.FrameRate <= 0 {
		c.Server.FrameRate = 60
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "hexsnow.db"
	}
	if c.Noise.Kind == "" {
		c.Noise.Kind = noise.KindSimplex
	}
	if c.Noise.Octaves <= 0 {
		c.Noise.Octaves = 1
	}

	// Capacity keys are case-insensitive; a file key spelled differently
	// from the preset's lowercase key still overrides it.
	caps := make(map[string]int, len(c.Terrain.Capacity))
	for k, n := range c.Terrain.Capacity {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, seen := caps[lk]; seen && k == lk {
			continue
		}
		caps[lk] = n
	}
	c.Terrain.Capacity = caps
}

// TerrainConfig converts the terrain section and validates it.
func (c *Config) TerrainConfig() (terrain.Config, error) {
	return c.Terrain.Build()
}

// Build resolves archetype names and validates the result.
func (s TerrainSpec) Build() (terrain.Config, error) {
	cfg := terrain.Config{
		WorldRadius:    s.WorldRadius,
		TileBound:      s.TileBound,
		MaxHeight:      s.MaxHeight,
		Exponent:       s.Exponent,
		Bias:           s.Bias,
		Scale:          s.Scale,
		Offset:         s.Offset,
		SampleSpace:    terrain.SampleSpace(s.SampleSpace),
		SampleDivisor:  s.SampleDivisor,
		Cascade:        s.Cascade,
		Capacity:       make(map[world.Archetype]int, len(s.Capacity)),
		DecorationSeed: s.DecorationSeed,
		Workers:        s.Workers,
	}

	var err error
	if cfg.Fallback, err = parseArchetype("fallback", s.Fallback); err != nil {
		return terrain.Config{}, err
	}
	for i, b := range s.Bands {
		a, err := parseArchetype(fmt.Sprintf("bands[%d]", i), b.Archetype)
		if err != nil {
			return terrain.Config{}, err
		}
		cfg.Bands = append(cfg.Bands, terrain.Band{MinFraction: b.MinFraction, Archetype: a, HeightScale: b.HeightScale})
	}
	for name, n := range s.Capacity {
		a, err := parseArchetype("capacity", name)
		if err != nil {
			return terrain.Config{}, err
		}
		cfg.Capacity[a] = n
	}
	for i, d := range s.Decorations {
		on, err := parseArchetype(fmt.Sprintf("decorations[%d].on", i), d.On)
		if err != nil {
			return terrain.Config{}, err
		}
		place, err := parseArchetype(fmt.Sprintf("decorations[%d].place", i), d.Place)
		if err != nil {
			return terrain.Config{}, err
		}
		cfg.Decorations = append(cfg.Decorations, terrain.Decoration{On: on, Place: place, Threshold: d.Threshold})
	}

	if err := cfg.Validate(); err != nil {
		return terrain.Config{}, err
	}
	return cfg, nil
}

func parseArchetype(field, name string) (world.Archetype, error) {
	a, err := world.ParseArchetype(name)
	if err != nil {
		return world.ArchetypeNone, fmt.Errorf("%w: %s: %v", terrain.ErrInvalidConfig, field, err)
	}
	return a, nil
}

// SpecFromTerrain converts a terrain.Config to its file form.
func SpecFromTerrain(cfg terrain.Config) TerrainSpec {
	s := TerrainSpec{
		WorldRadius:    cfg.WorldRadius,
		TileBound:      cfg.TileBound,
		MaxHeight:      cfg.MaxHeight,
		Exponent:       cfg.Exponent,
		Bias:           cfg.Bias,
		Scale:          cfg.Scale,
		Offset:         cfg.Offset,
		SampleSpace:    string(cfg.SampleSpace),
		SampleDivisor:  cfg.SampleDivisor,
		Fallback:       cfg.Fallback.String(),
		Cascade:        cfg.Cascade,
		Capacity:       make(map[string]int, len(cfg.Capacity)),
		DecorationSeed: cfg.DecorationSeed,
		Workers:        cfg.Workers,
	}
	for _, b := range cfg.Bands {
		s.Bands = append(s.Bands, BandSpec{MinFraction: b.MinFraction, Archetype: b.Archetype.String(), HeightScale: b.HeightScale})
	}
	for a, n := range cfg.Capacity {
		s.Capacity[strings.ToLower(a.String())] = n
	}
	for _, d := range cfg.Decorations {
		s.Decorations = append(s.Decorations, DecorationSpec{On: d.On.String(), Place: d.Place.String(), Threshold: d.Threshold})
	}
	return s
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
