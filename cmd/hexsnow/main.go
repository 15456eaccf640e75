// Command hexsnow generates a hexagonal terrain pass, stores it, and can
// serve it with live snowfall over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vreezy/hexsnow/internal/api"
	"github.com/vreezy/hexsnow/internal/config"
	"github.com/vreezy/hexsnow/internal/engine"
	"github.com/vreezy/hexsnow/internal/entropy"
	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/persistence"
	"github.com/vreezy/hexsnow/internal/scene"
	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/weather"
	"github.com/vreezy/hexsnow/internal/world"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file")
		preset       = flag.String("preset", "", "preset name ("+strings.Join(config.Presets(), ", ")+")")
		dbPath       = flag.String("db", "", "SQLite run store path (default from config, \"-\" disables)")
		exportPath   = flag.String("export", "", "write a zstd snapshot of the pass to this path")
		replayPath   = flag.String("replay", "", "install the pass from a snapshot instead of generating one")
		heightmap    = flag.String("heightmap", "", "write the height field as a PNG to this path")
		heightmapRes = flag.Int("heightmap-res", 512, "heightmap PNG resolution")
		addr         = flag.String("addr", "", "listen address (default from config)")
		serve        = flag.Bool("serve", false, "serve the API with a running frame clock")
		workers      = flag.Int("workers", 0, "height precompute workers (0 = from config)")
		printConfig  = flag.Bool("print-config", false, "print the resolved config as YAML and exit")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// ── Configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath, *preset)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Terrain.Workers = *workers
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}
	if *printConfig {
		b, err := cfg.Marshal()
		if err != nil {
			slog.Error("failed to render config", "error", err)
			os.Exit(1)
		}
		fmt.Print(string(b))
		return
	}

	terrainCfg, err := cfg.TerrainConfig()
	if err != nil {
		slog.Error("invalid terrain config", "error", err)
		os.Exit(1)
	}

	// ── Terrain ──────────────────────────────────────────────────────
	var replay *persistence.Snapshot
	if *replayPath != "" {
		snap, err := loadSnapshot(*replayPath)
		if err != nil {
			slog.Error("failed to read snapshot", "path", *replayPath, "error", err)
			os.Exit(1)
		}
		replay = &snap
		terrainCfg = snap.Config
		if snap.Header.Preset != "" {
			cfg.Preset = snap.Header.Preset
		}
	}

	slog.Info("hexsnow starting", "preset", cfg.Preset, "radius", terrainCfg.WorldRadius, "bound", terrainCfg.TileBound)
	start := time.Now()
	opts := scene.Options{
		Terrain: terrainCfg,
		Noise:   cfg.Noise,
		Snow: weather.SnowConfig{
			Radius:  terrainCfg.WorldRadius,
			Rate:    cfg.Snow.Rate,
			Ceiling: cfg.Snow.Ceiling,
		},
		SnowSeed: cfg.Snow.Seed,
		Entropy:  entropy.NewClient(cfg.RandomOrgKey),
		Weather:  weather.NewClient(cfg.WeatherKey, cfg.Snow.WeatherLocation),
	}
	if replay != nil {
		opts.Initial = replay.Result
		opts.InitialSeed = replay.Header.NoiseSeed
	}
	sc, err := scene.New(opts)
	if err != nil {
		slog.Error("terrain generation failed", "error", err)
		os.Exit(1)
	}
	current := sc.Current()
	res := current.Result
	logSummary(res, time.Since(start))

	// ── Persistence ──────────────────────────────────────────────────
	var db *persistence.DB
	runID := ""
	if cfg.Storage.DBPath != "-" {
		db, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if prev, err := db.GetMeta("last_run"); err == nil {
			slog.Info("previous run", "id", prev)
		}
		runID, err = db.SaveRun(res, cfg.Preset, current.Seed)
		if err != nil {
			slog.Error("failed to save run", "error", err)
			os.Exit(1)
		}
		if err := db.SaveMeta("last_run", runID); err != nil {
			slog.Warn("failed to save meta", "error", err)
		}
	}

	if *exportPath != "" {
		snap := persistence.NewSnapshot(runID, cfg.Preset, current.Seed, res)
		if err := persistence.WriteSnapshot(*exportPath, snap); err != nil {
			slog.Error("failed to write snapshot", "error", err)
			os.Exit(1)
		}
		if fi, err := os.Stat(*exportPath); err == nil {
			slog.Info("snapshot written", "path", *exportPath, "size", humanize.Bytes(uint64(fi.Size())))
		}
	}

	if *heightmap != "" {
		if err := writeHeightmap(*heightmap, sc.Field(), *heightmapRes); err != nil {
			slog.Error("failed to write heightmap", "error", err)
			os.Exit(1)
		}
		slog.Info("heightmap written", "path", *heightmap, "resolution", *heightmapRes)
	}

	if !*serve {
		return
	}

	// ── Frame clock + API ────────────────────────────────────────────
	eng := engine.NewEngine()
	if cfg.Server.FrameRate > 0 {
		eng.Interval = time.Second / time.Duration(cfg.Server.FrameRate)
	}
	eng.OnFrame = sc.Update

	srv := &api.Server{
		Scene:               sc,
		Eng:                 eng,
		DB:                  db,
		Preset:              cfg.Preset,
		AdminKey:            cfg.AdminKey,
		CORSOrigins:         cfg.Server.CORSOrigins,
		RegeneratePerMinute: cfg.Server.RegeneratePerMinute,
	}
	srv.SetRunID(runID)
	httpSrv := srv.Start(cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go refreshWeather(ctx, sc)
	eng.Run(ctx)

	slog.Info("shutting down")
	api.Shutdown(httpSrv)
}

func logSummary(res *terrain.Result, took time.Duration) {
	for _, a := range world.Archetypes {
		if res.Capacity[a] == 0 && res.Used[a] == 0 {
			continue
		}
		slog.Info("archetype",
			"type", a,
			"used", humanize.Comma(int64(res.Used[a])),
			"capacity", humanize.Comma(int64(res.Capacity[a])),
		)
	}
	slog.Info("run summary",
		"placements", humanize.Comma(int64(len(res.Placements))),
		"candidates", humanize.Comma(int64(res.Stats.Candidates)),
		"out_of_radius", res.Stats.OutOfRadius,
		"negative", res.Stats.Negative,
		"skipped", res.Stats.Skipped,
		"exhausted", res.Stats.Exhausted,
		"cascaded", res.Stats.Cascaded,
		"decorations", res.Stats.Decorations,
		"took", took.Round(time.Millisecond),
	)
	if err := res.Verify(); err != nil {
		slog.Error("capacity check failed", "error", err)
		os.Exit(1)
	}
}

// loadSnapshot checks the header before decoding the full body.
func loadSnapshot(path string) (persistence.Snapshot, error) {
	h, err := persistence.ReadSnapshotHeader(path)
	if err != nil {
		return persistence.Snapshot{}, err
	}
	if h.Version != persistence.SnapshotVersion {
		return persistence.Snapshot{}, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	slog.Info("replaying snapshot",
		"run_id", h.RunID,
		"preset", h.Preset,
		"seed", h.NoiseSeed,
		"placements", humanize.Comma(int64(h.Placements)),
	)
	snap, err := persistence.ReadSnapshot(path)
	if err != nil {
		return snap, err
	}
	if snap.Result == nil {
		return snap, fmt.Errorf("snapshot %s has no result", path)
	}
	return snap, nil
}

func writeHeightmap(path string, field *noise.Field, res int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, noise.BakeImage(field, res)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}

// refreshWeather polls live conditions every five minutes.
func refreshWeather(ctx context.Context, sc *scene.Scene) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		if err := sc.RefreshWeather(); err != nil {
			slog.Warn("weather refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
