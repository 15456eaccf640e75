// Package persistence stores generation runs in SQLite and writes
// compressed run snapshots.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/world"
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		preset TEXT NOT NULL,
		noise_seed INTEGER NOT NULL,
		placements INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		used_json TEXT NOT NULL,
		capacity_json TEXT NOT NULL,
		stats_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS placements (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		archetype TEXT NOT NULL,
		slot INTEGER NOT NULL,
		tile_x INTEGER NOT NULL,
		tile_y INTEGER NOT NULL,
		pos_x REAL NOT NULL,
		pos_z REAL NOT NULL,
		height REAL NOT NULL,
		seed REAL NOT NULL,
		decoration INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run describes one stored generation pass.
type Run struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Preset     string    `json:"preset"`
	NoiseSeed  int64     `json:"noise_seed"`
	Placements int       `json:"placements"`
}

// StoredRun is a run with its full placement list.
type StoredRun struct {
	Run
	Config     terrain.Config          `json:"config"`
	Used       map[world.Archetype]int `json:"used"`
	Capacity   map[world.Archetype]int `json:"capacity"`
	Stats      terrain.Stats           `json:"stats"`
	Placements []terrain.Placement     `json:"placements"`
}

// Result rebuilds the generation result of a stored run.
func (s *StoredRun) Result() *terrain.Result {
	return &terrain.Result{
		Config:     s.Config,
		Placements: s.Placements,
		Used:       s.Used,
		Capacity:   s.Capacity,
		Stats:      s.Stats,
	}
}

type runRow struct {
	ID           string `db:"id"`
	CreatedAt    int64  `db:"created_at"`
	Preset       string `db:"preset"`
	NoiseSeed    int64  `db:"noise_seed"`
	Placements   int    `db:"placements"`
	ConfigJSON   string `db:"config_json"`
	UsedJSON     string `db:"used_json"`
	CapacityJSON string `db:"capacity_json"`
	StatsJSON    string `db:"stats_json"`
}

func (r runRow) run() Run {
	return Run{
		ID:         r.ID,
		CreatedAt:  time.UnixMilli(r.CreatedAt).UTC(),
		Preset:     r.Preset,
		NoiseSeed:  r.NoiseSeed,
		Placements: r.Placements,
	}
}

type placementRow struct {
	Seq        int     `db:"seq"`
	Archetype  string  `db:"archetype"`
	Slot       int     `db:"slot"`
	TileX      int     `db:"tile_x"`
	TileY      int     `db:"tile_y"`
	PosX       float64 `db:"pos_x"`
	PosZ       float64 `db:"pos_z"`
	Height     float64 `db:"height"`
	Seed       float64 `db:"seed"`
	Decoration bool    `db:"decoration"`
}

// SaveRun stores a generation result and returns its new run ID.
func (db *DB) SaveRun(res *terrain.Result, preset string, noiseSeed int64) (string, error) {
	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	usedJSON, _ := json.Marshal(res.Used)
	capJSON, _ := json.Marshal(res.Capacity)
	statsJSON, _ := json.Marshal(res.Stats)

	id := uuid.NewString()

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, preset, noise_seed, placements, config_json, used_json, capacity_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UnixMilli(), preset, noiseSeed, len(res.Placements),
		string(configJSON), string(usedJSON), string(capJSON), string(statsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Preparex(`INSERT INTO placements
		(run_id, seq, archetype, slot, tile_x, tile_y, pos_x, pos_z, height, seed, decoration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, p := range res.Placements {
		deco := 0
		if p.Decoration {
			deco = 1
		}
		_, err := stmt.Exec(
			id, p.Seq, p.Archetype.String(), p.Slot,
			p.Coord.X, p.Coord.Y, p.Position.X, p.Position.Z,
			p.Height, p.Seed, deco,
		)
		if err != nil {
			return "", fmt.Errorf("insert placement %d: %w", p.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run saved", "id", id, "placements", len(res.Placements))
	return id, nil
}

// LoadRun returns the run with the given ID and all its placements.
func (db *DB) LoadRun(id string) (*StoredRun, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return db.loadPlacements(row)
}

// LatestRun returns the most recently saved run.
func (db *DB) LatestRun() (*StoredRun, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return db.loadPlacements(row)
}

func (db *DB) loadPlacements(row runRow) (*StoredRun, error) {
	sr := &StoredRun{Run: row.run()}
	if err := json.Unmarshal([]byte(row.ConfigJSON), &sr.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := json.Unmarshal([]byte(row.UsedJSON), &sr.Used); err != nil {
		return nil, fmt.Errorf("decode used: %w", err)
	}
	if err := json.Unmarshal([]byte(row.CapacityJSON), &sr.Capacity); err != nil {
		return nil, fmt.Errorf("decode capacity: %w", err)
	}
	if err := json.Unmarshal([]byte(row.StatsJSON), &sr.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}

	var rows []placementRow
	err := db.conn.Select(&rows, `SELECT seq, archetype, slot, tile_x, tile_y, pos_x, pos_z, height, seed, decoration
		FROM placements WHERE run_id = ? ORDER BY seq`, row.ID)
	if err != nil {
		return nil, err
	}

	sr.Placements = make([]terrain.Placement, 0, len(rows))
	for _, r := range rows {
		a, err := world.ParseArchetype(r.Archetype)
		if err != nil {
			return nil, fmt.Errorf("placement %d: %w", r.Seq, err)
		}
		sr.Placements = append(sr.Placements, terrain.Placement{
			Seq:        r.Seq,
			Archetype:  a,
			Slot:       r.Slot,
			Coord:      world.TileCoord{X: r.TileX, Y: r.TileY},
			Position:   world.Position{X: r.PosX, Z: r.PosZ},
			Height:     r.Height,
			Seed:       r.Seed,
			Decoration: r.Decoration,
		})
	}
	return sr, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = r.run()
	}
	return runs, nil
}

// DeleteRun removes a run and its placements.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM placements WHERE run_id = ?", id); err != nil {
		return err
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
