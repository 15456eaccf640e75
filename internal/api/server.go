// Package api serves the current terrain over HTTP.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"

	"github.com/vreezy/hexsnow/internal/engine"
	"github.com/vreezy/hexsnow/internal/noise"
	"github.com/vreezy/hexsnow/internal/persistence"
	"github.com/vreezy/hexsnow/internal/render"
	"github.com/vreezy/hexsnow/internal/scene"
	"github.com/vreezy/hexsnow/internal/terrain"
	"github.com/vreezy/hexsnow/internal/world"
)

// Placements per websocket message on the stream endpoint.
const streamBatch = 512

// Server serves the scene over HTTP.
type Server struct {
	Scene    *scene.Scene
	Eng      *engine.Engine
	DB       *persistence.DB // Optional run store
	Preset   string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	CORSOrigins         []string
	RegeneratePerMinute int

	upgrader websocket.Upgrader

	mu      sync.Mutex
	runID   string
	mapFor  *terrain.Result // Result the cached tile index was built from
	tileMap *world.Map
}

// SetRunID records the stored run ID of the current pass.
func (s *Server) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

func (s *Server) currentRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	limit := s.RegeneratePerMinute
	if limit <= 0 {
		limit = 6
	}
	regenLimiter := NewRateLimiter(limit, time.Minute)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.CORSOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		// Websocket upgrades need the raw connection, so the stream stays
		// outside the gzip group.
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

			r.Get("/status", s.handleStatus)
			r.Get("/terrain", s.handleTerrain)
			r.Get("/terrain/{x}/{y}", s.handleTile)
			r.Get("/stats", s.handleStats)
			r.Get("/heightmap", s.handleHeightmap)
			r.Get("/snow", s.handleSnow)
			r.Get("/instances/{archetype}", s.handleInstances)
			r.Get("/runs", s.handleRuns)
			r.Get("/runs/latest", s.handleLatestRun)
			r.Get("/runs/{id}", s.handleRun)
			r.Get("/config", s.handleConfig)

			r.Post("/regenerate", s.adminOnly(RateLimitMiddleware(regenLimiter, s.handleRegenerate)))
			r.Post("/speed", s.adminOnly(s.handleSpeed))
			r.Delete("/runs/{id}", s.adminOnly(s.handleDeleteRun))
		})
	})
	return r
}

// Start begins serving the HTTP API in a goroutine. The returned server
// is used for shutdown.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Shutdown stops srv, waiting up to five seconds for open requests.
func Shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no HEXSNOW_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	g := s.Scene.Current()
	status := map[string]any{
		"name":       "hexsnow",
		"preset":     s.Preset,
		"pass":       g.Pass,
		"seed":       g.Seed,
		"run_id":     s.currentRunID(),
		"placements": len(g.Result.Placements),
		"time":       s.Scene.Time(),
		"snowflakes": s.Scene.Snow().Len(),
	}
	if s.Eng != nil {
		status["frame"] = s.Eng.Frame()
		status["speed"] = s.Eng.Speed()
		status["clock"] = engine.FormatClock(s.Eng.Clock())
	}
	writeJSON(w, status)
}

// handleTerrain lists placements. Optional filters: archetype=<name>,
// decorations=false.
func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	res := s.Scene.Result()
	q := r.URL.Query()

	var filter world.Archetype
	if name := q.Get("archetype"); name != "" {
		a, err := world.ParseArchetype(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = a
	}
	skipDecorations := q.Get("decorations") == "false"

	out := make([]terrain.Placement, 0, len(res.Placements))
	for _, p := range res.Placements {
		if filter != world.ArchetypeNone && p.Archetype != filter {
			continue
		}
		if skipDecorations && p.Decoration {
			continue
		}
		out = append(out, p)
	}
	writeJSON(w, out)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errX != nil || errY != nil {
		http.Error(w, "invalid tile coordinates", http.StatusBadRequest)
		return
	}

	tile := s.tiles().Get(world.TileCoord{X: x, Y: y})
	if tile == nil {
		http.Error(w, "no tile at that coordinate", http.StatusNotFound)
		return
	}
	writeJSON(w, tile)
}

// tiles returns the tile index of the current pass, rebuilding it after a
// regeneration.
func (s *Server) tiles() *world.Map {
	res := s.Scene.Result()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapFor != res {
		s.tileMap = res.Map()
		s.mapFor = res
	}
	return s.tileMap
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res := s.Scene.Result()
	used := make(map[string]int)
	capacity := make(map[string]int)
	for _, a := range world.Archetypes {
		if res.Capacity[a] == 0 && res.Used[a] == 0 {
			continue
		}
		used[a.String()] = res.Used[a]
		capacity[a.String()] = res.Capacity[a]
	}
	writeJSON(w, map[string]any{
		"placements": len(res.Placements),
		"used":       used,
		"capacity":   capacity,
		"rejections": res.Stats,
		"verified":   res.Verify() == nil,
	})
}

// handleHeightmap renders the current height field as a grayscale PNG.
func (s *Server) handleHeightmap(w http.ResponseWriter, r *http.Request) {
	res := 256
	if v := r.URL.Query().Get("res"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1024 {
			http.Error(w, "res must be 1-1024", http.StatusBadRequest)
			return
		}
		res = n
	}
	img := noise.BakeImage(s.Scene.Field(), res)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		slog.Warn("heightmap encode", "error", err)
	}
}

func (s *Server) handleSnow(w http.ResponseWriter, r *http.Request) {
	particles := s.Scene.Snow().Particles()
	writeJSON(w, map[string]any{
		"time":      s.Scene.Time(),
		"count":     len(particles),
		"particles": particles,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run store disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run store disabled", http.StatusServiceUnavailable)
		return
	}
	s.writeStoredRun(w, func() (*persistence.StoredRun, error) {
		return s.DB.LoadRun(chi.URLParam(r, "id"))
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run store disabled", http.StatusServiceUnavailable)
		return
	}
	s.writeStoredRun(w, s.DB.LatestRun)
}

func (s *Server) writeStoredRun(w http.ResponseWriter, load func() (*persistence.StoredRun, error)) {
	run, err := load()
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load run", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "run store disabled", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	err := s.DB.DeleteRun(id)
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("delete run", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if id == s.currentRunID() {
		s.SetRunID("")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInstances returns the written instance matrices of one archetype's
// buffer, column-major.
func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	a, err := world.ParseArchetype(chi.URLParam(r, "archetype"))
	if err != nil || a == world.ArchetypeNone {
		http.Error(w, "unknown archetype", http.StatusBadRequest)
		return
	}
	buffers := s.Scene.Buffers()
	b := buffers.Buffer(a)
	writeJSON(w, map[string]any{
		"archetype": a,
		"capacity":  buffers.Capacity(a),
		"count":     b.Count,
		"matrices":  b.Matrices,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	opts := s.Scene.Options()
	writeJSON(w, map[string]any{
		"preset":    s.Preset,
		"terrain":   opts.Terrain,
		"noise":     opts.Noise,
		"materials": render.DefaultMaterials(),
	})
}

// handleStream replays the current pass's placements over a websocket in
// submission order, then closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	res := s.Scene.Result()
	for start := 0; start < len(res.Placements); start += streamBatch {
		end := min(start+streamBatch, len(res.Placements))
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(res.Placements[start:end]); err != nil {
			slog.Debug("stream write", "error", err)
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "complete"),
		time.Now().Add(time.Second))
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	g, err := s.Scene.Regenerate()
	if err != nil {
		slog.Error("regenerate", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	runID := ""
	if s.DB != nil {
		runID, err = s.DB.SaveRun(g.Result, s.Preset, g.Seed)
		if err != nil {
			slog.Error("save run", "error", err)
		} else if err := s.DB.SaveMeta("last_run", runID); err != nil {
			slog.Warn("save last_run", "error", err)
		}
	}
	s.SetRunID(runID)

	writeJSON(w, map[string]any{
		"pass":       g.Pass,
		"run_id":     runID,
		"seed":       g.Seed,
		"placements": len(g.Result.Placements),
		"stats":      g.Result.Stats,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "frame clock not running", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 100 {
		http.Error(w, "speed must be 0-100", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
