// Package api provides the HTTP API for observing and guiding the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
//
// The world belongs to the simulation goroutine. Every handler that reads or
// changes it enqueues a task on World.Tasks and waits for the result.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/worldhistory/internal/engine"
	"github.com/talgya/worldhistory/internal/persistence"
	"github.com/talgya/worldhistory/internal/world"
)

// MaxSpeed caps the speed the API accepts, in simulated days per second.
const MaxSpeed = 36500.0 // a century a second

var errSimBusy = errors.New("simulation did not answer in time")

// Server serves the world state over HTTP.
type Server struct {
	World    *engine.World
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; snapshot and archive endpoints need it
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	Limiter *RateLimiter
	Timeout time.Duration // How long a handler waits for the simulation goroutine

	srv *http.Server
}

// Handler builds the routed, rate-limited handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/groups", s.handleGroups)
	mux.HandleFunc("/api/v1/polities", s.handlePolities)
	mux.HandleFunc("/api/v1/factions", s.handleFactions)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/decision/", s.adminOnly(s.handleResolveDecision))
	mux.HandleFunc("/api/v1/guidance", s.adminOnly(s.handleGuidance))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	limiter := s.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(10, 20)
	}
	return RateLimitMiddleware(limiter, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Task states for onSim.
const (
	taskQueued int32 = iota
	taskRunning
	taskAbandoned
)

// onSim runs fn on the simulation goroutine and waits for it to finish. A
// caller that gives up while the task is still queued withdraws it, so a
// request reported as failed never changes the world later. A task already
// running is waited for.
func (s *Server) onSim(r *http.Request, fn func(w *engine.World)) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var state atomic.Int32
	done := make(chan struct{})
	s.World.Tasks.Enqueue(func() {
		if !state.CompareAndSwap(taskQueued, taskRunning) {
			return
		}
		fn(s.World)
		close(done)
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var err error
	select {
	case <-done:
		return nil
	case <-r.Context().Done():
		err = r.Context().Err()
	case <-timer.C:
		err = errSimBusy
	}
	if state.CompareAndSwap(taskQueued, taskAbandoned) {
		return err
	}
	<-done
	return nil
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require POST with bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func simError(w http.ResponseWriter, err error) {
	slog.Warn("simulation task failed", "error", err)
	http.Error(w, "simulation unavailable", http.StatusServiceUnavailable)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	err := s.onSim(r, func(wd *engine.World) {
		status = map[string]any{
			"name":       "worldhistory",
			"session_id": wd.SessionID,
			"seed":       wd.Seed,
			"date":       wd.Date,
			"sim_time":   wd.Date.String(),
			"speed":      s.Eng.Speed,
			"running":    s.Eng.Speed > 0,
			"stats":      wd.Stats(),
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	writeJSON(w, status)
}

type groupSummary struct {
	ID                int64          `json:"id"`
	Coord             world.HexCoord `json:"coord"`
	Population        float64        `json:"population"`
	OptimalPopulation float64        `json:"optimal_population"`
	PolityID          int64          `json:"polity_id,omitempty"`
	FactionCores      []int64        `json:"faction_cores,omitempty"`
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 200, 5000)
	var out []groupSummary
	err := s.onSim(r, func(wd *engine.World) {
		for _, id := range sortedKeys(wd.Groups) {
			if len(out) >= limit {
				break
			}
			g := wd.Groups[id]
			gs := groupSummary{
				ID:                g.ID,
				Coord:             g.Coord,
				Population:        g.ExactPopulation,
				OptimalPopulation: g.OptimalPopulation,
				FactionCores:      sortedKeys(g.FactionCores),
			}
			if g.HighestProminence != nil {
				gs.PolityID = g.HighestProminence.PolityID
			}
			out = append(out, gs)
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	writeJSON(w, out)
}

type politySummary struct {
	ID                 int64          `json:"id"`
	Type               string         `json:"type"`
	Name               string         `json:"name"`
	FormationDate      engine.Date    `json:"formation_date"`
	Core               world.HexCoord `json:"core"`
	DominantFactionID  int64          `json:"dominant_faction_id"`
	Factions           int            `json:"factions"`
	Groups             int            `json:"groups"`
	Territory          int            `json:"territory"`
	Population         float64        `json:"population"`
	AdministrativeCost float64        `json:"administrative_cost"`
	Contacts           int            `json:"contacts"`
	Guided             bool           `json:"guided"`
}

func (s *Server) handlePolities(w http.ResponseWriter, r *http.Request) {
	var out []politySummary
	err := s.onSim(r, func(wd *engine.World) {
		for _, id := range sortedKeys(wd.Polities) {
			p := wd.Polities[id]
			ps := politySummary{
				ID:                 p.ID,
				Type:               p.Type.String(),
				Name:               p.Name,
				FormationDate:      p.FormationDate,
				Core:               p.CoreGroup.Coord,
				Factions:           len(p.Factions),
				Groups:             len(p.Prominences),
				Territory:          len(p.Territory),
				Population:         p.TotalPopulation,
				AdministrativeCost: p.TotalAdministrativeCost,
				Contacts:           len(p.Contacts),
				Guided:             p.Guided,
			}
			if p.DominantFaction != nil {
				ps.DominantFactionID = p.DominantFaction.ID
			}
			out = append(out, ps)
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	writeJSON(w, out)
}

type factionSummary struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	PolityID  int64          `json:"polity_id"`
	Core      world.HexCoord `json:"core"`
	Influence float64        `json:"influence"`
	Leader    string         `json:"leader,omitempty"`
	LeaderAge int64          `json:"leader_age,omitempty"`
	Guided    bool           `json:"guided"`
}

func (s *Server) handleFactions(w http.ResponseWriter, r *http.Request) {
	polityFilter := int64(0)
	if v := r.URL.Query().Get("polity"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid polity id", http.StatusBadRequest)
			return
		}
		polityFilter = id
	}

	var out []factionSummary
	err := s.onSim(r, func(wd *engine.World) {
		for _, id := range sortedKeys(wd.Factions) {
			f := wd.Factions[id]
			if polityFilter != 0 && f.Polity.ID != polityFilter {
				continue
			}
			fs := factionSummary{
				ID:        f.ID,
				Type:      f.Type.String(),
				Name:      f.Name,
				PolityID:  f.Polity.ID,
				Core:      f.CoreGroup.Coord,
				Influence: f.Influence,
				Guided:    f.Guided,
			}
			if f.Leader != nil {
				fs.Leader = f.Leader.Name
				fs.LeaderAge = f.Leader.Age(int64(wd.Date))
			}
			out = append(out, fs)
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	// The archive outlives the in-memory log and is safe to read from here.
	if r.URL.Query().Get("archive") == "1" {
		if s.DB == nil {
			http.Error(w, "database not available", http.StatusServiceUnavailable)
			return
		}
		events, err := s.DB.RecentHistory(limit)
		if err != nil {
			slog.Error("history query failed", "error", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
		return
	}

	var events []engine.HistoryEvent
	err := s.onSim(r, func(wd *engine.World) {
		events = wd.RecentHistory(limit)
	})
	if err != nil {
		simError(w, err)
		return
	}
	if category := r.URL.Query().Get("category"); category != "" {
		events = slices.DeleteFunc(events, func(e engine.HistoryEvent) bool {
			return e.Category != category
		})
	}
	writeJSON(w, events)
}

type optionView struct {
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Consequence string `json:"consequence"`
}

type decisionView struct {
	ID                int64        `json:"id"`
	Kind              int          `json:"kind"`
	Date              engine.Date  `json:"date"`
	Description       string       `json:"description"`
	Options           []optionView `json:"options"`
	Preferred         int          `json:"preferred"`
	State             string       `json:"state"`
	DecidingFactionID int64        `json:"deciding_faction_id"`
	AffectedPolityID  int64        `json:"affected_polity_id"`
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	var out []decisionView
	err := s.onSim(r, func(wd *engine.World) {
		for _, d := range wd.PendingDecisions() {
			dv := decisionView{
				ID:                d.ID,
				Kind:              int(d.Kind),
				Date:              d.Date,
				Description:       d.Description,
				Preferred:         d.Preferred,
				State:             d.State.String(),
				DecidingFactionID: d.DecidingFactionID,
				AffectedPolityID:  d.AffectedPolityID,
			}
			for i, o := range d.Options {
				dv.Options = append(dv.Options, optionView{Index: i, Label: o.Label, Consequence: o.Consequence})
			}
			out = append(out, dv)
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	writeJSON(w, out)
}

// handleResolveDecision serves POST /api/v1/decision/{id} with {"option": n}.
// A negative option picks the leader's preferred one.
func (s *Server) handleResolveDecision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/v1/decision/"), 10, 64)
	if err != nil {
		http.Error(w, "invalid decision id", http.StatusBadRequest)
		return
	}
	var req struct {
		Option *int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		http.Error(w, "invalid json: need option", http.StatusBadRequest)
		return
	}

	var resolveErr error
	err = s.onSim(r, func(wd *engine.World) {
		resolveErr = wd.ResolvePendingDecision(id, *req.Option)
	})
	if err != nil {
		simError(w, err)
		return
	}
	switch {
	case errors.Is(resolveErr, engine.ErrUnknownDecision):
		http.Error(w, resolveErr.Error(), http.StatusNotFound)
		return
	case errors.Is(resolveErr, engine.ErrInvalidOption):
		http.Error(w, resolveErr.Error(), http.StatusBadRequest)
		return
	case errors.Is(resolveErr, engine.ErrDecisionResolved):
		http.Error(w, resolveErr.Error(), http.StatusConflict)
		return
	case resolveErr != nil:
		http.Error(w, resolveErr.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("decision resolved via api", "decision", id, "option", *req.Option)
	writeJSON(w, map[string]any{"decision": id, "option": *req.Option, "message": "decision resolved"})
}

func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PolityID  int64 `json:"polity_id"`
		FactionID int64 `json:"faction_id"`
		Guided    bool  `json:"guided"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if (req.PolityID == 0) == (req.FactionID == 0) {
		http.Error(w, "set exactly one of polity_id and faction_id", http.StatusBadRequest)
		return
	}

	var guideErr error
	err := s.onSim(r, func(wd *engine.World) {
		if req.PolityID != 0 {
			guideErr = wd.SetPolityGuided(req.PolityID, req.Guided)
		} else {
			guideErr = wd.SetFactionGuided(req.FactionID, req.Guided)
		}
	})
	if err != nil {
		simError(w, err)
		return
	}
	if guideErr != nil {
		http.Error(w, guideErr.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, req)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"` // days per second
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > MaxSpeed {
		http.Error(w, fmt.Sprintf("speed must be 0-%g", MaxSpeed), http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	writeJSON(w, map[string]float64{"speed": req.Speed})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	var saveErr error
	var date engine.Date
	err := s.onSim(r, func(wd *engine.World) {
		date = wd.Date
		saveErr = s.DB.SaveWorldState(wd)
	})
	if err != nil {
		simError(w, err)
		return
	}
	if saveErr != nil {
		slog.Error("snapshot save failed", "error", saveErr)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"date":    date,
		"message": "snapshot saved",
	})
}

func queryLimit(r *http.Request, def, hi int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= hi {
			return n
		}
	}
	return def
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
