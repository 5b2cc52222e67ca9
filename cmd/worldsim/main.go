// Command worldsim runs the world history simulation: bands settle a
// generated hex map, grow into tribes and clans, and keep deciding their
// fate while an HTTP API lets observers watch and guide them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/worldhistory/internal/api"
	"github.com/talgya/worldhistory/internal/config"
	"github.com/talgya/worldhistory/internal/engine"
	"github.com/talgya/worldhistory/internal/persistence"
	"github.com/talgya/worldhistory/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("WORLDSIM_CONFIG"), "YAML config file (optional)")
	fresh := flag.Bool("fresh", false, "ignore saved snapshots and seed a new world")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logCloser := config.SetupLogging(cfg.Log)
	defer logCloser.Close()

	slog.Info("worldhistory starting", "config", *configPath, "seed", cfg.World.Seed)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── Load or Generate World ────────────────────────────────────────
	w, resumed, err := loadOrSeed(cfg, db, *fresh)
	if err != nil {
		slog.Error("failed to prepare world", "error", err)
		os.Exit(1)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(w)
	eng.Speed = cfg.Engine.Speed
	eng.Interval = cfg.Engine.FrameInterval
	eng.FrameBudget = cfg.Engine.FrameBudget
	eng.MaxStepsPerFrame = cfg.Engine.MaxStepsPerFrame
	eng.TaskBudget = cfg.Engine.TaskBudget

	// Periodic save on the simulation goroutine.
	eng.OnYear = func(year int64) {
		if year%10 == 0 {
			stats := w.Stats()
			slog.Info("decade",
				"year", year,
				"population", humanize.Comma(int64(stats.TotalPopulation)),
				"groups", stats.Groups,
				"tribes", stats.Polities,
				"clans", stats.Factions,
				"pending_decisions", stats.PendingDecisions,
			)
		}
		if every := int64(cfg.Storage.SaveEveryYears); every > 0 && year%every == 0 {
			save(db, w, cfg.Storage.KeepSnapshots)
		}
	}

	if *configPath != "" {
		err := config.Watch(*configPath, func(c *config.Config) {
			eng.SetSpeed(c.Engine.Speed)
		})
		if err != nil {
			slog.Warn("config watch disabled", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("WORLDSIM_ADMIN_KEY not set, admin POST endpoints disabled")
	}
	limiter := api.NewRateLimiter(cfg.API.RatePerSecond, cfg.API.Burst)
	apiServer := &api.Server{
		World:    w,
		Eng:      eng,
		DB:       db,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
		Limiter:  limiter,
		Timeout:  cfg.API.Timeout,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					slog.Debug("rate limiter cleanup", "dropped", n)
				}
			}
		}
	}()

	stats := w.Stats()
	year := int64(w.Date / engine.DaysPerYear)
	fmt.Printf("\nThe world is alive: %s people in %s bands, %d tribes, %d clans.\n",
		humanize.Comma(int64(stats.TotalPopulation)), humanize.Comma(int64(stats.Groups)),
		stats.Polities, stats.Factions)
	if resumed {
		fmt.Printf("Resuming in year %s of the %s century.\n",
			humanize.Comma(year), humanize.Ordinal(int(year/100)+1))
	}
	fmt.Printf("Speed: %s days per second\n", humanize.Commaf(cfg.Engine.Speed))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API shutdown", "error", err)
	}

	// Run has returned, so the world is ours again.
	slog.Info("final save...")
	save(db, w, cfg.Storage.KeepSnapshots)
	fmt.Println("Simulation stopped. World state saved.")
}

// loadOrSeed restores the latest snapshot, or generates a map and seeds a new
// world when there is none (or fresh is set).
func loadOrSeed(cfg *config.Config, db *persistence.DB, fresh bool) (*engine.World, bool, error) {
	if !fresh {
		st, err := db.LatestSnapshot()
		switch {
		case err == nil:
			slog.Info("found saved world state, loading...", "date", st.Date.String())
			// The map is regenerated from the saved config, not the current one.
			w, err := engine.Restore(world.Generate(st.MapConfig), st)
			if err != nil {
				return nil, false, fmt.Errorf("restore: %w", err)
			}
			slog.Info("world state restored",
				"groups", len(w.Groups),
				"polities", len(w.Polities),
				"factions", len(w.Factions),
				"pending_decisions", len(w.PendingDecisions()),
			)
			return w, true, nil
		case !errors.Is(err, persistence.ErrNoSnapshot):
			return nil, false, fmt.Errorf("load snapshot: %w", err)
		}
	}

	slog.Info("no saved state used, generating new world...")
	gen := cfg.GenConfig()
	m := world.Generate(gen)
	for t, c := range world.TerrainCounts(m) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	w := engine.NewWorld(gen, m)
	sites := world.PlaceStartingSites(m, cfg.World.StartingSites, cfg.World.SiteSpacing, gen.Seed)
	if len(w.SeedGroups(sites, cfg.World.StartingPopulation)) == 0 {
		return nil, false, errors.New("no habitable starting site")
	}
	if err := db.SaveWorldState(w); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	return w, false, nil
}

func save(db *persistence.DB, w *engine.World, keep int) {
	if err := db.SaveWorldState(w); err != nil {
		slog.Error("save failed", "error", err)
		return
	}
	if keep > 0 {
		if n, err := db.PruneSnapshots(keep); err != nil {
			slog.Warn("snapshot prune failed", "error", err)
		} else if n > 0 {
			slog.Debug("snapshots pruned", "removed", n)
		}
	}
}
