// Package engine runs the world history simulation: a deterministic
// discrete-event clock driving cell groups, polities, factions and the
// decisions their leaders face.
package engine

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// maxHistory bounds the in-memory history log.
const maxHistory = 1000

// World holds the complete simulation state and is the context every model
// object reaches back into. Only the simulation goroutine may touch it; other
// goroutines go through Tasks.
type World struct {
	Seed      int64
	SessionID string
	Date      Date
	MapConfig world.GenConfig
	Map       *world.Map
	RNG       rng.Stream
	Events    *EventQueue
	Tasks     *TaskQueue

	Groups   map[int64]*CellGroup
	Polities map[int64]*Polity
	Factions map[int64]*Faction

	History         []HistoryEvent
	EventsTriggered int64

	// OnEventTriggered is called after every event whose Trigger ran.
	OnEventTriggered func(e WorldEvent)

	pendingDecisions []*Decision

	// Per-update batches, drained by the phases in clock.go.
	groupsToUpdate     map[int64]*CellGroup
	updatedGroups      map[int64]*CellGroup
	groupsToPostUpdate map[int64]*CellGroup
	groupsToRemove     map[int64]*CellGroup
	migratingGroups    []*MigratingGroup
	politiesToUpdate   map[int64]*Polity
	politiesToRemove   map[int64]*Polity
	factionsToUpdate   map[int64]*Faction
	factionsToRemove   map[int64]*Faction
}

// HistoryEvent is a notable occurrence kept for observers.
type HistoryEvent struct {
	Date        Date   `json:"date"`
	Category    string `json:"category"` // "tribe", "clan", "decision", "migration"
	Description string `json:"description"`
}

// Stats is an aggregate snapshot of the world.
type Stats struct {
	Date             Date    `json:"date"`
	Groups           int     `json:"groups"`
	Polities         int     `json:"polities"`
	Factions         int     `json:"factions"`
	TotalPopulation  float64 `json:"total_population"`
	PendingDecisions int     `json:"pending_decisions"`
	QueuedEvents     int     `json:"queued_events"`
	EventsTriggered  int64   `json:"events_triggered"`
}

// NewWorld creates an empty world on a generated map. Add groups with
// SeedGroups before advancing.
func NewWorld(cfg world.GenConfig, m *world.Map) *World {
	w := &World{
		Seed:      cfg.Seed,
		SessionID: uuid.NewString(),
		MapConfig: cfg,
		Map:       m,
		RNG:       rng.New(cfg.Seed),
		Events:    NewEventQueue(),
		Tasks:     NewTaskQueue(),
		Groups:    make(map[int64]*CellGroup),
		Polities:  make(map[int64]*Polity),
		Factions:  make(map[int64]*Faction),

		groupsToUpdate:     make(map[int64]*CellGroup),
		updatedGroups:      make(map[int64]*CellGroup),
		groupsToPostUpdate: make(map[int64]*CellGroup),
		groupsToRemove:     make(map[int64]*CellGroup),
		politiesToUpdate:   make(map[int64]*Polity),
		politiesToRemove:   make(map[int64]*Polity),
		factionsToUpdate:   make(map[int64]*Faction),
		factionsToRemove:   make(map[int64]*Faction),
	}
	return w
}

// SeedGroups founds a band on each starting site with the given population.
// Starting cultures are drawn from the world stream so every seed differs.
func (w *World) SeedGroups(sites []world.StartingSite, population float64) []*CellGroup {
	out := make([]*CellGroup, 0, len(sites))
	for _, site := range sites {
		cell := w.Map.Get(site.Coord)
		if cell == nil || !cell.IsLand() || cell.GroupID != 0 {
			continue
		}
		culture := w.startingCulture(cell)
		g := w.newGroup(cell, population, culture, w.RNG.Int(cell.Coord.Locator(), int64(w.Date), rng.GroupMigrationDirection, world.DirectionCount))
		g.OptimalPopulation = OptimalPopulationFor(cell, g.Culture)
		g.scheduleNextUpdate()
		out = append(out, g)
	}
	slog.Info("groups seeded", "count", len(out), "population", population)
	return out
}

func (w *World) startingCulture(cell *world.Cell) social.Culture {
	c := social.NewCulture(cell.Terrain)
	loc := cell.Coord.Locator()
	date := int64(w.Date)
	pref := func(sub int64) float64 {
		return mathx.Round(w.RNG.Range(loc*7+sub, date, rng.WorldStartingCulture, 0.3, 0.7))
	}
	c.Preferences = social.Preferences{
		Cohesion:   pref(0),
		Authority:  pref(1),
		Aggression: pref(2),
		Isolation:  pref(3),
	}
	c.Knowledge.SocialOrganization = 0.1
	if cell.Coastal {
		c.Skills.Seafaring = 0.1
	}
	return c
}

// allocateID derives an entity id from the current date and a locator,
// probing forward while taken reports a collision.
func (w *World) allocateID(locator int64, taken func(int64) bool) int64 {
	id := newEntityID(w.Date, locator)
	for taken(id) {
		id++
	}
	return id
}

// Batch registration. The phases in clock.go drain these.

func (w *World) AddGroupToUpdate(g *CellGroup)     { w.groupsToUpdate[g.ID] = g }
func (w *World) AddGroupToPostUpdate(g *CellGroup) { w.groupsToPostUpdate[g.ID] = g }
func (w *World) AddPolityToUpdate(p *Polity)       { w.politiesToUpdate[p.ID] = p }
func (w *World) AddFactionToUpdate(f *Faction)     { w.factionsToUpdate[f.ID] = f }

func (w *World) markGroupForRemoval(g *CellGroup)  { w.groupsToRemove[g.ID] = g }
func (w *World) markPolityForRemoval(p *Polity)    { w.politiesToRemove[p.ID] = p }
func (w *World) markFactionForRemoval(f *Faction)  { w.factionsToRemove[f.ID] = f }

// logEvent appends to the history log and mirrors it to slog.
func (w *World) logEvent(category, format string, args ...any) {
	desc := fmt.Sprintf(format, args...)
	w.History = append(w.History, HistoryEvent{Date: w.Date, Category: category, Description: desc})
	if len(w.History) > maxHistory {
		w.History = w.History[len(w.History)-maxHistory:]
	}
	slog.Info("event", "category", category, "date", w.Date.String(), "description", desc)
}

// RecentHistory returns up to n most recent history events, newest last.
func (w *World) RecentHistory(n int) []HistoryEvent {
	if n <= 0 || n > len(w.History) {
		n = len(w.History)
	}
	return slices.Clone(w.History[len(w.History)-n:])
}

// Stats computes aggregate statistics.
func (w *World) Stats() Stats {
	total := 0.0
	for _, id := range sortedIDs(w.Groups) {
		total += w.Groups[id].ExactPopulation
	}
	return Stats{
		Date:             w.Date,
		Groups:           len(w.Groups),
		Polities:         len(w.Polities),
		Factions:         len(w.Factions),
		TotalPopulation:  total,
		PendingDecisions: len(w.pendingDecisions),
		QueuedEvents:     w.Events.Len(),
		EventsTriggered:  w.EventsTriggered,
	}
}

// TotalPopulation sums every group's exact population in id order.
func (w *World) TotalPopulation() float64 {
	return w.Stats().TotalPopulation
}

// SetPolityGuided toggles player guidance of a polity. Decisions affecting a
// guided polity are escalated instead of resolved autonomously.
func (w *World) SetPolityGuided(id int64, guided bool) error {
	p, ok := w.Polities[id]
	if !ok || !p.StillPresent {
		return fmt.Errorf("polity %d: %w", id, ErrUnknownPolity)
	}
	p.Guided = guided
	slog.Info("polity guidance changed", "polity", id, "guided", guided)
	return nil
}

// SetFactionGuided toggles player guidance of a faction.
func (w *World) SetFactionGuided(id int64, guided bool) error {
	f, ok := w.Factions[id]
	if !ok || !f.StillPresent {
		return fmt.Errorf("faction %d: %w", id, ErrUnknownFaction)
	}
	f.Guided = guided
	slog.Info("faction guidance changed", "faction", id, "guided", guided)
	return nil
}

// sortedIDs returns the keys of m in ascending order. Every loop whose
// effects depend on order goes through it.
func sortedIDs[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
