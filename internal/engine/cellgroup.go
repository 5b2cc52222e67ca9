package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// CellGroup is the population living on one cell.
type CellGroup struct {
	world *World

	ID                          int64
	Coord                       world.HexCoord
	Locator                     int64
	ExactPopulation             float64
	OptimalPopulation           float64
	Culture                     social.Culture
	InitDate                    Date
	LastUpdateDate              Date
	NextUpdateDate              Date
	PreferredMigrationDirection int
	StillPresent                bool

	// Prominences are the committed polity prominences, by polity id.
	Prominences                map[int64]*PolityProminence
	HighestProminence          *PolityProminence
	TotalPolityProminenceValue float64

	// FactionCores are the factions seated in this group, by faction id.
	FactionCores map[int64]*Faction

	prominencesToAdd    map[int64]float64
	prominencesToRemove map[int64]bool
	factionCoresToBe    map[int64]*Faction

	updateEvent         *UpdateCellGroupEvent
	migrationEvent      *MigrateGroupEvent
	expansionEvent      *ExpandPolityProminenceEvent
	tribeFormationEvent *TribeFormationEvent
}

func (w *World) newGroup(cell *world.Cell, population float64, culture social.Culture, direction int) *CellGroup {
	loc := cell.Coord.Locator()
	id := w.allocateID(loc, func(id int64) bool {
		_, ok := w.Groups[id]
		return ok
	})
	g := &CellGroup{
		world:                       w,
		ID:                          id,
		Coord:                       cell.Coord,
		Locator:                     loc,
		ExactPopulation:             mathx.Round(population),
		Culture:                     culture,
		InitDate:                    w.Date,
		LastUpdateDate:              w.Date,
		PreferredMigrationDirection: direction,
		StillPresent:                true,
		Prominences:                 make(map[int64]*PolityProminence),
		FactionCores:                make(map[int64]*Faction),
		prominencesToAdd:            make(map[int64]float64),
		prominencesToRemove:         make(map[int64]bool),
		factionCoresToBe:            make(map[int64]*Faction),
	}
	g.updateEvent = newUpdateCellGroupEvent(w, g, w.Date)
	w.Groups[id] = g
	cell.GroupID = id
	return g
}

// Cell returns the cell the group lives on.
func (g *CellGroup) Cell() *world.Cell {
	return g.world.Map.Get(g.Coord)
}

// Population is the whole-person population.
func (g *CellGroup) Population() int64 {
	return int64(math.Floor(g.ExactPopulation))
}

// Update brings the group to the current date and considers what it does
// next. Runs in phase A.
func (g *CellGroup) Update() {
	if !g.StillPresent {
		return
	}
	w := g.world
	g.catchUp()
	g.OptimalPopulation = OptimalPopulationFor(g.Cell(), g.Culture)
	w.updatedGroups[g.ID] = g

	if g.ExactPopulation < MinGroupPopulation {
		w.markGroupForRemoval(g)
		return
	}

	if !g.considerLandMigration() {
		g.considerSeaMigration()
	}
	g.considerPolityExpansion()
	g.considerTribeFormation()

	for _, id := range sortedIDs(g.Prominences) {
		w.AddPolityToUpdate(g.Prominences[id].Polity)
	}
	for _, id := range sortedIDs(g.FactionCores) {
		w.AddFactionToUpdate(g.FactionCores[id])
	}

	g.scheduleNextUpdate()
}

// catchUp applies population change and culture evolution since the last
// update without rescheduling anything.
func (g *CellGroup) catchUp() {
	span := g.world.Date - g.LastUpdateDate
	if span <= 0 {
		return
	}
	g.ExactPopulation = CalculateNewPopulation(g.ExactPopulation, g.OptimalPopulation, span)
	if g.ExactPopulation < 0 {
		invariant("group", g.ID, "negative population %v", g.ExactPopulation)
	}
	g.updateCulture(span)
	g.LastUpdateDate = g.world.Date
}

// scheduleNextUpdate re-arms the update event. Groups far from their optimal
// population update sooner.
func (g *CellGroup) scheduleNextUpdate() {
	w := g.world
	closeness := 0.0
	if g.OptimalPopulation > 0 {
		closeness = 1 - math.Min(1, math.Abs(g.ExactPopulation-g.OptimalPopulation)/g.OptimalPopulation)
	}
	days := float64(GenerationSpan) * (0.1 + 0.4*closeness) *
		w.RNG.Range(g.Locator, int64(w.Date), rng.GroupUpdateSpan, 0.5, 1.5)

	date, err := w.dateAfter(days)
	if err != nil {
		slog.Warn("group update not scheduled", "group", g.ID, "err", err)
		return
	}
	g.setNextUpdate(date)
}

func (g *CellGroup) setNextUpdate(date Date) {
	g.NextUpdateDate = date
	g.updateEvent.Reset(date)
	g.world.Events.Insert(g.updateEvent)
}

// requestUpdate pulls the group's next update forward to tomorrow. The
// previously queued update event is invalidated, not deleted.
func (g *CellGroup) requestUpdate() {
	if !g.StillPresent {
		return
	}
	next := g.world.Date + 1
	if g.updateEvent.Queued() && g.NextUpdateDate <= next {
		return
	}
	if err := g.world.ValidateTriggerDate(next); err != nil {
		slog.Warn("group update not requested", "group", g.ID, "err", err)
		return
	}
	g.setNextUpdate(next)
}

// IsFactionCoreOf reports whether a faction of p is seated here.
func (g *CellGroup) IsFactionCoreOf(p *Polity) bool {
	for _, f := range g.FactionCores {
		if f.Polity == p {
			return true
		}
	}
	return false
}

// UpdateCellGroupEvent marks a group for update in phase A.
type UpdateCellGroupEvent struct {
	BaseEvent
	Group *CellGroup
}

func newUpdateCellGroupEvent(w *World, g *CellGroup, date Date) *UpdateCellGroupEvent {
	e := &UpdateCellGroupEvent{Group: g}
	e.init(w, UpdateCellGroupEventType, g.Locator, date)
	return e
}

func (e *UpdateCellGroupEvent) CanTrigger() bool {
	return e.Group.StillPresent && e.Group.updateEvent == e
}

func (e *UpdateCellGroupEvent) Trigger() {
	e.world.AddGroupToUpdate(e.Group)
}

// Destroy is a no-op: Update re-arms the same event object.
func (e *UpdateCellGroupEvent) Destroy() {}

func (e *UpdateCellGroupEvent) Record() EventRecord {
	return e.record(e.Group.ID, 0, 0)
}
