package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// Migration constants.
const (
	MinMigrationPercent = 0.02
	MaxMigrationPercent = 0.25

	MinTravelDays Date = 1

	// LandTravelDays is the base time to move into a neighboring cell.
	LandTravelDays = 120.0
	// SeaTravelDaysPerCell is the time to cross one ocean cell at travel factor 1.
	SeaTravelDaysPerCell = 20.0

	AltitudeDeltaFactor = 4.0
)

// MigrationType distinguishes overland moves from sea crossings.
type MigrationType int64

const (
	LandMigration MigrationType = 0
	SeaMigration  MigrationType = 1
)

// MigratingGroup is population in transit. It is split from its source when
// the migration triggers and merged or settled in phase B.
type MigratingGroup struct {
	SourceID    int64
	Target      world.HexCoord
	Type        MigrationType
	Direction   int
	Population  float64
	Culture     social.Culture
	Prominences map[int64]float64
}

// migrationValue rates a cell as a destination. incoming is the population
// expected to arrive; for the group's own cell it is ignored.
func (g *CellGroup) migrationValue(cell *world.Cell, incoming float64) float64 {
	if cell == nil || !cell.IsLand() {
		return 0
	}
	optimal := OptimalPopulationFor(cell, g.Culture)
	if optimal <= 0 {
		return 0
	}
	existing := 0.0
	switch {
	case cell.GroupID == g.ID:
		existing, incoming = g.ExactPopulation, 0
	case cell.GroupID != 0:
		if other := g.world.Groups[cell.GroupID]; other != nil {
			existing = other.ExactPopulation
		}
	}
	own := g.Cell()
	altitude := 1 / (1 + AltitudeDeltaFactor*math.Abs(cell.Altitude-own.Altitude))
	competition := optimal / (optimal + existing + incoming)
	relative := math.Min(1, optimal/math.Max(g.OptimalPopulation, 1))
	return mathx.Round(cell.Area * altitude * competition * relative)
}

// sampleMigrationDirection walks around the preferred direction: half the
// time straight on, 40% veering one step, 10% anywhere.
func (g *CellGroup) sampleMigrationDirection() int {
	w := g.world
	date := int64(w.Date)
	pref := g.PreferredMigrationDirection
	roll := w.RNG.Float(g.Locator, date, rng.GroupMigrationWalk)
	switch {
	case roll < 0.5:
		return pref
	case roll < 0.7:
		return (pref + 1) % world.DirectionCount
	case roll < 0.9:
		return (pref + world.DirectionCount - 1) % world.DirectionCount
	default:
		return w.RNG.Int(g.Locator, date, rng.GroupMigrationDirection, world.DirectionCount)
	}
}

func landTravelDays(from, to *world.Cell) float64 {
	return LandTravelDays * (1 + AltitudeDeltaFactor*math.Abs(to.Altitude-from.Altitude)) /
		(0.25 + 0.75*to.Accessibility)
}

// considerLandMigration rolls for a move into one neighboring cell.
func (g *CellGroup) considerLandMigration() bool {
	if g.migrationEvent != nil {
		return false
	}
	w := g.world
	date := int64(w.Date)
	own := g.Cell()
	target := w.Map.Get(g.Coord.Neighbor(g.sampleMigrationDirection()))
	if target == nil || !target.IsLand() {
		return false
	}

	local := g.migrationValue(own, 0)
	cand := g.migrationValue(target, g.ExactPopulation*MaxMigrationPercent/2)
	if cand <= 0 {
		return false
	}
	if !w.RNG.Chance(g.Locator, date, rng.GroupMigrationRoll, cand/(local+cand)) {
		return false
	}

	days := landTravelDays(own, target) * w.RNG.Range(g.Locator, date, rng.GroupMigrationTravel, 0.5, 1.5)
	return g.scheduleMigration(target.Coord, LandMigration, days)
}

// considerSeaMigration rolls for a crossing along the cell's sea route.
func (g *CellGroup) considerSeaMigration() bool {
	if g.migrationEvent != nil {
		return false
	}
	w := g.world
	own := g.Cell()
	if !own.Coastal {
		return false
	}
	travel := g.Culture.TravelFactor()
	if travel <= 0 {
		return false
	}
	route := w.Map.SeaRoute(g.Coord)
	if route == nil || !route.Consolidated {
		return false
	}
	dest := w.Map.Get(route.Destination)

	local := g.migrationValue(own, 0)
	cand := g.migrationValue(dest, g.ExactPopulation*MaxMigrationPercent/2)
	if cand <= 0 {
		return false
	}
	if !w.RNG.Chance(g.Locator, int64(w.Date), rng.GroupSeaMigrationRoll, travel*cand/(local+cand)) {
		return false
	}
	days := float64(route.Length()) * SeaTravelDaysPerCell / travel
	return g.scheduleMigration(dest.Coord, SeaMigration, days)
}

// travelSpan validates a travel time into [MinTravelDays, MaxUpdateSpan].
func travelSpan(days float64) (Date, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 0 {
		return 0, fmt.Errorf("travel time %v: %w", days, ErrInvalidTriggerDate)
	}
	span := Date(math.Ceil(days))
	return max(MinTravelDays, min(span, MaxUpdateSpan)), nil
}

func (g *CellGroup) scheduleMigration(target world.HexCoord, kind MigrationType, days float64) bool {
	w := g.world
	span, err := travelSpan(days)
	if err != nil {
		slog.Warn("migration not scheduled", "group", g.ID, "err", err)
		return false
	}
	e := newMigrateGroupEvent(w, g, target, kind, w.Date+span)
	if !w.schedule(e) {
		return false
	}
	g.migrationEvent = e
	return true
}

// migrationPercent is the share of the group leaving for target, larger the
// more the destination outvalues home.
func (g *CellGroup) migrationPercent(target *world.Cell) float64 {
	w := g.world
	local := g.migrationValue(g.Cell(), 0)
	cand := g.migrationValue(target, g.ExactPopulation*MaxMigrationPercent/2)
	advantage := 0.0
	if local+cand > 0 {
		advantage = mathx.Clamp01((cand - local) / (cand + local))
	}
	roll := w.RNG.Float(g.Locator, int64(w.Date), rng.GroupMigrationPercent)
	return mathx.Round(MinMigrationPercent + (MaxMigrationPercent-MinMigrationPercent)*advantage*roll)
}

// splitMigrants removes migrants from the group and returns them in transit,
// carrying the group's culture and current prominence values.
func (g *CellGroup) splitMigrants(migrants float64, target world.HexCoord, kind MigrationType) *MigratingGroup {
	g.ExactPopulation = mathx.Round(g.ExactPopulation - migrants)
	if g.ExactPopulation < 0 {
		invariant("group", g.ID, "migration of %v left negative population", migrants)
	}
	dir := g.PreferredMigrationDirection
	for d, n := range g.Coord.Neighbors() {
		if n == target {
			dir = d
			break
		}
	}
	return &MigratingGroup{
		SourceID:    g.ID,
		Target:      target,
		Type:        kind,
		Direction:   dir,
		Population:  migrants,
		Culture:     g.Culture,
		Prominences: g.pendingProminences(),
	}
}

// applyMigrations settles everything in transit. Runs in phase B, in trigger
// order.
func (w *World) applyMigrations() {
	batch := w.migratingGroups
	w.migratingGroups = nil
	for _, mg := range batch {
		cell := w.Map.Get(mg.Target)
		if cell == nil || !cell.IsLand() {
			invariant("group", mg.SourceID, "migration target %v is not land", mg.Target)
		}
		if cell.GroupID != 0 {
			if t := w.Groups[cell.GroupID]; t != nil && t.StillPresent {
				t.absorb(mg)
				continue
			}
		}
		w.settle(cell, mg)
	}
}

// absorb merges migrants into the group, weighting culture and prominences by
// the migrants' share of the combined population.
func (g *CellGroup) absorb(mg *MigratingGroup) {
	g.catchUp()
	before := g.ExactPopulation
	percent := mg.Population / (before + mg.Population)
	g.Culture.Blend(mg.Culture, percent)
	g.MergeProminences(mg.Prominences, percent)
	g.ExactPopulation = mathx.Round(before + mg.Population)
	g.requestUpdate()
}

// settle founds a new group from migrants on an empty cell.
func (w *World) settle(cell *world.Cell, mg *MigratingGroup) *CellGroup {
	g := w.newGroup(cell, mg.Population, mg.Culture, mg.Direction)
	for _, id := range sortedIDs(mg.Prominences) {
		p := w.Polities[id]
		if p == nil || !p.StillPresent || mg.Prominences[id] <= MinPolityProminence {
			continue
		}
		g.SetPolityProminence(p, mg.Prominences[id])
	}
	g.OptimalPopulation = OptimalPopulationFor(cell, g.Culture)
	g.scheduleNextUpdate()
	if mg.Type == SeaMigration {
		w.logEvent("migration", "settlers from group %d crossed the sea to %v", mg.SourceID, cell.Coord)
	}
	return g
}

// MigrateGroupEvent moves part of a group into a target cell.
type MigrateGroupEvent struct {
	BaseEvent
	Group  *CellGroup
	Target world.HexCoord
	Kind   MigrationType
}

func newMigrateGroupEvent(w *World, g *CellGroup, target world.HexCoord, kind MigrationType, date Date) *MigrateGroupEvent {
	e := &MigrateGroupEvent{Group: g, Target: target, Kind: kind}
	e.init(w, MigrateGroupEventType, g.Locator, date)
	return e
}

func (e *MigrateGroupEvent) CanTrigger() bool {
	g := e.Group
	if !g.StillPresent || g.migrationEvent != e {
		return false
	}
	cell := e.world.Map.Get(e.Target)
	if cell == nil || !cell.IsLand() || cell.GroupID == g.ID {
		return false
	}
	switch e.Kind {
	case LandMigration:
		if world.Distance(g.Coord, e.Target) != 1 {
			return false
		}
	case SeaMigration:
		route := e.world.Map.SeaRoute(g.Coord)
		if route == nil || route.Destination != e.Target || route.Length() > world.MaxSeaRouteLength {
			return false
		}
	}
	return g.ExactPopulation >= 2*MinGroupPopulation
}

func (e *MigrateGroupEvent) Trigger() {
	w := e.world
	g := e.Group
	g.catchUp()
	percent := g.migrationPercent(w.Map.Get(e.Target))
	migrants := mathx.Round(g.ExactPopulation * percent)
	if migrants < MinGroupPopulation {
		return
	}
	mg := g.splitMigrants(migrants, e.Target, e.Kind)
	w.migratingGroups = append(w.migratingGroups, mg)
	if e.Kind == LandMigration {
		g.PreferredMigrationDirection = mg.Direction
	}
	g.requestUpdate()
}

func (e *MigrateGroupEvent) Destroy() {
	if e.Group.migrationEvent == e {
		e.Group.migrationEvent = nil
	}
}

func (e *MigrateGroupEvent) Record() EventRecord {
	return e.record(e.Group.ID, e.Target.Locator(), int64(e.Kind))
}
