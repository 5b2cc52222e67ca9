package engine

import (
	"log/slog"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/world"
)

// Expansion percent bounds.
const (
	MinExpansionPercent = 0.05
	MaxExpansionPercent = 0.25
)

// considerPolityExpansion picks one of the group's polities, weighted by
// prominence, and rolls to spread it into a neighboring group.
func (g *CellGroup) considerPolityExpansion() {
	if g.expansionEvent != nil || len(g.Prominences) == 0 {
		return
	}
	w := g.world
	date := int64(w.Date)

	ids := sortedIDs(g.Prominences)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = g.Prominences[id].Value
	}
	i := w.RNG.WeightedIndex(g.Locator, date, rng.GroupExpansionPolity, weights)
	if i < 0 {
		return
	}
	rec := g.Prominences[ids[i]]

	var targets []*CellGroup
	for _, cell := range w.Map.Neighbors(g.Coord) {
		if t := w.Groups[cell.GroupID]; t != nil && t.StillPresent {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return
	}
	target := targets[w.RNG.Int(g.Locator, date, rng.GroupExpansionTarget, len(targets))]
	targetCell := target.Cell()

	chance := rec.Value * (1 - target.pendingProminence(rec.PolityID)) * targetCell.Accessibility
	if !w.RNG.Chance(g.Locator, date, rng.GroupExpansionRoll, chance) {
		return
	}

	days := landTravelDays(g.Cell(), targetCell) * w.RNG.Range(g.Locator, date, rng.GroupExpansionTravel, 0.5, 1.5)
	span, err := travelSpan(days)
	if err != nil {
		return
	}
	e := newExpandPolityProminenceEvent(w, g, rec.Polity, target, w.Date+span)
	if w.schedule(e) {
		g.expansionEvent = e
	}
}

// ExpandPolityProminenceEvent spreads a polity's prominence from a source
// group into a neighbor.
type ExpandPolityProminenceEvent struct {
	BaseEvent
	Source *CellGroup
	Polity *Polity
	Target *CellGroup
}

func newExpandPolityProminenceEvent(w *World, source *CellGroup, p *Polity, target *CellGroup, date Date) *ExpandPolityProminenceEvent {
	e := &ExpandPolityProminenceEvent{Source: source, Polity: p, Target: target}
	e.init(w, ExpandPolityProminenceEventType, source.Locator, date)
	return e
}

func (e *ExpandPolityProminenceEvent) CanTrigger() bool {
	s := e.Source
	if !s.StillPresent || s.expansionEvent != e {
		return false
	}
	if !e.Polity.StillPresent || !e.Target.StillPresent || s.Prominences[e.Polity.ID] == nil {
		return false
	}
	return world.Distance(s.Coord, e.Target.Coord) == 1
}

// Trigger merges the source's value into the target with a percent drawn in
// [MinExpansionPercent, MaxExpansionPercent), scaling the target's other
// polities down, and lets a faction seated at the source follow.
func (e *ExpandPolityProminenceEvent) Trigger() {
	w := e.world
	s, p, t := e.Source, e.Polity, e.Target
	percent := mathx.Round(w.RNG.Range(s.Locator, int64(w.Date), rng.GroupExpansionPercent, MinExpansionPercent, MaxExpansionPercent))
	t.MergeProminences(map[int64]float64{p.ID: s.Prominences[p.ID].Value}, percent)

	for _, id := range sortedIDs(s.FactionCores) {
		f := s.FactionCores[id]
		if f.Polity == p && f.newCoreGroup == nil && f.ShouldMigrateFactionCore(s, t) {
			f.PrepareNewCoreGroup(t)
		}
	}
	w.AddPolityToUpdate(p)
}

func (e *ExpandPolityProminenceEvent) Destroy() {
	if e.Source.expansionEvent == e {
		e.Source.expansionEvent = nil
	}
}

func (e *ExpandPolityProminenceEvent) Record() EventRecord {
	return e.record(e.Source.ID, e.Polity.ID, e.Target.ID)
}

// removeGroup drops a group whose population fell below the minimum. Faction
// seats move to the polity's best remaining group; factions with nowhere to
// go are removed.
func (w *World) removeGroup(g *CellGroup) {
	if !g.StillPresent || g.ExactPopulation >= MinGroupPopulation {
		return
	}
	for _, id := range sortedIDs(g.FactionCores) {
		f := g.FactionCores[id]
		if alt := f.Polity.bestCoreCandidate(g); alt != nil {
			f.cancelCoreMigration()
			f.setCoreGroup(alt)
			continue
		}
		delete(g.FactionCores, id)
		w.markFactionForRemoval(f)
	}
	for _, id := range sortedIDs(g.factionCoresToBe) {
		g.factionCoresToBe[id].cancelCoreMigration()
	}
	for _, id := range sortedIDs(g.Prominences) {
		g.removeProminence(g.Prominences[id])
	}
	clear(g.prominencesToAdd)

	w.Events.Remove(g.updateEvent)
	if g.migrationEvent != nil {
		w.Events.Remove(g.migrationEvent)
		g.migrationEvent = nil
	}
	if g.expansionEvent != nil {
		w.Events.Remove(g.expansionEvent)
		g.expansionEvent = nil
	}
	if g.tribeFormationEvent != nil {
		w.Events.Remove(g.tribeFormationEvent)
		g.tribeFormationEvent = nil
	}

	if cell := g.Cell(); cell != nil && cell.GroupID == g.ID {
		cell.GroupID = 0
	}
	g.StillPresent = false
	delete(w.Groups, g.ID)
	delete(w.groupsToPostUpdate, g.ID)
	slog.Debug("group removed", "group", g.ID, "coord", g.Coord)
}
