package engine

import (
	"github.com/talgya/worldhistory/internal/mathx"
)

// Prominence bounds.
const (
	// MinPolityProminence is the value at or below which a prominence is removed.
	MinPolityProminence = 0.01
	// MinCoreProminence is the floor a faction core group keeps for its polity.
	MinCoreProminence = 0.1

	prominenceSumTolerance = 1e-9
)

// PolityProminence is a polity's standing in one group. Value is the
// committed value read by everyone during an update; NewValue collects the
// pending write until the next commit.
type PolityProminence struct {
	Polity   *Polity
	PolityID int64
	Group    *CellGroup

	Value    float64
	NewValue float64

	FactionCoreDistance float64
	PolityCoreDistance  float64
	ClosestFactionID    int64
	AdministrativeCost  float64
	LastChangeDate      Date
}

// PolityProminence returns the committed prominence of p, or nil.
func (g *CellGroup) PolityProminence(p *Polity) *PolityProminence {
	return g.Prominences[p.ID]
}

// ProminenceValue returns the committed value for p, 0 when absent.
func (g *CellGroup) ProminenceValue(p *Polity) float64 {
	if rec := g.Prominences[p.ID]; rec != nil {
		return rec.Value
	}
	return 0
}

// pendingProminence returns the value p will have at the next commit.
func (g *CellGroup) pendingProminence(id int64) float64 {
	if rec := g.Prominences[id]; rec != nil {
		return rec.NewValue
	}
	return g.prominencesToAdd[id]
}

// pendingProminences returns every pending value by polity id.
func (g *CellGroup) pendingProminences() map[int64]float64 {
	out := make(map[int64]float64, len(g.Prominences)+len(g.prominencesToAdd))
	for id, rec := range g.Prominences {
		out[id] = rec.NewValue
	}
	for id, v := range g.prominencesToAdd {
		out[id] = v
	}
	return out
}

// SetPolityProminence records a pending value for p. A value at or below
// MinPolityProminence queues removal, which must never happen while the group
// seats one of p's factions.
func (g *CellGroup) SetPolityProminence(p *Polity, value float64) {
	value = mathx.Round(mathx.Clamp01(value))
	g.world.AddGroupToPostUpdate(g)
	rec := g.Prominences[p.ID]

	if value <= MinPolityProminence {
		if g.IsFactionCoreOf(p) {
			invariant("group", g.ID, "prominence of polity %d set to %v on a faction core", p.ID, value)
		}
		delete(g.prominencesToAdd, p.ID)
		if rec != nil {
			rec.NewValue = value
			g.prominencesToRemove[p.ID] = true
		}
		return
	}

	if rec != nil {
		rec.NewValue = value
		delete(g.prominencesToRemove, p.ID)
		return
	}
	g.prominencesToAdd[p.ID] = value
}

// adjustProminence is SetPolityProminence with the faction core floor applied.
func (g *CellGroup) adjustProminence(p *Polity, value float64) {
	if g.IsFactionCoreOf(p) {
		value = max(value, MinCoreProminence)
	}
	g.SetPolityProminence(p, value)
}

// MergeProminences blends incoming values into the group's pending values:
// new = old×(1−percent) + incoming×percent for every polity in either set.
func (g *CellGroup) MergeProminences(incoming map[int64]float64, percent float64) {
	current := g.pendingProminences()
	ids := make(map[int64]struct{}, len(current)+len(incoming))
	for id := range current {
		ids[id] = struct{}{}
	}
	for id := range incoming {
		ids[id] = struct{}{}
	}
	for _, id := range sortedIDs(ids) {
		p := g.world.Polities[id]
		if p == nil || !p.StillPresent {
			continue
		}
		g.adjustProminence(p, current[id]*(1-percent)+incoming[id]*percent)
	}
}

// commitProminences applies pending adds, writes NewValue to Value,
// normalizes the sum to at most 1 and drops prominences at or below the
// minimum.
func (g *CellGroup) commitProminences() {
	if !g.StillPresent {
		return
	}
	w := g.world

	for _, id := range sortedIDs(g.prominencesToAdd) {
		p := w.Polities[id]
		if p == nil || !p.StillPresent {
			continue
		}
		v := g.prominencesToAdd[id]
		rec := &PolityProminence{
			Polity:              p,
			PolityID:            id,
			Group:               g,
			Value:               v,
			NewValue:            v,
			FactionCoreDistance: UnreachableDistance,
			PolityCoreDistance:  UnreachableDistance,
			LastChangeDate:      w.Date,
		}
		g.Prominences[id] = rec
		p.addProminence(rec)
	}
	clear(g.prominencesToAdd)

	ids := sortedIDs(g.Prominences)
	sum := 0.0
	for _, id := range ids {
		rec := g.Prominences[id]
		rec.Value = mathx.Round(rec.NewValue)
		sum += rec.Value
	}
	if sum > 1 {
		total := sum
		sum = 0
		for _, id := range ids {
			rec := g.Prominences[id]
			rec.Value = mathx.RoundDown(rec.Value / total)
			sum += rec.Value
		}
	}

	for _, id := range ids {
		rec := g.Prominences[id]
		rec.NewValue = rec.Value
		if rec.Value > MinPolityProminence {
			continue
		}
		if g.IsFactionCoreOf(rec.Polity) {
			invariant("group", g.ID, "removing prominence of polity %d from a faction core", id)
		}
		sum -= rec.Value
		g.removeProminence(rec)
	}
	clear(g.prominencesToRemove)

	if sum < -prominenceSumTolerance || sum > 1+prominenceSumTolerance {
		invariant("group", g.ID, "prominence sum %v outside [0, 1]", sum)
	}
	g.TotalPolityProminenceValue = mathx.Round(max(sum, 0))
	g.refreshHighestProminence()
}

// removeProminence drops a committed prominence immediately.
func (g *CellGroup) removeProminence(rec *PolityProminence) {
	delete(g.Prominences, rec.PolityID)
	delete(g.prominencesToRemove, rec.PolityID)
	rec.Polity.removeProminence(g)
	if g.HighestProminence == rec {
		g.HighestProminence = nil
		g.refreshHighestProminence()
	}
	if g.TotalPolityProminenceValue > 0 {
		g.TotalPolityProminenceValue = mathx.Round(max(g.TotalPolityProminenceValue-rec.Value, 0))
	}
}

// refreshHighestProminence picks the largest committed value, lower polity id
// on ties, and moves territory accordingly.
func (g *CellGroup) refreshHighestProminence() {
	var best *PolityProminence
	for _, id := range sortedIDs(g.Prominences) {
		rec := g.Prominences[id]
		if best == nil || rec.Value > best.Value {
			best = rec
		}
	}
	if best == g.HighestProminence {
		return
	}
	if old := g.HighestProminence; old != nil {
		delete(old.Polity.Territory, g.ID)
	}
	g.HighestProminence = best
	if best != nil {
		best.Polity.Territory[g.ID] = g
	}
}
