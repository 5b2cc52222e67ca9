package engine

import (
	"fmt"
	"math"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
)

// rearm re-inserts a recurring event generations×[0.5, 1.5) generations
// ahead. Returns false when the date is invalid.
func (w *World) rearm(e WorldEvent, entity int64, generations float64, off rng.Offset) bool {
	days := generations * float64(GenerationSpan) * w.RNG.Range(entity, int64(w.Date), off, 0.5, 1.5)
	date, err := w.dateAfter(days)
	if err != nil {
		return false
	}
	e.base().Reset(date)
	return w.schedule(e)
}

// splitCandidate is the group closest to f that would carry a new clan best:
// large, loyal and far from the seat.
func (f *Faction) splitCandidate() *CellGroup {
	var best *CellGroup
	bestScore := 0.0
	for _, id := range sortedIDs(f.Polity.Prominences) {
		rec := f.Polity.Prominences[id]
		g := rec.Group
		if rec.ClosestFactionID != f.ID || g == f.CoreGroup || len(g.FactionCores) > 0 || len(g.factionCoresToBe) > 0 {
			continue
		}
		score := g.ExactPopulation * rec.Value * math.Min(rec.FactionCoreDistance, MaxAdministrativeDistance)
		if score > bestScore {
			best, bestScore = g, score
		}
	}
	return best
}

// ClanSplitDecisionEvent lets an overstretched clan face part of its people
// breaking away.
type ClanSplitDecisionEvent struct {
	BaseEvent
	Faction *Faction
}

func newClanSplitDecisionEvent(w *World, f *Faction, date Date) *ClanSplitDecisionEvent {
	e := &ClanSplitDecisionEvent{Faction: f}
	e.init(w, ClanSplitDecisionEventType, f.ID, date)
	return e
}

func (e *ClanSplitDecisionEvent) CanTrigger() bool {
	f := e.Faction
	return f.StillPresent && f.splitEvent == e && len(f.Polity.Prominences) >= 2
}

func (e *ClanSplitDecisionEvent) Trigger() {
	w := e.world
	f := e.Faction
	date := int64(w.Date)
	load := mathx.Clamp01(f.Polity.TotalAdministrativeCost)
	chance := mathx.Clamp01(0.5 * load * mathx.Sharpen(1-f.Preferences.Cohesion))
	if !w.RNG.Chance(f.ID, date, rng.FactionSplitTrigger, chance) {
		return
	}
	target := f.splitCandidate()
	if target == nil {
		return
	}
	prevent := mathx.Round(mathx.Clamp01(0.25 * mathx.Sharpen(f.Preferences.Authority) * (0.5 + f.Leader.Charisma)))
	share := mathx.Round(w.RNG.Range(f.ID, date, rng.FactionSplitInfluence, 0.2, 0.5))
	w.proposeDecision(w.newDecisionRecord(ClanSplitDecisionKind, f, target.ID, prevent, share))
}

func (e *ClanSplitDecisionEvent) Destroy() {
	f := e.Faction
	if f.splitEvent != e {
		return
	}
	f.splitEvent = nil
	if f.StillPresent && e.world.rearm(e, f.ID, 1, rng.FactionSplitSpan) {
		f.splitEvent = e
	}
}

func (e *ClanSplitDecisionEvent) Record() EventRecord {
	return e.record(e.Faction.ID, 0, 0)
}

func (w *World) buildClanSplitDecision(f *Faction, rec DecisionRecord) (*Decision, error) {
	g := w.Groups[rec.TargetID]
	if g == nil {
		return nil, fmt.Errorf("clan split group %d: %w", rec.TargetID, ErrDanglingReference)
	}
	fid, gid, share := f.ID, g.ID, rec.Amount
	preferred := 1
	if w.RNG.Float(f.ID, int64(rec.Date), rng.FactionSplitPreference) >= rec.Chance {
		preferred = 0
	}
	return &Decision{
		Description:      fmt.Sprintf("the people at %v want to break away from the %s clan", g.Coord, f.Name),
		AffectedPolityID: f.Polity.ID,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       "Allow them to form a new clan",
				Consequence: "a new clan takes part of the clan's influence",
				Effect:      func() { w.splitClan(fid, gid, share) },
			},
			{
				Label:       "Prevent the split",
				Consequence: "the clan grows more cohesive",
				Effect:      func() { w.preventClanSplit(fid) },
			},
		},
	}, nil
}

// splitClan seats a new clan in group gid, taking share of fid's influence.
func (w *World) splitClan(fid, gid int64, share float64) {
	f := w.Factions[fid]
	g := w.Groups[gid]
	if f == nil || !f.StillPresent || g == nil || !g.StillPresent || len(g.FactionCores) > 0 {
		return
	}
	p := f.Polity
	if g.Prominences[p.ID] == nil {
		return
	}
	clan := w.createClan(p, g, g.Culture.Preferences)
	clan.Influence = mathx.Round(f.Influence * share)
	f.Influence = mathx.Round(f.Influence - clan.Influence)
	p.addFaction(clan)
	p.normalizeInfluence()
	p.updateDominantFaction()
	g.adjustProminence(p, g.pendingProminence(p.ID))

	w.AddFactionToUpdate(f)
	w.AddPolityToUpdate(p)
	w.logEvent("clan", "the %s clan split from the %s clan at %v", clan.Name, f.Name, g.Coord)
}

func (w *World) preventClanSplit(fid int64) {
	f := w.Factions[fid]
	if f == nil || !f.StillPresent {
		return
	}
	f.Preferences.Cohesion = mathx.Round(mathx.Clamp01(f.Preferences.Cohesion + 0.05))
}

// ClanDemandsInfluenceDecisionEvent lets a minor clan press the dominant clan
// for a larger share of power.
type ClanDemandsInfluenceDecisionEvent struct {
	BaseEvent
	Faction *Faction
}

func newClanDemandsInfluenceDecisionEvent(w *World, f *Faction, date Date) *ClanDemandsInfluenceDecisionEvent {
	e := &ClanDemandsInfluenceDecisionEvent{Faction: f}
	e.init(w, ClanDemandsInfluenceDecisionEventType, f.ID, date)
	return e
}

func (e *ClanDemandsInfluenceDecisionEvent) CanTrigger() bool {
	f := e.Faction
	if !f.StillPresent || f.demandEvent != e {
		return false
	}
	dom := f.Polity.DominantFaction
	return dom != nil && dom != f
}

func (e *ClanDemandsInfluenceDecisionEvent) Trigger() {
	w := e.world
	f := e.Faction
	dom := f.Polity.DominantFaction
	rel := f.RelationshipWith(dom)
	chance := mathx.Clamp01(0.5 * mathx.Sharpen(f.Preferences.Aggression) * (1 - rel) * (1 - f.Influence))
	if !w.RNG.Chance(f.ID, int64(w.Date), rng.FactionDemandTrigger, chance) {
		return
	}
	demand := mathx.Round(mathx.Clamp01(0.25 * mathx.Sharpen(f.Preferences.Aggression) * (0.5 + f.Leader.Charisma)))
	amount := mathx.Round(0.2 * math.Min(dom.Influence, 1-f.Influence))
	w.proposeDecision(w.newDecisionRecord(ClanDemandsInfluenceDecisionKind, f, dom.ID, demand, amount))
}

func (e *ClanDemandsInfluenceDecisionEvent) Destroy() {
	f := e.Faction
	if f.demandEvent != e {
		return
	}
	f.demandEvent = nil
	if f.StillPresent && e.world.rearm(e, f.ID, 1, rng.FactionDemandSpan) {
		f.demandEvent = e
	}
}

func (e *ClanDemandsInfluenceDecisionEvent) Record() EventRecord {
	return e.record(e.Faction.ID, 0, 0)
}

func (w *World) buildClanDemandsInfluenceDecision(f *Faction, rec DecisionRecord) (*Decision, error) {
	dom := w.Factions[rec.TargetID]
	if dom == nil {
		return nil, fmt.Errorf("influence demand target %d: %w", rec.TargetID, ErrDanglingReference)
	}
	fid, did, amount := f.ID, dom.ID, rec.Amount
	preferred := 1
	if w.RNG.Float(f.ID, int64(rec.Date), rng.FactionDemandPreference) < rec.Chance {
		preferred = 0
	}
	return &Decision{
		Description:      fmt.Sprintf("the %s clan weighs demanding more influence from the %s clan", f.Name, dom.Name),
		AffectedPolityID: f.Polity.ID,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       "Demand more influence",
				Consequence: fmt.Sprintf("the %s clan must accept or reject the demand", dom.Name),
				Effect:      func() { w.demandInfluence(fid, did, amount) },
			},
			{
				Label:       "Avoid making demands",
				Consequence: "relations with the dominant clan improve slightly",
				Effect:      func() { w.shiftRelationship(fid, did, 0.02) },
			},
		},
	}, nil
}

// demandInfluence puts the follow-up decision to the dominant clan.
func (w *World) demandInfluence(fid, did int64, amount float64) {
	f := w.Factions[fid]
	dom := w.Factions[did]
	if f == nil || !f.StillPresent || dom == nil || !dom.StillPresent || f.Polity != dom.Polity {
		return
	}
	rel := dom.RelationshipWith(f)
	reject := mathx.Round(mathx.Clamp01(0.25 * mathx.Sharpen(dom.Preferences.Authority) * (1.5 - rel)))
	w.proposeDecision(w.newDecisionRecord(AcceptInfluenceDemandKind, dom, f.ID, reject, amount))
}

func (w *World) buildAcceptInfluenceDemandDecision(dom *Faction, rec DecisionRecord) (*Decision, error) {
	f := w.Factions[rec.TargetID]
	if f == nil {
		return nil, fmt.Errorf("influence demand from %d: %w", rec.TargetID, ErrDanglingReference)
	}
	did, fid, amount := dom.ID, f.ID, rec.Amount
	preferred := 0
	if w.RNG.Float(dom.ID, int64(rec.Date), rng.FactionRejectPreference) < rec.Chance {
		preferred = 1
	}
	return &Decision{
		Description:      fmt.Sprintf("the %s clan demands more influence from the %s clan", f.Name, dom.Name),
		AffectedPolityID: dom.Polity.ID,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       "Accept the demands",
				Consequence: fmt.Sprintf("the %s clan gains influence", f.Name),
				Effect: func() {
					w.transferInfluence(did, fid, amount)
					w.shiftRelationship(did, fid, 0.05)
				},
			},
			{
				Label:       "Reject the demands",
				Consequence: fmt.Sprintf("relations with the %s clan worsen", f.Name),
				Effect:      func() { w.shiftRelationship(did, fid, -0.1) },
			},
		},
	}, nil
}

// transferInfluence moves up to amount of influence between two clans of the
// same polity.
func (w *World) transferInfluence(from, to int64, amount float64) {
	a := w.Factions[from]
	b := w.Factions[to]
	if a == nil || !a.StillPresent || b == nil || !b.StillPresent || a.Polity != b.Polity {
		return
	}
	x := math.Min(amount, a.Influence)
	a.Influence = mathx.Round(a.Influence - x)
	b.Influence = mathx.Round(b.Influence + x)
	a.Polity.normalizeInfluence()
	a.Polity.updateDominantFaction()
	w.AddPolityToUpdate(a.Polity)
	w.logEvent("clan", "the %s clan ceded influence to the %s clan", a.Name, b.Name)
}

func (w *World) shiftRelationship(a, b int64, delta float64) {
	fa := w.Factions[a]
	fb := w.Factions[b]
	if fa == nil || !fa.StillPresent || fb == nil || !fb.StillPresent {
		return
	}
	fa.SetRelationship(fb, fa.RelationshipWith(fb)+delta)
}
