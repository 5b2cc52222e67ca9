package engine

import (
	"fmt"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
)

// Tribe decision constants.
const (
	// TribeSplitRelationship is the relationship with the dominant clan below
	// which a clan considers leaving.
	TribeSplitRelationship = 0.5
	// TribeSplitTransfer is the share of prominence a seceding clan takes
	// from the groups closest to it.
	TribeSplitTransfer = 0.5
	// MergeRelationship is the relationship between dominant clans above
	// which a tribe considers joining a larger one.
	MergeRelationship = 0.6
)

// TribeSplitDecisionEvent lets an estranged clan leave its tribe and found
// a new one.
type TribeSplitDecisionEvent struct {
	BaseEvent
	Faction *Faction
}

func newTribeSplitDecisionEvent(w *World, f *Faction, date Date) *TribeSplitDecisionEvent {
	e := &TribeSplitDecisionEvent{Faction: f}
	e.init(w, TribeSplitDecisionEventType, f.ID, date)
	return e
}

func (e *TribeSplitDecisionEvent) CanTrigger() bool {
	f := e.Faction
	if !f.StillPresent || f.tribeSplitEvent != e || len(f.Polity.Factions) < 2 {
		return false
	}
	dom := f.Polity.DominantFaction
	return dom != nil && dom != f
}

func (e *TribeSplitDecisionEvent) Trigger() {
	w := e.world
	f := e.Faction
	p := f.Polity
	rel := f.RelationshipWith(p.DominantFaction)
	if rel >= TribeSplitRelationship {
		return
	}
	chance := mathx.Clamp01((TribeSplitRelationship - rel) * 2 * 0.5 *
		mathx.Sharpen(1-f.Preferences.Cohesion) * (0.5 + mathx.Clamp01(p.TotalAdministrativeCost)))
	if !w.RNG.Chance(f.ID, int64(w.Date), rng.FactionTribeSplitTrigger, chance) {
		return
	}
	split := mathx.Round(mathx.Clamp01(0.25 * mathx.Sharpen(f.Preferences.Aggression) * (1.5 - rel)))
	w.proposeDecision(w.newDecisionRecord(TribeSplitDecisionKind, f, p.ID, split, TribeSplitTransfer))
}

func (e *TribeSplitDecisionEvent) Destroy() {
	f := e.Faction
	if f.tribeSplitEvent != e {
		return
	}
	f.tribeSplitEvent = nil
	if f.StillPresent && e.world.rearm(e, f.ID, 2, rng.FactionTribeSplitSpan) {
		f.tribeSplitEvent = e
	}
}

func (e *TribeSplitDecisionEvent) Record() EventRecord {
	return e.record(e.Faction.ID, 0, 0)
}

func (w *World) buildTribeSplitDecision(f *Faction, rec DecisionRecord) (*Decision, error) {
	p := w.Polities[rec.TargetID]
	if p == nil {
		return nil, fmt.Errorf("tribe split polity %d: %w", rec.TargetID, ErrDanglingReference)
	}
	fid, transfer := f.ID, rec.Amount
	preferred := 1
	if w.RNG.Float(f.ID, int64(rec.Date), rng.FactionTribeSplitPref) < rec.Chance {
		preferred = 0
	}
	return &Decision{
		Description:      fmt.Sprintf("the %s clan considers leaving the %s tribe", f.Name, p.Name),
		AffectedPolityID: p.ID,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       "Split from the tribe",
				Consequence: "the clan founds a new tribe with the groups closest to it",
				Effect:      func() { w.splitTribe(fid, transfer) },
			},
			{
				Label:       "Remain in the tribe",
				Consequence: "relations with the dominant clan improve",
				Effect: func() {
					if f := w.Factions[fid]; f != nil && f.StillPresent && f.Polity.DominantFaction != nil {
						w.shiftRelationship(fid, f.Polity.DominantFaction.ID, 0.05)
					}
				},
			},
		},
	}, nil
}

// splitTribe moves clan fid into a new tribe, carrying transfer of the old
// tribe's prominence in every group closest to the clan.
func (w *World) splitTribe(fid int64, transfer float64) {
	f := w.Factions[fid]
	if f == nil || !f.StillPresent || f.IsDominant() || len(f.Polity.Factions) < 2 {
		return
	}
	old := f.Polity
	f.cancelCoreMigration()
	old.removeFaction(f)
	p := w.createTribe(f.CoreGroup, f)

	for _, id := range sortedIDs(old.Prominences) {
		rec := old.Prominences[id]
		g := rec.Group
		if rec.ClosestFactionID != f.ID && g != f.CoreGroup {
			continue
		}
		v := g.pendingProminence(old.ID)
		moved := mathx.Round(v * transfer)
		g.adjustProminence(old, v-moved)
		g.adjustProminence(p, g.pendingProminence(p.ID)+moved)
	}

	w.AddPolityToUpdate(old)
	w.logEvent("tribe", "the %s clan left the %s tribe and founded the %s tribe", f.Name, old.Name, p.Name)
}

// FosterTribeRelationDecisionEvent lets a tribe court a neighbor it is in
// contact with.
type FosterTribeRelationDecisionEvent struct {
	BaseEvent
	Polity *Polity
}

func newFosterTribeRelationDecisionEvent(w *World, p *Polity, date Date) *FosterTribeRelationDecisionEvent {
	e := &FosterTribeRelationDecisionEvent{Polity: p}
	e.init(w, FosterTribeRelationDecisionEventType, p.ID, date)
	return e
}

func (e *FosterTribeRelationDecisionEvent) CanTrigger() bool {
	p := e.Polity
	return p.StillPresent && p.fosterEvent == e && p.DominantFaction != nil && len(p.Contacts) > 0
}

func (e *FosterTribeRelationDecisionEvent) Trigger() {
	w := e.world
	p := e.Polity
	dom := p.DominantFaction
	date := int64(w.Date)

	ids := sortedIDs(p.Contacts)
	weights := make([]float64, len(ids))
	for i, id := range ids {
		weights[i] = p.Contacts[id].Strength
	}
	i := w.RNG.WeightedIndex(p.ID, date, rng.PolityContactTarget, weights)
	if i < 0 {
		return
	}
	q := w.Polities[ids[i]]
	if q == nil || !q.StillPresent || q.DominantFaction == nil {
		return
	}
	openness := mathx.Sharpen(1 - dom.Preferences.Isolation)
	chance := mathx.Clamp01(0.5 * openness * (1 - dom.RelationshipWith(q.DominantFaction)))
	if !w.RNG.Chance(p.ID, date, rng.PolityFosterTrigger, chance) {
		return
	}
	foster := mathx.Round(mathx.Clamp01(0.5 * openness * (0.5 + dom.Leader.Wisdom)))
	improvement := mathx.Round(w.RNG.Range(p.ID, date, rng.PolityFosterImprovement, 0.1, 0.3))
	w.proposeDecision(w.newDecisionRecord(FosterTribeRelationDecisionKind, dom, q.ID, foster, improvement))
}

func (e *FosterTribeRelationDecisionEvent) Destroy() {
	p := e.Polity
	if p.fosterEvent != e {
		return
	}
	p.fosterEvent = nil
	if p.StillPresent && e.world.rearm(e, p.ID, 1, rng.PolityFosterSpan) {
		p.fosterEvent = e
	}
}

func (e *FosterTribeRelationDecisionEvent) Record() EventRecord {
	return e.record(e.Polity.ID, 0, 0)
}

func (w *World) buildFosterTribeRelationDecision(dom *Faction, rec DecisionRecord) (*Decision, error) {
	q := w.Polities[rec.TargetID]
	if q == nil {
		return nil, fmt.Errorf("foster relation polity %d: %w", rec.TargetID, ErrDanglingReference)
	}
	did, qid, improvement := dom.ID, q.ID, rec.Amount
	preferred := 1
	if w.RNG.Float(dom.ID, int64(rec.Date), rng.PolityFosterPreference) < rec.Chance {
		preferred = 0
	}
	return &Decision{
		Description:      fmt.Sprintf("the %s tribe considers fostering relations with the %s tribe", dom.Polity.Name, q.Name),
		AffectedPolityID: dom.Polity.ID,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       "Foster the relationship",
				Consequence: "relations between the dominant clans improve",
				Effect:      func() { w.fosterRelation(did, qid, improvement) },
			},
			{
				Label:       "Keep to ourselves",
				Consequence: "relations between the dominant clans cool",
				Effect: func() {
					if q := w.Polities[qid]; q != nil && q.StillPresent && q.DominantFaction != nil {
						w.shiftRelationship(did, q.DominantFaction.ID, -0.05)
					}
				},
			},
		},
	}, nil
}

func (w *World) fosterRelation(did, qid int64, improvement float64) {
	dom := w.Factions[did]
	q := w.Polities[qid]
	if dom == nil || !dom.StillPresent || q == nil || !q.StillPresent || q.DominantFaction == nil {
		return
	}
	other := q.DominantFaction
	rel := dom.RelationshipWith(other)
	dom.SetRelationship(other, rel+(1-rel)*improvement)
	w.logEvent("tribe", "the %s tribe fostered relations with the %s tribe", dom.Polity.Name, q.Name)
}

// MergeTribesDecisionEvent lets a tribe on good terms with a larger neighbor
// join it.
type MergeTribesDecisionEvent struct {
	BaseEvent
	Polity *Polity
}

func newMergeTribesDecisionEvent(w *World, p *Polity, date Date) *MergeTribesDecisionEvent {
	e := &MergeTribesDecisionEvent{Polity: p}
	e.init(w, MergeTribesDecisionEventType, p.ID, date)
	return e
}

func (e *MergeTribesDecisionEvent) CanTrigger() bool {
	p := e.Polity
	return p.StillPresent && p.mergeEvent == e && p.DominantFaction != nil && len(p.Contacts) > 0
}

// mergeTarget is the larger contact with the strongest overlap.
func (p *Polity) mergeTarget() *Polity {
	var best *Polity
	bestStrength := 0.0
	for _, id := range sortedIDs(p.Contacts) {
		q := p.world.Polities[id]
		if q == nil || !q.StillPresent || q.DominantFaction == nil || q.TotalPopulation <= p.TotalPopulation {
			continue
		}
		if s := p.Contacts[id].Strength; s > bestStrength {
			best, bestStrength = q, s
		}
	}
	return best
}

func (e *MergeTribesDecisionEvent) Trigger() {
	w := e.world
	p := e.Polity
	dom := p.DominantFaction
	q := p.mergeTarget()
	if q == nil {
		return
	}
	rel := dom.RelationshipWith(q.DominantFaction)
	if rel < MergeRelationship {
		return
	}
	chance := mathx.Clamp01((rel - 0.5) * mathx.Sharpen(1-dom.Preferences.Isolation))
	if !w.RNG.Chance(p.ID, int64(w.Date), rng.PolityMergeTrigger, chance) {
		return
	}
	merge := mathx.Round(mathx.Clamp01(0.5 * rel * (1.5 - dom.Preferences.Authority)))
	w.proposeDecision(w.newDecisionRecord(MergeTribesDecisionKind, dom, q.ID, merge, 0))
}

func (e *MergeTribesDecisionEvent) Destroy() {
	p := e.Polity
	if p.mergeEvent != e {
		return
	}
	p.mergeEvent = nil
	if p.StillPresent && e.world.rearm(e, p.ID, 2, rng.PolityMergeSpan) {
		p.mergeEvent = e
	}
}

func (e *MergeTribesDecisionEvent) Record() EventRecord {
	return e.record(e.Polity.ID, 0, 0)
}

func (w *World) buildMergeTribesDecision(dom *Faction, rec DecisionRecord) (*Decision, error) {
	q := w.Polities[rec.TargetID]
	if q == nil {
		return nil, fmt.Errorf("merge target polity %d: %w", rec.TargetID, ErrDanglingReference)
	}
	pid, qid, did := dom.Polity.ID, q.ID, dom.ID
	preferred := 1
	if w.RNG.Float(dom.ID, int64(rec.Date), rng.PolityMergePreference) < rec.Chance {
		preferred = 0
	}
	return &Decision{
		Description:      fmt.Sprintf("the %s tribe considers joining the %s tribe", dom.Polity.Name, q.Name),
		AffectedPolityID: pid,
		Preferred:        preferred,
		Options: []Option{
			{
				Label:       fmt.Sprintf("Join the %s tribe", q.Name),
				Consequence: "the tribe's clans and lands pass to the larger tribe",
				Effect:      func() { w.mergePolities(pid, qid) },
			},
			{
				Label:       "Remain independent",
				Consequence: "relations between the dominant clans cool",
				Effect: func() {
					if q := w.Polities[qid]; q != nil && q.StillPresent && q.DominantFaction != nil {
						w.shiftRelationship(did, q.DominantFaction.ID, -0.05)
					}
				},
			},
		},
	}, nil
}

// mergePolities folds src into dst: clans join dst with influence weighted by
// population and src prominence is added onto dst in every group.
func (w *World) mergePolities(srcID, dstID int64) {
	src := w.Polities[srcID]
	dst := w.Polities[dstID]
	if src == nil || !src.StillPresent || dst == nil || !dst.StillPresent || src == dst {
		return
	}
	srcShare := 0.5
	if total := src.TotalPopulation + dst.TotalPopulation; total > 0 {
		srcShare = src.TotalPopulation / total
	}
	for _, id := range sortedIDs(dst.Factions) {
		f := dst.Factions[id]
		f.Influence = mathx.Round(f.Influence * (1 - srcShare))
	}
	for _, id := range sortedIDs(src.Factions) {
		f := src.Factions[id]
		f.cancelCoreMigration()
		f.Influence = mathx.Round(f.Influence * srcShare)
		delete(src.Factions, id)
		dst.addFaction(f)
		w.AddFactionToUpdate(f)
	}
	dst.normalizeInfluence()
	dst.updateDominantFaction()

	for _, id := range sortedIDs(src.Prominences) {
		g := src.Prominences[id].Group
		v := g.pendingProminence(src.ID)
		g.adjustProminence(dst, g.pendingProminence(dst.ID)+v)
		g.SetPolityProminence(src, 0)
	}

	if src.fosterEvent != nil {
		w.Events.Remove(src.fosterEvent)
		src.fosterEvent = nil
	}
	if src.mergeEvent != nil {
		w.Events.Remove(src.mergeEvent)
		src.mergeEvent = nil
	}
	w.markPolityForRemoval(src)
	w.AddPolityToUpdate(dst)
	w.logEvent("tribe", "the %s tribe joined the %s tribe", src.Name, dst.Name)
}
