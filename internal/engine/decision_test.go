package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/worldhistory/internal/world"
)

// twoClanTribe builds a tribe seated at the origin with a minor clan seated
// next door.
func twoClanTribe(t *testing.T) (*World, *Polity, *Faction, *Faction) {
	t.Helper()
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 300)
	p := w.formTribe(a)
	b.SetPolityProminence(p, 0.5)
	w.commitProminences()

	dom := p.DominantFaction
	minor := w.createClan(p, b, b.Culture.Preferences)
	dom.Influence, minor.Influence = 0.8, 0.2
	p.addFaction(minor)
	p.normalizeInfluence()
	p.updateDominantFaction()
	p.refreshDistances()
	return w, p, dom, minor
}

func TestDecisionRebuildIsIdempotent(t *testing.T) {
	w, _, dom, minor := twoClanTribe(t)
	rec := w.newDecisionRecord(AcceptInfluenceDemandKind, dom, minor.ID, 0.37, 0.1)

	d1, err := w.buildDecision(rec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	d2, err := w.buildDecision(rec)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if d1.Preferred != d2.Preferred || d1.ID != d2.ID || d1.Description != d2.Description {
		t.Fatalf("rebuilt decision differs: %+v vs %+v", d1, d2)
	}
	for i := range d1.Options {
		if d1.Options[i].Label != d2.Options[i].Label {
			t.Fatalf("option %d label: got=%q want=%q", i, d2.Options[i].Label, d1.Options[i].Label)
		}
	}
	if d1.Record() != rec {
		t.Fatalf("record: got=%+v want=%+v", d1.Record(), rec)
	}
}

func TestDecisionExecutesOnce(t *testing.T) {
	w, p, dom, minor := twoClanTribe(t)
	// Reject chance 0: accepting is preferred.
	d, err := w.buildDecision(w.newDecisionRecord(AcceptInfluenceDemandKind, dom, minor.ID, 0, 0.1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.Preferred != 0 {
		t.Fatalf("preferred: got=%d want=0", d.Preferred)
	}
	if err := d.ExecutePreferredOption(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if math.Abs(dom.Influence-0.7) > 1e-6 || math.Abs(minor.Influence-0.3) > 1e-6 {
		t.Fatalf("influence: got=%v/%v want=0.7/0.3", dom.Influence, minor.Influence)
	}
	if err := d.Execute(1); !errors.Is(err, ErrDecisionResolved) {
		t.Fatalf("second execution: got=%v want=ErrDecisionResolved", err)
	}
	if p.DominantFaction != dom {
		t.Fatalf("dominant faction changed")
	}
}

func TestUnguidedDecisionResolvesAutonomously(t *testing.T) {
	w, _, dom, minor := twoClanTribe(t)
	d, err := w.buildDecision(w.newDecisionRecord(AcceptInfluenceDemandKind, dom, minor.ID, 1, 0.1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w.ResolveDecision(d)
	if d.State != AutonomouslyResolved {
		t.Fatalf("state: got=%s want=%s", d.State, AutonomouslyResolved)
	}
	// Reject chance 1: the demand is rejected and relations sour.
	if got := dom.RelationshipWith(minor); math.Abs(got-0.4) > 1e-6 {
		t.Fatalf("relationship: got=%v want=0.4", got)
	}
	if len(w.PendingDecisions()) != 0 {
		t.Fatalf("autonomous decision left pending")
	}
}

func TestGuidedDecisionWaitsForChoice(t *testing.T) {
	w, _, dom, minor := twoClanTribe(t)
	if err := w.SetFactionGuided(dom.ID, true); err != nil {
		t.Fatalf("guide: %v", err)
	}
	d, err := w.buildDecision(w.newDecisionRecord(AcceptInfluenceDemandKind, dom, minor.ID, 0, 0.1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w.ResolveDecision(d)
	if d.State != EscalatedToGuidance {
		t.Fatalf("state: got=%s want=%s", d.State, EscalatedToGuidance)
	}
	if dom.Influence != 0.8 {
		t.Fatalf("escalated decision already applied: influence=%v", dom.Influence)
	}

	if err := w.ResolvePendingDecision(d.ID+1, 0); !errors.Is(err, ErrUnknownDecision) {
		t.Fatalf("unknown id: got=%v want=ErrUnknownDecision", err)
	}
	if err := w.ResolvePendingDecision(d.ID, 7); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("bad option: got=%v want=ErrInvalidOption", err)
	}
	// Override the preferred option.
	if err := w.ResolvePendingDecision(d.ID, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d.State != PlayerResolved {
		t.Fatalf("state: got=%s want=%s", d.State, PlayerResolved)
	}
	if dom.Influence != 0.8 {
		t.Fatalf("rejected demand moved influence: %v", dom.Influence)
	}
	if len(w.PendingDecisions()) != 0 {
		t.Fatalf("resolved decision still pending")
	}
}

func TestPendingDecisionSurvivesSaveAndLoad(t *testing.T) {
	w, p, dom, minor := twoClanTribe(t)
	p.Guided = true
	d, err := w.buildDecision(w.newDecisionRecord(ClanDemandsInfluenceDecisionKind, minor, dom.ID, 0.5, 0.1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w.ResolveDecision(d)
	if len(w.PendingDecisions()) != 1 {
		t.Fatalf("decision not pending")
	}

	st := w.Synchronize()
	restored, err := Restore(plainsMap(w.MapConfig.Radius), st)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	pending := restored.PendingDecisions()
	if len(pending) != 1 {
		t.Fatalf("pending after load: got=%d want=1", len(pending))
	}
	got := pending[0]
	if got.ID != d.ID || got.Preferred != d.Preferred || got.State != EscalatedToGuidance {
		t.Fatalf("restored decision: got=%+v want id=%d preferred=%d", got, d.ID, d.Preferred)
	}
	if err := restored.ResolvePendingDecision(got.ID, -1); err != nil {
		t.Fatalf("resolve restored: %v", err)
	}
}

func TestRemovedFactionDropsItsDecisions(t *testing.T) {
	w, p, dom, minor := twoClanTribe(t)
	p.Guided = true
	d, err := w.buildDecision(w.newDecisionRecord(ClanDemandsInfluenceDecisionKind, minor, dom.ID, 0.5, 0.1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	w.ResolveDecision(d)
	w.markFactionForRemoval(minor)
	w.processRemovals()
	if len(w.PendingDecisions()) != 0 {
		t.Fatalf("decision of removed faction still pending")
	}
}

func TestMergePolities(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 300)
	pa := w.formTribe(a)
	pb := w.formTribe(b)
	fb := pb.DominantFaction
	w.commitProminences()

	w.mergePolities(pb.ID, pa.ID)
	w.runUpdatePhases()

	if pb.StillPresent || w.Polities[pb.ID] != nil {
		t.Fatalf("merged polity survived")
	}
	if fb.Polity != pa || pa.Factions[fb.ID] != fb {
		t.Fatalf("faction not moved to the surviving polity")
	}
	if got := b.ProminenceValue(pa); got != 1 {
		t.Fatalf("merged prominence: got=%v want=1", got)
	}
	sum := 0.0
	for _, f := range pa.Factions {
		sum += f.Influence
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("influence sum: got=%v want=1", sum)
	}
	checkInvariants(t, w)
}

func TestSplitTribe(t *testing.T) {
	w, p, dom, minor := twoClanTribe(t)
	b := minor.CoreGroup
	if rec := b.PolityProminence(p); rec.ClosestFactionID != minor.ID {
		t.Fatalf("closest faction: got=%d want=%d", rec.ClosestFactionID, minor.ID)
	}

	w.splitTribe(minor.ID, 0.5)
	w.runUpdatePhases()

	q := minor.Polity
	if q == p || !q.StillPresent {
		t.Fatalf("no new tribe founded")
	}
	if q.DominantFaction != minor || q.CoreGroup != b {
		t.Fatalf("new tribe not led from the minor clan's seat")
	}
	if p.Factions[minor.ID] != nil || p.DominantFaction != dom {
		t.Fatalf("old tribe still lists the clan")
	}
	if got := b.ProminenceValue(p); math.Abs(got-0.25) > 1e-6 {
		t.Fatalf("old prominence: got=%v want=0.25", got)
	}
	if got := b.ProminenceValue(q); math.Abs(got-0.25) > 1e-6 {
		t.Fatalf("new prominence: got=%v want=0.25", got)
	}
	checkInvariants(t, w)
}

func TestSimultaneousDemandsGetDistinctIDs(t *testing.T) {
	w, p, dom, minor := twoClanTribe(t)
	c := addGroup(t, w, world.HexCoord{Q: -1}, 300)
	c.SetPolityProminence(p, 0.5)
	w.commitProminences()
	other := w.createClan(p, c, c.Culture.Preferences)
	other.Influence = 0.1
	p.addFaction(other)
	p.normalizeInfluence()
	p.updateDominantFaction()
	p.refreshDistances()
	if p.DominantFaction != dom {
		t.Fatalf("dominant clan changed")
	}
	p.Guided = true

	w.demandInfluence(minor.ID, dom.ID, 0.1)
	w.demandInfluence(other.ID, dom.ID, 0.1)
	pending := w.PendingDecisions()
	if len(pending) != 2 {
		t.Fatalf("pending: got=%d want=2", len(pending))
	}
	first, second := pending[0], pending[1]
	if first.ID == second.ID {
		t.Fatalf("simultaneous demands share id %d", first.ID)
	}

	restored, err := Restore(plainsMap(w.MapConfig.Radius), w.Synchronize())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.PendingDecisions(); len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("restored ids: got=%v want=[%d %d]", got, first.ID, second.ID)
	}

	if err := w.ResolvePendingDecision(second.ID, -1); err != nil {
		t.Fatalf("resolve second: %v", err)
	}
	left := w.PendingDecisions()
	if len(left) != 1 || left[0].ID != first.ID {
		t.Fatalf("resolving the second demand should leave the first: got=%v", left)
	}
	if err := w.ResolvePendingDecision(first.ID, -1); err != nil {
		t.Fatalf("resolve first: %v", err)
	}
}

func TestGuidedPreferredMatchesAutonomous(t *testing.T) {
	cases := []struct {
		name   string
		reject float64
	}{
		{"accept", 0},
		{"reject", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auto, _, autoDom, autoMinor := twoClanTribe(t)
			guided, gp, guidedDom, guidedMinor := twoClanTribe(t)
			if auto.Digest() != guided.Digest() {
				t.Fatalf("worlds differ before the decision")
			}

			d, err := auto.buildDecision(auto.newDecisionRecord(AcceptInfluenceDemandKind, autoDom, autoMinor.ID, tc.reject, 0.1))
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			auto.ResolveDecision(d)
			auto.runUpdatePhases()
			if d.State != AutonomouslyResolved {
				t.Fatalf("state: got=%s want=%s", d.State, AutonomouslyResolved)
			}

			gp.Guided = true
			g, err := guided.buildDecision(guided.newDecisionRecord(AcceptInfluenceDemandKind, guidedDom, guidedMinor.ID, tc.reject, 0.1))
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			guided.ResolveDecision(g)
			if err := guided.ResolvePendingDecision(g.ID, -1); err != nil {
				t.Fatalf("resolve: %v", err)
			}
			gp.Guided = false

			if autoDom.Influence != guidedDom.Influence || autoMinor.Influence != guidedMinor.Influence {
				t.Fatalf("influence: auto=%v/%v guided=%v/%v",
					autoDom.Influence, autoMinor.Influence, guidedDom.Influence, guidedMinor.Influence)
			}
			if a, b := autoDom.RelationshipWith(autoMinor), guidedDom.RelationshipWith(guidedMinor); a != b {
				t.Fatalf("relationship: auto=%v guided=%v", a, b)
			}
			for id, ag := range auto.Groups {
				gg := guided.Groups[id]
				for pid, pp := range ag.Prominences {
					other := gg.Prominences[pid]
					if other == nil || other.Value != pp.Value {
						t.Fatalf("group %d prominence in %d: auto=%+v guided=%+v", id, pid, pp, other)
					}
				}
			}
			if a, b := auto.Digest(), guided.Digest(); a != b {
				t.Fatalf("digest: auto=%s guided=%s", a, b)
			}
		})
	}
}
