package engine

import (
	"testing"

	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// coreHolders counts the groups seating f.
func coreHolders(w *World, f *Faction) int {
	n := 0
	for _, g := range w.Groups {
		if g.FactionCores[f.ID] == f {
			n++
		}
	}
	return n
}

func TestFactionCoreMigratesToLargerGroup(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 10)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 90)
	p := w.formTribe(a)
	f := p.DominantFaction
	f.Preferences = social.Preferences{Cohesion: 0, Authority: 1, Aggression: 0.5, Isolation: 0.5}

	a.SetPolityProminence(p, 0.2)
	b.SetPolityProminence(p, 0.1)
	w.commitProminences()

	if !f.ShouldMigrateFactionCore(a, b) {
		t.Fatalf("migration should be favorable: 90×0.1 against 10×0.2")
	}

	var holders []int
	w.OnEventTriggered = func(WorldEvent) { holders = append(holders, coreHolders(w, f)) }

	e := newClanCoreMigrationEvent(w, f, 1)
	f.coreMigrationEvent = e
	w.Events.Insert(e)
	w.Update()

	if f.CoreGroup != b {
		t.Fatalf("core group: got=%v want=%v", f.CoreGroup.Coord, b.Coord)
	}
	if b.FactionCores[f.ID] != f {
		t.Fatalf("new core does not seat the faction")
	}
	if _, still := a.FactionCores[f.ID]; still {
		t.Fatalf("old core still seats the faction")
	}
	if got := coreHolders(w, f); got != 1 {
		t.Fatalf("groups seating the faction: got=%d want=1", got)
	}
	for i, n := range holders {
		if n != 1 {
			t.Fatalf("event %d saw %d seats", i, n)
		}
	}
	if p.CoreGroup != b {
		t.Fatalf("dominant faction moved but polity core did not")
	}
	if f.NewCoreGroup() != nil || len(b.factionCoresToBe) != 0 {
		t.Fatalf("pending migration not cleared")
	}
	if b.ProminenceValue(p) < MinCoreProminence {
		t.Fatalf("new core below floor: %v", b.ProminenceValue(p))
	}
	if !f.coreMigrationEvent.Queued() {
		t.Fatalf("core migration event not re-armed")
	}
}

func TestCohesiveFactionStaysPut(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 10)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 90)
	p := w.formTribe(a)
	f := p.DominantFaction
	f.Preferences = social.Preferences{Cohesion: 1, Authority: 0}

	a.SetPolityProminence(p, 0.2)
	b.SetPolityProminence(p, 0.1)
	w.commitProminences()

	// (1 + 16) / 0.5 = 34: 9 does not beat 2×34.
	if f.ShouldMigrateFactionCore(a, b) {
		t.Fatalf("cohesive faction should not move")
	}
}

func TestRemovedCoreGroupRelocatesFaction(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 300)
	p := w.formTribe(a)
	f := p.DominantFaction
	b.SetPolityProminence(p, 0.5)
	w.commitProminences()

	a.ExactPopulation = 1
	w.markGroupForRemoval(a)
	w.processRemovals()

	if a.StillPresent {
		t.Fatalf("group not removed")
	}
	if f.CoreGroup != b || !f.StillPresent {
		t.Fatalf("faction not relocated: core=%v present=%v", f.CoreGroup.Coord, f.StillPresent)
	}
	if p.CoreGroup != b {
		t.Fatalf("polity core not relocated")
	}
}

func TestLastGroupRemovalDissolvesPolity(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	p := w.formTribe(a)
	f := p.DominantFaction
	w.commitProminences()

	a.ExactPopulation = 1
	w.markGroupForRemoval(a)
	w.processRemovals()

	if f.StillPresent || w.Factions[f.ID] != nil {
		t.Fatalf("orphaned faction survived")
	}
	if p.StillPresent || w.Polities[p.ID] != nil {
		t.Fatalf("empty polity survived")
	}
}

func TestRelationshipsAreSymmetric(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: 2}, 300)
	fa := w.formTribe(a).DominantFaction
	fb := w.formTribe(b).DominantFaction

	if got := fa.RelationshipWith(fb); got != DefaultRelationship {
		t.Fatalf("default relationship: got=%v want=%v", got, DefaultRelationship)
	}
	fa.SetRelationship(fb, 1.4)
	if fa.RelationshipWith(fb) != 1 || fb.RelationshipWith(fa) != 1 {
		t.Fatalf("relationship not clamped and mirrored: %v / %v", fa.RelationshipWith(fb), fb.RelationshipWith(fa))
	}
}

func TestNormalizeInfluence(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 300)
	p := w.formTribe(a)
	b.SetPolityProminence(p, 0.5)
	w.commitProminences()

	clan := w.createClan(p, b, b.Culture.Preferences)
	clan.Influence = 3
	p.addFaction(clan)
	p.normalizeInfluence()
	p.updateDominantFaction()

	sum := 0.0
	for _, f := range p.Factions {
		sum += f.Influence
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Fatalf("influence sum: got=%v want=1", sum)
	}
	if p.DominantFaction != clan || p.CoreGroup != b {
		t.Fatalf("dominance did not follow influence")
	}
}
