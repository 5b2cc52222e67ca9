package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/worldhistory/internal/world"
)

func TestMergeProminencesBlendsByPercent(t *testing.T) {
	w := newTestWorld(t)
	core := addGroup(t, w, world.HexCoord{}, 300)
	target := addGroup(t, w, world.HexCoord{Q: 2}, 300)
	p := w.formTribe(core)
	target.SetPolityProminence(p, 0.6)
	w.commitProminences()

	target.MergeProminences(map[int64]float64{p.ID: 0.4}, 0.5)
	w.commitProminences()

	if got := target.ProminenceValue(p); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("merged prominence: got=%v want=0.5", got)
	}
	if p.Prominences[target.ID] == nil {
		t.Fatalf("polity lost track of the group")
	}
}

func TestMergeProminencesScalesOtherPolities(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: -3}, 300)
	target := addGroup(t, w, world.HexCoord{Q: 2}, 300)
	pa := w.formTribe(a)
	pb := w.formTribe(b)
	target.SetPolityProminence(pb, 0.8)
	w.commitProminences()

	target.MergeProminences(map[int64]float64{pa.ID: 1}, 0.25)
	w.commitProminences()

	if got := target.ProminenceValue(pb); math.Abs(got-0.6) > 1e-6 {
		t.Fatalf("existing polity: got=%v want=0.6", got)
	}
	if got := target.ProminenceValue(pa); math.Abs(got-0.25) > 1e-6 {
		t.Fatalf("incoming polity: got=%v want=0.25", got)
	}
	if target.HighestProminence == nil || target.HighestProminence.Polity != pb {
		t.Fatalf("highest prominence should stay with %d", pb.ID)
	}
	if pb.Territory[target.ID] == nil || pa.Territory[target.ID] != nil {
		t.Fatalf("territory not assigned to the most prominent polity")
	}
}

func TestCommitNormalizesAndDropsSmallProminences(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 300)
	b := addGroup(t, w, world.HexCoord{Q: -3}, 300)
	target := addGroup(t, w, world.HexCoord{Q: 2}, 300)
	pa := w.formTribe(a)
	pb := w.formTribe(b)

	target.SetPolityProminence(pa, 0.7)
	target.SetPolityProminence(pb, 0.6)
	w.commitProminences()

	sum := target.ProminenceValue(pa) + target.ProminenceValue(pb)
	if sum > 1 || sum < 0.999 {
		t.Fatalf("normalized sum: got=%v want in [0.999, 1]", sum)
	}
	if target.TotalPolityProminenceValue > 1 {
		t.Fatalf("total: got=%v want <= 1", target.TotalPolityProminenceValue)
	}

	target.SetPolityProminence(pb, 0.005)
	w.commitProminences()
	if target.PolityProminence(pb) != nil {
		t.Fatalf("prominence at or below the minimum was kept")
	}
	if pb.Prominences[target.ID] != nil {
		t.Fatalf("polity still lists the group")
	}
	if got := target.TotalPolityProminenceValue; got != target.ProminenceValue(pa) {
		t.Fatalf("total after removal: got=%v want=%v", got, target.ProminenceValue(pa))
	}
}

func TestProminenceReadsCommittedValueUntilCommit(t *testing.T) {
	w := newTestWorld(t)
	core := addGroup(t, w, world.HexCoord{}, 300)
	p := w.formTribe(core)
	w.commitProminences()

	core.SetPolityProminence(p, 0.4)
	if got := core.ProminenceValue(p); got != 1 {
		t.Fatalf("committed value changed before commit: got=%v want=1", got)
	}
	if got := core.pendingProminence(p.ID); got != 0.4 {
		t.Fatalf("pending value: got=%v want=0.4", got)
	}
	w.commitProminences()
	if got := core.ProminenceValue(p); got != 0.4 {
		t.Fatalf("value after commit: got=%v want=0.4", got)
	}
}

func TestCoreProminenceFloorAndInvariant(t *testing.T) {
	w := newTestWorld(t)
	core := addGroup(t, w, world.HexCoord{}, 300)
	p := w.formTribe(core)
	w.commitProminences()

	core.adjustProminence(p, 0.02)
	w.commitProminences()
	if got := core.ProminenceValue(p); got != MinCoreProminence {
		t.Fatalf("core floor: got=%v want=%v", got, MinCoreProminence)
	}

	defer func() {
		r := recover()
		err, ok := r.(error)
		var inv InvariantError
		if !ok || !errors.As(err, &inv) {
			t.Fatalf("expected InvariantError panic, got %v", r)
		}
		if inv.ID != core.ID {
			t.Fatalf("invariant entity: got=%d want=%d", inv.ID, core.ID)
		}
	}()
	core.SetPolityProminence(p, 0)
}

func TestDistancesFollowFactionCores(t *testing.T) {
	w := newTestWorld(t)
	core := addGroup(t, w, world.HexCoord{}, 300)
	near := addGroup(t, w, world.HexCoord{Q: 1}, 300)
	far := addGroup(t, w, world.HexCoord{Q: 2}, 300)
	island := addGroup(t, w, world.HexCoord{Q: -3}, 300)
	p := w.formTribe(core)
	for _, g := range []*CellGroup{near, far, island} {
		g.SetPolityProminence(p, 0.5)
	}
	w.commitProminences()
	p.refreshDistances()

	cases := []struct {
		g    *CellGroup
		want float64
	}{
		{core, 0},
		{near, 1},
		{far, 2},
		{island, UnreachableDistance},
	}
	for _, tc := range cases {
		rec := tc.g.PolityProminence(p)
		if rec.FactionCoreDistance != tc.want {
			t.Fatalf("distance of %v: got=%v want=%v", tc.g.Coord, rec.FactionCoreDistance, tc.want)
		}
		if rec.PolityCoreDistance != tc.want {
			t.Fatalf("core distance of %v: got=%v want=%v", tc.g.Coord, rec.PolityCoreDistance, tc.want)
		}
	}
	if near.PolityProminence(p).ClosestFactionID != p.DominantFaction.ID {
		t.Fatalf("closest faction not recorded")
	}
	if p.TotalAdministrativeCost <= 0 {
		t.Fatalf("administrative cost: got=%v want > 0", p.TotalAdministrativeCost)
	}
}
