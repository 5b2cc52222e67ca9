package engine

import (
	"math"
	"testing"

	"github.com/talgya/worldhistory/internal/world"
)

func TestPopulationGrowsTowardOptimumOverOneGeneration(t *testing.T) {
	got := CalculateNewPopulation(50, 200, GenerationSpan)
	if got <= 50 || got >= 200 {
		t.Fatalf("population after one generation: got=%v want in (50, 200)", got)
	}
	// 200 × (1 − 0.75²)
	if want := 87.5; got != want {
		t.Fatalf("population after one generation: got=%v want=%v", got, want)
	}
}

func TestPopulationEdgeCases(t *testing.T) {
	cases := []struct {
		name           string
		pop, opt       float64
		span           Date
		lo, hi         float64
	}{
		{"no time", 50, 200, 0, 50, 50},
		{"at optimum", 200, 200, GenerationSpan, 200, 200},
		{"one day never shrinks", 50, 200, 1, 50, 200},
		{"decays from above", 400, 200, GenerationSpan, 200, 400},
		{"long span saturates", 50, 200, 40 * GenerationSpan, 200, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateNewPopulation(tc.pop, tc.opt, tc.span)
			if got < tc.lo || got > tc.hi {
				t.Fatalf("got=%v want in [%v, %v]", got, tc.lo, tc.hi)
			}
			if got != math.Round(got*1e6)/1e6 {
				t.Fatalf("not rounded to six decimals: %v", got)
			}
		})
	}
}

func TestOptimalPopulationIsZeroOffLand(t *testing.T) {
	w := newTestWorld(t)
	ocean := &world.Cell{Terrain: world.TerrainOcean, Area: 1, Accessibility: 1}
	g := addGroup(t, w, world.HexCoord{}, 100)
	if got := OptimalPopulationFor(ocean, g.Culture); got != 0 {
		t.Fatalf("ocean optimum: got=%v want=0", got)
	}
	if g.OptimalPopulation <= 0 {
		t.Fatalf("plains optimum should be positive: %v", g.OptimalPopulation)
	}
}

func TestMigrationConservesPopulation(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 1000)
	b := addGroup(t, w, world.HexCoord{Q: 1}, 200)
	// At optimum the catch-up before the move changes nothing.
	a.OptimalPopulation, b.OptimalPopulation = a.ExactPopulation, b.ExactPopulation
	before := a.ExactPopulation + b.ExactPopulation

	e := newMigrateGroupEvent(w, a, b.Coord, LandMigration, 1)
	a.migrationEvent = e
	w.Events.Insert(e)
	if !w.Update() {
		t.Fatalf("update did not run")
	}

	if b.ExactPopulation <= 200 {
		t.Fatalf("target did not receive migrants: %v", b.ExactPopulation)
	}
	after := a.ExactPopulation + b.ExactPopulation
	if math.Abs(after-before) > 1e-6 {
		t.Fatalf("population not conserved: got=%v want=%v", after, before)
	}
	if a.migrationEvent != nil {
		t.Fatalf("migration handle not released")
	}
	if a.PreferredMigrationDirection != 0 {
		t.Fatalf("preferred direction: got=%d want=0", a.PreferredMigrationDirection)
	}
}

func TestMigrationIntoEmptyCellFoundsGroup(t *testing.T) {
	w := newTestWorld(t)
	a := addGroup(t, w, world.HexCoord{}, 1000)
	a.OptimalPopulation = a.ExactPopulation
	target := world.HexCoord{R: 1}

	e := newMigrateGroupEvent(w, a, target, LandMigration, 1)
	a.migrationEvent = e
	w.Events.Insert(e)
	w.Update()

	cell := w.Map.Get(target)
	settlers := w.Groups[cell.GroupID]
	if settlers == nil {
		t.Fatalf("no group founded at %v", target)
	}
	if got := a.ExactPopulation + settlers.ExactPopulation; math.Abs(got-1000) > 1e-6 {
		t.Fatalf("population not conserved: got=%v want=1000", got)
	}
	if settlers.PreferredMigrationDirection != 5 {
		t.Fatalf("settlers direction: got=%d want=5", settlers.PreferredMigrationDirection)
	}
	if !settlers.updateEvent.Queued() {
		t.Fatalf("settlers have no update scheduled")
	}
}

func TestRequestUpdateInvalidatesLaterUpdate(t *testing.T) {
	w := newTestWorld(t)
	g := addGroup(t, w, world.HexCoord{}, 100)
	g.setNextUpdate(5000)
	first := g.updateEvent.ID()

	g.requestUpdate()
	if g.NextUpdateDate != 1 {
		t.Fatalf("next update: got=%d want=1", g.NextUpdateDate)
	}
	if g.updateEvent.ID() == first {
		t.Fatalf("event id not recomputed")
	}
	if got := w.Events.Len(); got != 1 {
		t.Fatalf("live events: got=%d want=1", got)
	}

	w.Update()
	if w.Date != 1 {
		t.Fatalf("date: got=%d want=1", w.Date)
	}
	if g.NextUpdateDate <= 1 || !g.updateEvent.Queued() {
		t.Fatalf("group not rescheduled after update: next=%d", g.NextUpdateDate)
	}
	// The old node at 5000 is gone: one live update event remains.
	updates := 0
	w.Events.Each(func(e WorldEvent) {
		if e.TypeID() == UpdateCellGroupEventType {
			updates++
		}
	})
	if updates != 1 {
		t.Fatalf("live update events: got=%d want=1", updates)
	}
}

func TestUndersizedGroupIsRemoved(t *testing.T) {
	w := newTestWorld(t)
	g := addGroup(t, w, world.HexCoord{}, 1.5)
	g.setNextUpdate(1)
	w.Update()
	if g.StillPresent {
		t.Fatalf("group below minimum population survived")
	}
	if _, ok := w.Groups[g.ID]; ok {
		t.Fatalf("group still registered")
	}
	if w.Map.Get(g.Coord).GroupID != 0 {
		t.Fatalf("cell still points at removed group")
	}
	if w.Events.Len() != 0 {
		t.Fatalf("removed group left events: %d", w.Events.Len())
	}
}
