package engine

import (
	"testing"

	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// plainsMap builds a map of identical inland plains so tests control every
// number that feeds the population model.
func plainsMap(radius int) *world.Map {
	m := world.NewMap(radius)
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := world.HexCoord{Q: q, R: r}
			if !m.InBounds(c) {
				continue
			}
			m.Set(&world.Cell{
				Coord:         c,
				Terrain:       world.TerrainPlains,
				Altitude:      0.4,
				Rainfall:      0.5,
				Temperature:   0.5,
				Farmland:      0.3,
				Accessibility: 1,
				Area:          1,
			})
		}
	}
	return m
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := world.GenConfig{Radius: 4, Seed: 7, SeaLevel: 0.2, MountainLvl: 0.8}
	return NewWorld(cfg, plainsMap(cfg.Radius))
}

// addGroup places a group without scheduling anything.
func addGroup(t *testing.T, w *World, c world.HexCoord, population float64) *CellGroup {
	t.Helper()
	cell := w.Map.Get(c)
	if cell == nil {
		t.Fatalf("no cell at %v", c)
	}
	g := w.newGroup(cell, population, social.NewCulture(cell.Terrain), 0)
	g.OptimalPopulation = OptimalPopulationFor(cell, g.Culture)
	return g
}

// generatedWorld seeds a small generated world the way the CLI does.
func generatedWorld(t *testing.T, seed int64) *World {
	t.Helper()
	cfg := world.SmallTestConfig()
	cfg.Seed = seed
	m := world.Generate(cfg)
	w := NewWorld(cfg, m)
	sites := world.PlaceStartingSites(m, 4, 3, seed)
	if len(w.SeedGroups(sites, 100)) == 0 {
		t.Fatalf("no groups seeded for seed %d", seed)
	}
	return w
}

// testEvent is a bare event for queue and clock tests.
type testEvent struct {
	BaseEvent
	fired   *[]string
	label   string
	allowed bool
}

func newTestEvent(w *World, typ EventType, locator int64, date Date, label string, fired *[]string) *testEvent {
	e := &testEvent{fired: fired, label: label, allowed: true}
	e.init(w, typ, locator, date)
	return e
}

func (e *testEvent) CanTrigger() bool { return e.allowed }
func (e *testEvent) Trigger()         { *e.fired = append(*e.fired, e.label) }
func (e *testEvent) Destroy()         {}
func (e *testEvent) Record() EventRecord {
	return e.record(0, 0, 0)
}
