package world

import "testing"

func TestDistanceAndNeighbors(t *testing.T) {
	origin := HexCoord{}
	for i, n := range origin.Neighbors() {
		if got := Distance(origin, n); got != 1 {
			t.Fatalf("neighbor %d distance: got=%d want=1", i, got)
		}
		if got := origin.Neighbor(i); got != n {
			t.Fatalf("Neighbor(%d): got=%v want=%v", i, got, n)
		}
	}
	if got := origin.Neighbor(-1); got != origin.Neighbor(5) {
		t.Fatalf("negative direction should wrap: got=%v", got)
	}
	if got := Distance(HexCoord{Q: 2, R: -1}, HexCoord{Q: -1, R: 2}); got != 3 {
		t.Fatalf("distance: got=%d want=3", got)
	}
}

func TestLocatorIsUniqueAndBounded(t *testing.T) {
	m := Generate(SmallTestConfig())
	seen := make(map[int64]HexCoord)
	for _, c := range m.Coords() {
		l := c.Locator()
		if l < 0 || l >= 1_000_000 {
			t.Fatalf("locator out of range for %v: %d", c, l)
		}
		if prev, ok := seen[l]; ok {
			t.Fatalf("locator collision between %v and %v", prev, c)
		}
		seen[l] = c
		if back := CoordFromLocator(l); back != c {
			t.Fatalf("locator round trip: got=%v want=%v", back, c)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(SmallTestConfig())
	b := Generate(SmallTestConfig())
	if a.CellCount() != b.CellCount() {
		t.Fatalf("cell count: got=%d want=%d", b.CellCount(), a.CellCount())
	}
	for _, coord := range a.Coords() {
		ca, cb := a.Get(coord), b.Get(coord)
		if *ca != *cb {
			t.Fatalf("cell %v differs: %+v vs %+v", coord, ca, cb)
		}
	}
}

func TestGeneratedCellsAreConsistent(t *testing.T) {
	m := Generate(DefaultGenConfig())
	land := 0
	for _, coord := range m.Coords() {
		c := m.Get(coord)
		if !m.InBounds(coord) {
			t.Fatalf("cell %v out of bounds", coord)
		}
		if c.IsLand() {
			land++
			if c.Accessibility <= 0 || c.Accessibility > 1 {
				t.Fatalf("land accessibility out of range at %v: %v", coord, c.Accessibility)
			}
		} else if c.Coastal {
			t.Fatalf("ocean cell marked coastal at %v", coord)
		}
		if c.Farmland < 0 || c.Farmland > 1 {
			t.Fatalf("farmland out of range at %v: %v", coord, c.Farmland)
		}
	}
	if land == 0 {
		t.Fatalf("expected some land")
	}
}

func TestPlaceStartingSitesRespectsSpacing(t *testing.T) {
	m := Generate(DefaultGenConfig())
	sites := PlaceStartingSites(m, 5, 4, 42)
	if len(sites) == 0 {
		t.Fatalf("expected starting sites")
	}
	for i := range sites {
		if !m.Get(sites[i].Coord).IsLand() {
			t.Fatalf("site on water: %v", sites[i].Coord)
		}
		for j := i + 1; j < len(sites); j++ {
			if d := Distance(sites[i].Coord, sites[j].Coord); d < 4 {
				t.Fatalf("sites %v and %v too close: %d", sites[i].Coord, sites[j].Coord, d)
			}
		}
	}
	again := PlaceStartingSites(m, 5, 4, 42)
	for i := range sites {
		if sites[i].Coord != again[i].Coord {
			t.Fatalf("placement not stable at %d: %v vs %v", i, sites[i].Coord, again[i].Coord)
		}
	}
}

func TestFindSeaRouteCrossesWater(t *testing.T) {
	// Two islands separated by a strait of open water.
	m := NewMap(6)
	for q := -6; q <= 6; q++ {
		for r := -6; r <= 6; r++ {
			c := HexCoord{Q: q, R: r}
			if !m.InBounds(c) {
				continue
			}
			terrain := TerrainOcean
			if q <= -2 || q >= 2 {
				terrain = TerrainPlains
			}
			m.Set(&Cell{Coord: c, Terrain: terrain})
		}
	}
	markCoastalCells(m)

	from := HexCoord{Q: -2, R: 0}
	route := m.SeaRoute(from)
	if route == nil {
		t.Fatalf("expected a route from %v", from)
	}
	if !route.Consolidated {
		t.Fatalf("cached route should be consolidated")
	}
	if route.Destination.Q < 2 {
		t.Fatalf("route should land on the far island, got %v", route.Destination)
	}
	for _, c := range route.Path {
		if m.Get(c).IsLand() {
			t.Fatalf("route crosses land at %v", c)
		}
	}
	if route.Length() != 3 {
		t.Fatalf("route length: got=%d want=3", route.Length())
	}
	if m.SeaRoute(HexCoord{Q: -4, R: 0}) != nil {
		t.Fatalf("inland cell should have no route")
	}
}
