// Starting site placement: scores cells and picks where the first bands live.
package world

import (
	"math/rand"
	"sort"
)

// StartingSite is a scored cell chosen for an initial band.
type StartingSite struct {
	Coord HexCoord
	Score float64
}

// PlaceStartingSites picks up to count land cells, best first, at least
// minDist apart. Ties are broken by coordinate so the result is stable.
func PlaceStartingSites(m *Map, count, minDist int, seed int64) []StartingSite {
	rng := rand.New(rand.NewSource(seed + 200))

	var candidates []StartingSite
	for _, coord := range m.Coords() {
		c := m.Get(coord)
		if !c.IsLand() {
			continue
		}
		if s := siteScore(m, c); s > 0 {
			// Small jitter so equal terrain does not always pick the same corner.
			candidates = append(candidates, StartingSite{Coord: coord, Score: s + rng.Float64()*0.01})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Coord.Less(candidates[j].Coord)
	})

	var sites []StartingSite
	for _, c := range candidates {
		if len(sites) >= count {
			break
		}
		if tooClose(c.Coord, sites, minDist) {
			continue
		}
		sites = append(sites, c)
	}
	return sites
}

// siteScore evaluates how desirable a cell is for an early band.
// Prefers: rivers and coasts (water), fertile plains, varied surroundings.
func siteScore(m *Map, c *Cell) float64 {
	score := 0.0

	switch c.Terrain {
	case TerrainPlains:
		score += 3.0
	case TerrainCoast:
		score += 3.5
	case TerrainRiver:
		score += 4.0
	case TerrainForest:
		score += 2.0
	case TerrainDesert, TerrainSwamp, TerrainTundra:
		score += 0.5
	case TerrainMountain:
		score += 0.3
	default:
		return 0
	}

	terrainTypes := make(map[Terrain]bool)
	for _, n := range m.Neighbors(c.Coord) {
		if n.IsLand() {
			terrainTypes[n.Terrain] = true
		}
	}
	score += float64(len(terrainTypes)) * 0.3
	score += c.Farmland + c.Accessibility*0.5

	return score
}

func tooClose(coord HexCoord, existing []StartingSite, minDist int) bool {
	for _, s := range existing {
		if Distance(coord, s.Coord) < minDist {
			return true
		}
	}
	return false
}
