// World generation using layered simplex noise.
// Generates altitude, rainfall, and temperature maps, then derives terrain,
// farmland and accessibility.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius (~22 for ~2000 cells)
	Seed        int64   // Random seed
	SeaLevel    float64 // Altitude threshold for ocean (0.0–1.0)
	MountainLvl float64 // Altitude threshold for mountains (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      22,
		Seed:        42,
		SeaLevel:    0.25,
		MountainLvl: 0.72,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Radius:      6,
		Seed:        42,
		SeaLevel:    0.22,
		MountainLvl: 0.8,
	}
}

// Validate rejects configurations the locator scheme cannot represent.
func (cfg GenConfig) Validate() error {
	if cfg.Radius < 1 || cfg.Radius > MaxRadius {
		return fmt.Errorf("radius %d outside [1, %d]", cfg.Radius, MaxRadius)
	}
	if cfg.SeaLevel < 0 || cfg.SeaLevel >= cfg.MountainLvl || cfg.MountainLvl > 1 {
		return fmt.Errorf("sea level %.2f and mountain level %.2f out of order", cfg.SeaLevel, cfg.MountainLvl)
	}
	return nil
}

// Generate creates a complete world map. The same config always yields the
// same map, so saves store only the config.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed

	// Three noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)
	tempNoise := opensimplex.NewNormalized(seed + 2)

	m := NewMap(cfg.Radius)
	m.Seed = seed

	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !m.InBounds(coord) {
				continue
			}

			// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
			x := float64(q) + float64(r)*0.5
			y := float64(r) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)
			rain := octaveNoise(rainNoise, x, y, 3, 0.06, 0.5)
			temp := octaveNoise(tempNoise, x, y, 3, 0.05, 0.5)

			// Continental shaping: reduce altitude near edges to create ocean border.
			distFromCenter := math.Sqrt(x*x+y*y) / float64(cfg.Radius)
			edgeFalloff := 1.0 - math.Pow(distFromCenter, 3.5)
			if edgeFalloff < 0 {
				edgeFalloff = 0
			}
			elev *= edgeFalloff

			// Temperature decreases with altitude and distance from equator.
			latitude := math.Abs(y) / float64(cfg.Radius)
			temp = temp*0.6 + (1.0-latitude)*0.3 + (1.0-elev)*0.1

			m.Set(&Cell{
				Coord:       coord,
				Terrain:     deriveTerrain(elev, rain, temp, cfg),
				Altitude:    elev,
				Rainfall:    rain,
				Temperature: temp,
				// Cells shrink toward the poles, as on a sphere projection.
				Area: 1.0 - 0.5*latitude,
			})
		}
	}

	markCoastalCells(m)
	placeRivers(m, seed)
	for _, coord := range m.Coords() {
		c := m.Get(coord)
		c.Farmland = farmland(c)
		c.Accessibility = accessibility(c)
	}

	return m
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain, temp float64, cfg GenConfig) Terrain {
	if elev < cfg.SeaLevel {
		return TerrainOcean
	}
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if temp < 0.25 {
		return TerrainTundra
	}
	if rain < 0.25 && temp > 0.5 {
		return TerrainDesert
	}
	if rain > 0.7 && elev < 0.45 {
		return TerrainSwamp
	}
	if rain > 0.45 && elev > 0.45 {
		return TerrainForest
	}
	return TerrainPlains
}

// farmland estimates the arable fraction of a cell.
func farmland(c *Cell) float64 {
	switch c.Terrain {
	case TerrainOcean, TerrainMountain, TerrainTundra:
		return 0
	case TerrainRiver:
		return 0.8
	case TerrainPlains:
		return 0.4 + 0.4*c.Rainfall
	case TerrainCoast, TerrainForest:
		return 0.2 + 0.3*c.Rainfall
	default:
		return 0.1 * c.Rainfall
	}
}

// accessibility drops with altitude and hostile terrain.
func accessibility(c *Cell) float64 {
	base := 1.0 - 0.6*c.Altitude
	switch c.Terrain {
	case TerrainOcean:
		return 0
	case TerrainMountain:
		base *= 0.4
	case TerrainSwamp:
		base *= 0.6
	case TerrainForest:
		base *= 0.8
	}
	return math.Max(0.05, math.Min(1, base))
}

// markCoastalCells flags land next to ocean and converts low plains/forest to coast.
func markCoastalCells(m *Map) {
	for _, coord := range m.Coords() {
		c := m.Get(coord)
		if !c.IsLand() {
			continue
		}
		for _, n := range m.Neighbors(coord) {
			if !n.IsLand() {
				c.Coastal = true
				break
			}
		}
	}

	for _, coord := range m.Coords() {
		c := m.Get(coord)
		if !c.Coastal {
			continue
		}
		if (c.Terrain == TerrainPlains || c.Terrain == TerrainForest) && c.Altitude < 0.5 {
			c.Terrain = TerrainCoast
		}
	}
}

// placeRivers traces paths from high altitude toward the ocean, marking cells as river.
func placeRivers(m *Map, seed int64) {
	rng := rand.New(rand.NewSource(seed + 100))

	var sources []HexCoord
	for _, coord := range m.Coords() {
		c := m.Get(coord)
		if c.Altitude > 0.65 && c.IsLand() {
			sources = append(sources, coord)
		}
	}

	// Only create a handful of rivers; not every mountain needs one.
	numRivers := len(sources) / 8
	if numRivers < 2 {
		numRivers = 2
	}
	if numRivers > 10 {
		numRivers = 10
	}

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > numRivers {
		sources = sources[:numRivers]
	}

	for _, start := range sources {
		traceRiver(m, start)
	}
}

// traceRiver follows the steepest descent from a source cell until reaching
// ocean or running out of downhill path.
func traceRiver(m *Map, start HexCoord) {
	current := start
	visited := make(map[HexCoord]bool)
	maxSteps := 50

	for step := 0; step < maxSteps; step++ {
		visited[current] = true
		c := m.Get(current)
		if c == nil || !c.IsLand() {
			break
		}

		if c.Terrain != TerrainMountain && c.Terrain != TerrainCoast {
			c.Terrain = TerrainRiver
		}

		var best *HexCoord
		bestElev := c.Altitude
		for _, nc := range current.Neighbors() {
			if visited[nc] {
				continue
			}
			n := m.Get(nc)
			if n == nil {
				continue
			}
			if n.Altitude < bestElev {
				bestElev = n.Altitude
				next := nc
				best = &next
			}
		}

		if best == nil {
			break // No downhill path, the river pools here.
		}
		current = *best
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, c := range m.Cells {
		counts[c.Terrain]++
	}
	return counts
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainMountain:
		return "Mountain"
	case TerrainCoast:
		return "Coast"
	case TerrainRiver:
		return "River"
	case TerrainDesert:
		return "Desert"
	case TerrainSwamp:
		return "Swamp"
	case TerrainTundra:
		return "Tundra"
	case TerrainOcean:
		return "Ocean"
	default:
		return "Unknown"
	}
}
