// Package world provides the hex grid of terrain cells the simulation runs on.
// Uses axial coordinates (q, r) for the hex grid.
package world

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Less orders coordinates by (q, r). Used wherever iteration order must be stable.
func (h HexCoord) Less(o HexCoord) bool {
	if h.Q != o.Q {
		return h.Q < o.Q
	}
	return h.R < o.R
}

// locatorSpan bounds each axis of the locator; grids are limited to radius < 500.
const locatorSpan = 1000

// MaxRadius is the largest grid radius whose locators stay below 1e6.
const MaxRadius = locatorSpan/2 - 1

// Locator packs the coordinate into a non-negative integer below 1e6.
// Stable for a coordinate; used for ids and per-cell random streams.
func (h HexCoord) Locator() int64 {
	return int64(h.Q+locatorSpan/2)*locatorSpan + int64(h.R+locatorSpan/2)
}

// CoordFromLocator inverts Locator.
func CoordFromLocator(loc int64) HexCoord {
	return HexCoord{
		Q: int(loc/locatorSpan) - locatorSpan/2,
		R: int(loc%locatorSpan) - locatorSpan/2,
	}
}

// Terrain types for cells.
type Terrain uint8

const (
	TerrainPlains   Terrain = iota // Grassland, best foraging and farming
	TerrainForest                  // Game and gathering
	TerrainMountain                // Sparse, hard to cross
	TerrainCoast                   // Fishing, sea access
	TerrainRiver                   // Fresh water, fertile banks
	TerrainDesert                  // Arid
	TerrainSwamp                   // Wet, hard to cross
	TerrainTundra                  // Cold
	TerrainOcean                   // Crossable only by sea routes
)

// TerrainCount is the number of terrain types.
const TerrainCount = int(TerrainOcean) + 1

// Cell is one tile of the grid. Coordinates and terrain are fixed after
// generation; GroupID tracks the CellGroup living on it (0 = none).
type Cell struct {
	Coord   HexCoord `json:"coord"`
	Terrain Terrain  `json:"terrain"`

	Altitude    float64 `json:"altitude"`    // 0.0 (sea level) to 1.0 (peak)
	Rainfall    float64 `json:"rainfall"`    // 0.0 (arid) to 1.0 (tropical)
	Temperature float64 `json:"temperature"` // 0.0 (frozen) to 1.0 (hot)

	Farmland      float64 `json:"farmland"`      // Fraction of the cell usable as farmland
	Accessibility float64 `json:"accessibility"` // 0.0 (impassable) to 1.0 (open)
	Area          float64 `json:"area"`          // Relative land area
	Coastal       bool    `json:"coastal"`       // Land cell touching the ocean

	GroupID int64 `json:"group_id,omitempty"`
}

// IsLand reports whether groups can live on the cell.
func (c *Cell) IsLand() bool {
	return c.Terrain != TerrainOcean
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// DirectionCount is the number of neighbor directions.
const DirectionCount = len(HexNeighborDirections)

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Neighbor returns the adjacent coordinate in direction dir (taken modulo 6).
func (h HexCoord) Neighbor(dir int) HexCoord {
	dir = ((dir % DirectionCount) + DirectionCount) % DirectionCount
	d := HexNeighborDirections[dir]
	return HexCoord{Q: h.Q + d.Q, R: h.R + d.R}
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
