package world

import (
	"fmt"
	"slices"
)

// Map holds the complete grid of cells.
type Map struct {
	Cells  map[HexCoord]*Cell `json:"-"` // All cells keyed by coordinate
	Radius int                `json:"radius"`
	Seed   int64              `json:"seed"`

	coords []HexCoord // sorted, built lazily

	seaRoutes map[HexCoord]*SeaRoute
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Cells:     make(map[HexCoord]*Cell),
		Radius:    radius,
		seaRoutes: make(map[HexCoord]*SeaRoute),
	}
}

// Get returns the cell at the given coordinate, or nil if out of bounds.
func (m *Map) Get(coord HexCoord) *Cell {
	return m.Cells[coord]
}

// Set places a cell at the given coordinate.
func (m *Map) Set(cell *Cell) {
	m.Cells[cell.Coord] = cell
	m.coords = nil
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= m.Radius
}

// Coords returns every coordinate in (q, r) order.
func (m *Map) Coords() []HexCoord {
	if m.coords == nil {
		m.coords = make([]HexCoord, 0, len(m.Cells))
		for c := range m.Cells {
			m.coords = append(m.coords, c)
		}
		slices.SortFunc(m.coords, func(a, b HexCoord) int {
			if a.Less(b) {
				return -1
			}
			if b.Less(a) {
				return 1
			}
			return 0
		})
	}
	return m.coords
}

// Neighbors returns the existing neighbor cells in direction order.
func (m *Map) Neighbors(coord HexCoord) []*Cell {
	out := make([]*Cell, 0, DirectionCount)
	for _, nc := range coord.Neighbors() {
		if c := m.Get(nc); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// CellCount returns the total number of cells in the map.
func (m *Map) CellCount() int {
	return len(m.Cells)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, cells=%d)", m.Radius, m.CellCount())
}
