package world

// SeaRoute is a path over ocean cells from a coastal cell to another coastal
// land cell. A route is consolidated once it has been found and cached.
type SeaRoute struct {
	From         HexCoord   `json:"from"`
	Destination  HexCoord   `json:"destination"`
	Path         []HexCoord `json:"path"` // Ocean cells crossed, in order
	Consolidated bool       `json:"consolidated"`
}

// Length is the number of ocean cells crossed.
func (r *SeaRoute) Length() int {
	return len(r.Path)
}

// MaxSeaRouteLength bounds the breadth-first search over open water.
const MaxSeaRouteLength = 12

// MinSeaLandfallDistance keeps routes from hugging the home coastline.
const MinSeaLandfallDistance = 3

// SeaRoute returns the cached route from a coastal cell, searching on first
// use. Returns nil when the cell is not coastal or no landfall is in reach.
func (m *Map) SeaRoute(from HexCoord) *SeaRoute {
	if m.seaRoutes == nil {
		m.seaRoutes = make(map[HexCoord]*SeaRoute)
	}
	if r, ok := m.seaRoutes[from]; ok {
		return r
	}
	r := FindSeaRoute(m, from, MaxSeaRouteLength)
	if r != nil {
		r.Consolidated = true
	}
	m.seaRoutes[from] = r
	return r
}

// FindSeaRoute runs a breadth-first search across ocean cells and returns the
// first coastal landfall that is not adjacent to the start. Neighbors are
// expanded in direction order so the result is deterministic.
func FindSeaRoute(m *Map, from HexCoord, maxLength int) *SeaRoute {
	start := m.Get(from)
	if start == nil || !start.IsLand() || !start.Coastal {
		return nil
	}

	type node struct {
		coord HexCoord
		prev  int
		depth int
	}
	nodes := make([]node, 0, 64)
	visited := map[HexCoord]bool{from: true}

	for _, nc := range from.Neighbors() {
		c := m.Get(nc)
		if c == nil || c.IsLand() {
			continue
		}
		visited[nc] = true
		nodes = append(nodes, node{coord: nc, prev: -1, depth: 1})
	}

	for i := 0; i < len(nodes); i++ {
		cur := nodes[i]
		for _, nc := range cur.coord.Neighbors() {
			if visited[nc] {
				continue
			}
			visited[nc] = true
			c := m.Get(nc)
			if c == nil {
				continue
			}
			if c.IsLand() {
				if Distance(nc, from) < MinSeaLandfallDistance {
					continue
				}
				return &SeaRoute{
					From:        from,
					Destination: nc,
					Path:        tracePath(nodes, i, func(n node) (HexCoord, int) { return n.coord, n.prev }),
				}
			}
			if cur.depth < maxLength {
				nodes = append(nodes, node{coord: nc, prev: i, depth: cur.depth + 1})
			}
		}
	}
	return nil
}

func tracePath[N any](nodes []N, last int, unpack func(N) (HexCoord, int)) []HexCoord {
	var rev []HexCoord
	for i := last; i >= 0; {
		c, prev := unpack(nodes[i])
		rev = append(rev, c)
		i = prev
	}
	path := make([]HexCoord, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}
