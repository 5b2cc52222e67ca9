package engine

import (
	"math"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/talgya/worldhistory/internal/mathx"
)

// Distance and administration constants.
const (
	// UnreachableDistance marks a group the wavefront never reached.
	UnreachableDistance = 1e9

	AltitudeEdgeFactor = 5.0

	// MaxAdministrativeDistance caps the distance charged for administration,
	// so groups cut off by sea cost a lot without dominating everything.
	MaxAdministrativeDistance = 50.0
	AdminCostConstant         = 1.0
	AdminCostScale            = 0.1
)

type frontierItem struct {
	groupID   int64
	factionID int64
	dist      float64
}

func compareFrontier(a, b interface{}) int {
	x := a.(frontierItem)
	y := b.(frontierItem)
	switch {
	case x.dist < y.dist:
		return -1
	case x.dist > y.dist:
		return 1
	case x.groupID < y.groupID:
		return -1
	case x.groupID > y.groupID:
		return 1
	case x.factionID < y.factionID:
		return -1
	case x.factionID > y.factionID:
		return 1
	}
	return 0
}

// wavefront runs a multi-source shortest path over the polity's groups,
// stepping only between neighboring cells that both carry the polity. Each
// reached group gets the distance to, and id of, its nearest source.
func (p *Polity) wavefront(sources []frontierItem) map[int64]frontierItem {
	w := p.world
	heap := binaryheap.NewWith(compareFrontier)
	tentative := make(map[int64]frontierItem, len(p.Prominences))
	done := make(map[int64]frontierItem, len(p.Prominences))

	for _, s := range sources {
		if prev, ok := tentative[s.groupID]; ok && compareFrontier(prev, s) <= 0 {
			continue
		}
		tentative[s.groupID] = s
		heap.Push(s)
	}

	for !heap.Empty() {
		v, _ := heap.Pop()
		it := v.(frontierItem)
		if _, ok := done[it.groupID]; ok {
			continue
		}
		done[it.groupID] = it

		g := w.Groups[it.groupID]
		if g == nil {
			continue
		}
		from := g.Cell()
		for _, cell := range w.Map.Neighbors(g.Coord) {
			if cell.GroupID == 0 {
				continue
			}
			if _, ok := done[cell.GroupID]; ok {
				continue
			}
			if _, carries := p.Prominences[cell.GroupID]; !carries {
				continue
			}
			next := frontierItem{
				groupID:   cell.GroupID,
				factionID: it.factionID,
				dist:      mathx.Round(it.dist + 1 + AltitudeEdgeFactor*math.Abs(cell.Altitude-from.Altitude)),
			}
			if prev, ok := tentative[next.groupID]; ok && compareFrontier(prev, next) <= 0 {
				continue
			}
			tentative[next.groupID] = next
			heap.Push(next)
		}
	}
	return done
}

// refreshDistances recomputes faction-core and polity-core distances for every
// group of the polity, then the administrative cost.
func (p *Polity) refreshDistances() {
	p.distancesDirty = false

	var factionSources []frontierItem
	for _, id := range sortedIDs(p.Factions) {
		f := p.Factions[id]
		if f.CoreGroup != nil && p.Prominences[f.CoreGroup.ID] != nil {
			factionSources = append(factionSources, frontierItem{groupID: f.CoreGroup.ID, factionID: f.ID})
		}
	}
	byFaction := p.wavefront(factionSources)

	var byCore map[int64]frontierItem
	if p.CoreGroup != nil && p.Prominences[p.CoreGroup.ID] != nil {
		byCore = p.wavefront([]frontierItem{{groupID: p.CoreGroup.ID}})
	}

	for _, id := range sortedIDs(p.Prominences) {
		rec := p.Prominences[id]
		rec.FactionCoreDistance = UnreachableDistance
		rec.ClosestFactionID = 0
		rec.PolityCoreDistance = UnreachableDistance
		if it, ok := byFaction[id]; ok {
			rec.FactionCoreDistance = it.dist
			rec.ClosestFactionID = it.factionID
		}
		if it, ok := byCore[id]; ok {
			rec.PolityCoreDistance = it.dist
		}
	}
	p.refreshAdministrativeCost()
}

// refreshAdministrativeCost charges each group
//
//	(pop×value / polity weighted pop) × (faction core distance + AdminCostConstant) × AdminCostScale
//
// and sums the polity's load.
func (p *Polity) refreshAdministrativeCost() {
	ids := sortedIDs(p.Prominences)
	weighted := 0.0
	for _, id := range ids {
		rec := p.Prominences[id]
		weighted += rec.Group.ExactPopulation * rec.Value
	}
	total := 0.0
	for _, id := range ids {
		rec := p.Prominences[id]
		if weighted <= 0 {
			rec.AdministrativeCost = 0
			continue
		}
		share := rec.Group.ExactPopulation * rec.Value / weighted
		dist := math.Min(rec.FactionCoreDistance, MaxAdministrativeDistance)
		rec.AdministrativeCost = mathx.Round(share * (dist + AdminCostConstant) * AdminCostScale)
		total += rec.AdministrativeCost
	}
	p.TotalAdministrativeCost = mathx.Round(total)
}
