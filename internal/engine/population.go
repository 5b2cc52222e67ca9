package engine

import (
	"math"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// Population model constants.
const (
	MinGroupPopulation = 2.0
	GrowthRate         = 1.0

	// PopulationDensity is the population a unit of area carries at full capacity.
	PopulationDensity = 2000.0

	ForagingWeight = 0.6
	FarmingWeight  = 1.2
	FishingWeight  = 0.4

	// CultureChangeRate is the fraction of the gap to a cultural target closed
	// per generation, before randomness.
	CultureChangeRate = 1.0

	// SocialOrganizationScale is the population at which social organization
	// knowledge tends to 1.
	SocialOrganizationScale = 1000.0
)

// terrainForaging is the foraging yield of each terrain.
var terrainForaging = [world.TerrainCount]float64{
	world.TerrainPlains:   0.8,
	world.TerrainForest:   0.9,
	world.TerrainMountain: 0.2,
	world.TerrainCoast:    0.7,
	world.TerrainRiver:    1.0,
	world.TerrainDesert:   0.15,
	world.TerrainSwamp:    0.5,
	world.TerrainTundra:   0.2,
	world.TerrainOcean:    0,
}

// OptimalPopulationFor is the population a culture can sustain on a cell.
func OptimalPopulationFor(cell *world.Cell, c social.Culture) float64 {
	if cell == nil || !cell.IsLand() {
		return 0
	}
	foraging := terrainForaging[cell.Terrain] * (0.5 + 0.5*cell.Rainfall)
	adaptation := c.Skills.Adaptation[cell.Terrain]
	capacity := ForagingWeight*foraging*(0.2+0.8*adaptation) +
		FarmingWeight*cell.Farmland*c.Knowledge.Agriculture
	if cell.Coastal {
		capacity += FishingWeight * (0.3 + 0.7*c.Skills.Seafaring)
	}
	return math.Floor(cell.Area * PopulationDensity * capacity * (0.5 + 0.5*cell.Accessibility))
}

// CalculateNewPopulation advances a population toward its optimum over span
// days. Below optimum it follows
//
//	optimal × (1 − (1 − p/optimal)^(2^(GrowthRate×span/GenerationSpan)))
//
// and above it decays exponentially toward optimum. Every step is rounded to
// six decimals; a growing population never shrinks from rounding.
func CalculateNewPopulation(population, optimal float64, span Date) float64 {
	if span <= 0 || population == optimal {
		return mathx.Round(population)
	}
	t := GrowthRate * float64(span) / float64(GenerationSpan)

	if population < optimal {
		ratio := 1 - population/optimal
		exponent := mathx.Round(math.Pow(2, t))
		pow := mathx.Round(math.Pow(ratio, exponent))
		grown := mathx.Round(optimal * (1 - pow))
		return math.Min(optimal, math.Max(grown, mathx.Round(population)))
	}

	decay := mathx.Round(math.Exp(-t))
	return mathx.Round(optimal + (population-optimal)*decay)
}

// updateCulture evolves knowledge, skills and preferences over span days.
func (g *CellGroup) updateCulture(span Date) {
	w := g.world
	f := mathx.Round(1 - math.Exp(-CultureChangeRate*float64(span)/float64(GenerationSpan)))
	if f <= 0 {
		return
	}
	cell := g.Cell()
	loc, date := g.Locator, int64(w.Date)
	noise := func(off rng.Offset) float64 { return w.RNG.Range(loc, date, off, 0.5, 1.5) }

	k := &g.Culture.Knowledge
	k.SocialOrganization = drift(k.SocialOrganization,
		mathx.Clamp01(g.ExactPopulation/SocialOrganizationScale), f*noise(rng.GroupKnowledgeSocial))
	shipTarget, seaTarget := 0.0, 0.0
	if cell.Coastal {
		shipTarget, seaTarget = 0.8, 1
	}
	k.Shipbuilding = drift(k.Shipbuilding, shipTarget, 0.5*f*noise(rng.GroupKnowledgeShipbuild))
	k.Agriculture = drift(k.Agriculture, cell.Farmland, 0.5*f*noise(rng.GroupKnowledgeFarming))

	s := &g.Culture.Skills
	s.Seafaring = drift(s.Seafaring, seaTarget, 0.5*f*noise(rng.GroupSkillSeafaring))
	for i := range s.Adaptation {
		if world.Terrain(i) == cell.Terrain {
			s.Adaptation[i] = drift(s.Adaptation[i], 1, 0.5*f)
		} else {
			s.Adaptation[i] = drift(s.Adaptation[i], 0, 0.1*f)
		}
	}

	p := &g.Culture.Preferences
	walk := func(v float64, off rng.Offset) float64 {
		return mathx.Round(mathx.Clamp01(v + (w.RNG.Float(loc, date, off)-0.5)*0.1*f))
	}
	p.Cohesion = walk(p.Cohesion, rng.GroupPreferenceCohesion)
	p.Authority = walk(p.Authority, rng.GroupPreferenceAuthority)
	p.Aggression = walk(p.Aggression, rng.GroupPreferenceAggress)
	p.Isolation = walk(p.Isolation, rng.GroupPreferenceIsolation)

	// Groups drift toward the culture of the polity most prominent in them.
	if h := g.HighestProminence; h != nil {
		*p = p.Blend(h.Polity.Culture.Preferences, 0.5*f*h.Value)
	}
}

func drift(v, target, rate float64) float64 {
	return mathx.Round(mathx.Clamp01(v + (target-v)*mathx.Clamp01(rate)))
}
