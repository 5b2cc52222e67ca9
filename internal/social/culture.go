// Package social provides the cultural state carried by groups, factions and
// polities: preferences, knowledge and skills, and how they blend and drift.
package social

import (
	"math"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/world"
)

// Preferences are cultural attitudes in [0, 1]. 0.5 is neutral.
type Preferences struct {
	Cohesion   float64 `json:"cohesion"`   // Attachment to the group and its seat
	Authority  float64 `json:"authority"`  // Acceptance of concentrated power
	Aggression float64 `json:"aggression"` // Willingness to press demands
	Isolation  float64 `json:"isolation"`  // Reluctance to deal with outsiders
}

// NeutralPreferences returns preferences at 0.5.
func NeutralPreferences() Preferences {
	return Preferences{Cohesion: 0.5, Authority: 0.5, Aggression: 0.5, Isolation: 0.5}
}

// Knowledge values in [0, 1].
type Knowledge struct {
	SocialOrganization float64 `json:"social_organization"`
	Shipbuilding       float64 `json:"shipbuilding"`
	Agriculture        float64 `json:"agriculture"`
}

// Skills values in [0, 1]. Adaptation is indexed by world.Terrain.
type Skills struct {
	Seafaring  float64                       `json:"seafaring"`
	Adaptation [world.TerrainCount]float64 `json:"adaptation"`
}

// Culture is the full cultural state of a group or polity.
type Culture struct {
	Preferences Preferences `json:"preferences"`
	Knowledge   Knowledge   `json:"knowledge"`
	Skills      Skills      `json:"skills"`
}

// NewCulture returns a neutral culture adapted to its home terrain.
func NewCulture(home world.Terrain) Culture {
	c := Culture{Preferences: NeutralPreferences()}
	c.Skills.Adaptation[home] = 0.5
	return c
}

// Blend moves c toward other by percent, the population weight of other in
// the merged group. Each field is rounded after blending.
func (c *Culture) Blend(other Culture, percent float64) {
	c.Preferences = c.Preferences.Blend(other.Preferences, percent)

	c.Knowledge.SocialOrganization = blend(c.Knowledge.SocialOrganization, other.Knowledge.SocialOrganization, percent)
	c.Knowledge.Shipbuilding = blend(c.Knowledge.Shipbuilding, other.Knowledge.Shipbuilding, percent)
	c.Knowledge.Agriculture = blend(c.Knowledge.Agriculture, other.Knowledge.Agriculture, percent)

	c.Skills.Seafaring = blend(c.Skills.Seafaring, other.Skills.Seafaring, percent)
	for i := range c.Skills.Adaptation {
		c.Skills.Adaptation[i] = blend(c.Skills.Adaptation[i], other.Skills.Adaptation[i], percent)
	}
}

// Blend returns p moved toward other by percent.
func (p Preferences) Blend(other Preferences, percent float64) Preferences {
	return Preferences{
		Cohesion:   blend(p.Cohesion, other.Cohesion, percent),
		Authority:  blend(p.Authority, other.Authority, percent),
		Aggression: blend(p.Aggression, other.Aggression, percent),
		Isolation:  blend(p.Isolation, other.Isolation, percent),
	}
}

// Similarity is 1 minus the mean absolute difference of preferences.
func (p Preferences) Similarity(other Preferences) float64 {
	d := math.Abs(p.Cohesion-other.Cohesion) +
		math.Abs(p.Authority-other.Authority) +
		math.Abs(p.Aggression-other.Aggression) +
		math.Abs(p.Isolation-other.Isolation)
	return mathx.Round(1 - d/4)
}

// Clamp limits every preference to [0, 1].
func (p Preferences) Clamp() Preferences {
	return Preferences{
		Cohesion:   mathx.Clamp01(p.Cohesion),
		Authority:  mathx.Clamp01(p.Authority),
		Aggression: mathx.Clamp01(p.Aggression),
		Isolation:  mathx.Clamp01(p.Isolation),
	}
}

// Similarity between two cultures; preferences weigh most, knowledge the rest.
func (c Culture) Similarity(other Culture) float64 {
	k := math.Abs(c.Knowledge.SocialOrganization-other.Knowledge.SocialOrganization) +
		math.Abs(c.Knowledge.Shipbuilding-other.Knowledge.Shipbuilding) +
		math.Abs(c.Knowledge.Agriculture-other.Knowledge.Agriculture)
	return mathx.Round(0.75*c.Preferences.Similarity(other.Preferences) + 0.25*(1-k/3))
}

// TravelFactor is how well the culture can cross open water. 0 means it cannot.
func (c Culture) TravelFactor() float64 {
	return mathx.Round(c.Skills.Seafaring * c.Knowledge.Shipbuilding)
}

// Accumulator builds a weighted average of cultures. Add in a stable order:
// the result is rounded but float sums depend on order.
type Accumulator struct {
	sum    Culture
	weight float64
}

// Add includes c with weight w.
func (a *Accumulator) Add(c Culture, w float64) {
	if w <= 0 {
		return
	}
	a.weight += w
	a.sum.Preferences.Cohesion += c.Preferences.Cohesion * w
	a.sum.Preferences.Authority += c.Preferences.Authority * w
	a.sum.Preferences.Aggression += c.Preferences.Aggression * w
	a.sum.Preferences.Isolation += c.Preferences.Isolation * w
	a.sum.Knowledge.SocialOrganization += c.Knowledge.SocialOrganization * w
	a.sum.Knowledge.Shipbuilding += c.Knowledge.Shipbuilding * w
	a.sum.Knowledge.Agriculture += c.Knowledge.Agriculture * w
	a.sum.Skills.Seafaring += c.Skills.Seafaring * w
	for i := range c.Skills.Adaptation {
		a.sum.Skills.Adaptation[i] += c.Skills.Adaptation[i] * w
	}
}

// Result returns the weighted average, or fallback when nothing was added.
func (a *Accumulator) Result(fallback Culture) Culture {
	if a.weight <= 0 {
		return fallback
	}
	w := a.weight
	out := Culture{
		Preferences: Preferences{
			Cohesion:   mathx.Round(a.sum.Preferences.Cohesion / w),
			Authority:  mathx.Round(a.sum.Preferences.Authority / w),
			Aggression: mathx.Round(a.sum.Preferences.Aggression / w),
			Isolation:  mathx.Round(a.sum.Preferences.Isolation / w),
		},
		Knowledge: Knowledge{
			SocialOrganization: mathx.Round(a.sum.Knowledge.SocialOrganization / w),
			Shipbuilding:       mathx.Round(a.sum.Knowledge.Shipbuilding / w),
			Agriculture:        mathx.Round(a.sum.Knowledge.Agriculture / w),
		},
	}
	out.Skills.Seafaring = mathx.Round(a.sum.Skills.Seafaring / w)
	for i := range a.sum.Skills.Adaptation {
		out.Skills.Adaptation[i] = mathx.Round(a.sum.Skills.Adaptation[i] / w)
	}
	return out
}

func blend(a, b, percent float64) float64 {
	return mathx.Round(a*(1-percent) + b*percent)
}
