package social

import (
	"testing"

	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/world"
)

func TestBlendWeighsByPercent(t *testing.T) {
	a := NewCulture(world.TerrainPlains)
	a.Preferences.Cohesion = 0.2
	a.Knowledge.Agriculture = 0.4
	b := NewCulture(world.TerrainForest)
	b.Preferences.Cohesion = 0.6
	b.Knowledge.Agriculture = 0

	a.Blend(b, 0.25)
	if got, want := a.Preferences.Cohesion, 0.3; !mathx.NearlyEqual(got, want) {
		t.Fatalf("cohesion: got=%v want=%v", got, want)
	}
	if got, want := a.Knowledge.Agriculture, 0.3; !mathx.NearlyEqual(got, want) {
		t.Fatalf("agriculture: got=%v want=%v", got, want)
	}
	if got, want := a.Skills.Adaptation[world.TerrainForest], 0.125; !mathx.NearlyEqual(got, want) {
		t.Fatalf("forest adaptation: got=%v want=%v", got, want)
	}
}

func TestSimilarity(t *testing.T) {
	p := NeutralPreferences()
	if got := p.Similarity(p); got != 1 {
		t.Fatalf("self similarity: got=%v want=1", got)
	}
	q := Preferences{Cohesion: 1, Authority: 1, Aggression: 1, Isolation: 1}
	if got := p.Similarity(q); got != 0.5 {
		t.Fatalf("similarity: got=%v want=0.5", got)
	}
}

func TestAccumulatorAverages(t *testing.T) {
	var acc Accumulator
	a := NewCulture(world.TerrainPlains)
	a.Preferences.Authority = 0.2
	b := NewCulture(world.TerrainPlains)
	b.Preferences.Authority = 0.8
	acc.Add(a, 3)
	acc.Add(b, 1)
	acc.Add(b, 0)
	got := acc.Result(Culture{})
	if want := 0.35; !mathx.NearlyEqual(got.Preferences.Authority, want) {
		t.Fatalf("authority: got=%v want=%v", got.Preferences.Authority, want)
	}

	var empty Accumulator
	fallback := NewCulture(world.TerrainDesert)
	if got := empty.Result(fallback); got != fallback {
		t.Fatalf("empty accumulator should return fallback")
	}
}

func TestTravelFactor(t *testing.T) {
	c := NewCulture(world.TerrainCoast)
	if c.TravelFactor() != 0 {
		t.Fatalf("new culture should not cross water")
	}
	c.Skills.Seafaring = 0.5
	c.Knowledge.Shipbuilding = 0.4
	if got := c.TravelFactor(); got != 0.2 {
		t.Fatalf("travel factor: got=%v want=0.2", got)
	}
}
