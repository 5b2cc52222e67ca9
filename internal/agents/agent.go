// Package agents provides the leader agents that head factions.
// Leaders are derived entirely from the random stream of their faction, so a
// reloaded world regenerates the same leader for the same date.
package agents

import (
	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
)

// AgentID is a unique identifier for an agent.
type AgentID int64

// Sex of the agent.
type Sex uint8

const (
	SexMale   Sex = 0
	SexFemale Sex = 1
)

// DaysPerYear matches the engine calendar.
const DaysPerYear = 365

// Agent is a leader of a faction.
type Agent struct {
	ID        AgentID `json:"id"`
	Name      string  `json:"name"`
	Sex       Sex     `json:"sex"`
	BirthDate int64   `json:"birth_date"`

	Charisma float64 `json:"charisma"` // 0.0–1.0, sway over others
	Wisdom   float64 `json:"wisdom"`   // 0.0–1.0, judgment of consequences
}

// Age returns the age in whole years at date.
func (a *Agent) Age(date int64) int64 {
	return (date - a.BirthDate) / DaysPerYear
}

// NewLeader derives a leader for an entity taking office at date.
// Leaders take office between 16 and 40 years old.
func NewLeader(stream rng.Stream, entityID, date int64) *Agent {
	sex := SexMale
	if stream.Chance(entityID, date, rng.FactionLeaderSex, 0.5) {
		sex = SexFemale
	}
	ageYears := 16 + int64(stream.Int(entityID, date, rng.FactionLeaderAge, 25))

	return &Agent{
		ID:        AgentID(date*1_000_000 + entityID%1_000_000),
		Name:      GenerateName(stream, entityID, date, rng.FactionLeaderName),
		Sex:       sex,
		BirthDate: date - ageYears*DaysPerYear,
		Charisma:  mathx.Round(stream.Float(entityID, date, rng.FactionLeaderCharisma)),
		Wisdom:    mathx.Round(stream.Float(entityID, date, rng.FactionLeaderWisdom)),
	}
}
