package rng

// Offset selects an independent sub-stream for one call site. Values are part
// of the save format: changing or reusing one changes the outcome of every
// existing world, so new call sites only ever append.
type Offset int64

// Group offsets.
const (
	GroupUpdateSpan          Offset = 1
	GroupMigrationDirection  Offset = 2
	GroupMigrationWalk       Offset = 3
	GroupMigrationRoll       Offset = 4
	GroupMigrationPercent    Offset = 5
	GroupSeaMigrationRoll    Offset = 6
	GroupExpansionPolity     Offset = 7
	GroupExpansionTarget     Offset = 8
	GroupExpansionRoll       Offset = 9
	GroupExpansionPercent    Offset = 10
	GroupTribeFormationRoll  Offset = 11
	GroupTribeFormationSpan  Offset = 12
	GroupKnowledgeSocial     Offset = 13
	GroupKnowledgeShipbuild  Offset = 14
	GroupKnowledgeFarming    Offset = 15
	GroupSkillSeafaring      Offset = 16
	GroupPreferenceCohesion  Offset = 17
	GroupPreferenceAuthority Offset = 18
	GroupPreferenceAggress   Offset = 19
	GroupPreferenceIsolation Offset = 20
	GroupProminenceChange    Offset = 21
	GroupMigrationTravel     Offset = 22
	GroupExpansionTravel     Offset = 23
)

// Faction and polity offsets.
const (
	FactionLeaderCharisma      Offset = 100
	FactionLeaderWisdom        Offset = 101
	FactionLeaderName          Offset = 102
	FactionLeaderSex           Offset = 103
	FactionLeaderAge           Offset = 104
	FactionCoreMigrationSpan   Offset = 105
	FactionSplitSpan           Offset = 106
	FactionSplitTrigger        Offset = 107
	FactionSplitPreference     Offset = 108
	FactionDemandSpan          Offset = 109
	FactionDemandTrigger       Offset = 110
	FactionDemandPreference    Offset = 111
	FactionRejectPreference    Offset = 112
	FactionTribeSplitSpan      Offset = 113
	FactionTribeSplitTrigger   Offset = 114
	FactionTribeSplitPref      Offset = 115
	FactionNameFirst           Offset = 116
	FactionNameSecond          Offset = 117
	FactionPreferenceDrift     Offset = 118
	FactionCoreMigrationTarget Offset = 119
	FactionSplitInfluence      Offset = 120

	PolityNameFirst         Offset = 200
	PolityNameSecond        Offset = 201
	PolityFosterSpan        Offset = 202
	PolityFosterTrigger     Offset = 203
	PolityFosterPreference  Offset = 204
	PolityMergeSpan         Offset = 205
	PolityMergeTrigger      Offset = 206
	PolityMergePreference   Offset = 207
	PolityContactTarget     Offset = 208
	PolityFosterImprovement Offset = 209
)

// World generation offsets.
const (
	WorldStartingCulture Offset = 300
	WorldStartingSite    Offset = 301
)

var offsetNames = map[Offset]string{
	GroupUpdateSpan:          "group.update_span",
	GroupMigrationDirection:  "group.migration_direction",
	GroupMigrationWalk:       "group.migration_walk",
	GroupMigrationRoll:       "group.migration_roll",
	GroupMigrationPercent:    "group.migration_percent",
	GroupSeaMigrationRoll:    "group.sea_migration_roll",
	GroupExpansionPolity:     "group.expansion_polity",
	GroupExpansionTarget:     "group.expansion_target",
	GroupExpansionRoll:       "group.expansion_roll",
	GroupExpansionPercent:    "group.expansion_percent",
	GroupTribeFormationRoll:  "group.tribe_formation_roll",
	GroupTribeFormationSpan:  "group.tribe_formation_span",
	GroupKnowledgeSocial:     "group.knowledge_social",
	GroupKnowledgeShipbuild:  "group.knowledge_shipbuilding",
	GroupKnowledgeFarming:    "group.knowledge_agriculture",
	GroupSkillSeafaring:      "group.skill_seafaring",
	GroupPreferenceCohesion:  "group.preference_cohesion",
	GroupPreferenceAuthority: "group.preference_authority",
	GroupPreferenceAggress:   "group.preference_aggression",
	GroupPreferenceIsolation: "group.preference_isolation",
	GroupProminenceChange:    "group.prominence_change",
	GroupMigrationTravel:     "group.migration_travel",
	GroupExpansionTravel:     "group.expansion_travel",

	FactionLeaderCharisma:      "faction.leader_charisma",
	FactionLeaderWisdom:        "faction.leader_wisdom",
	FactionLeaderName:          "faction.leader_name",
	FactionLeaderSex:           "faction.leader_sex",
	FactionLeaderAge:           "faction.leader_age",
	FactionCoreMigrationSpan:   "faction.core_migration_span",
	FactionSplitSpan:           "faction.split_span",
	FactionSplitTrigger:        "faction.split_trigger",
	FactionSplitPreference:     "faction.split_preference",
	FactionDemandSpan:          "faction.demand_span",
	FactionDemandTrigger:       "faction.demand_trigger",
	FactionDemandPreference:    "faction.demand_preference",
	FactionRejectPreference:    "faction.reject_preference",
	FactionTribeSplitSpan:      "faction.tribe_split_span",
	FactionTribeSplitTrigger:   "faction.tribe_split_trigger",
	FactionTribeSplitPref:      "faction.tribe_split_preference",
	FactionNameFirst:           "faction.name_first",
	FactionNameSecond:          "faction.name_second",
	FactionPreferenceDrift:     "faction.preference_drift",
	FactionCoreMigrationTarget: "faction.core_migration_target",
	FactionSplitInfluence:      "faction.split_influence",

	PolityNameFirst:         "polity.name_first",
	PolityNameSecond:        "polity.name_second",
	PolityFosterSpan:        "polity.foster_span",
	PolityFosterTrigger:     "polity.foster_trigger",
	PolityFosterPreference:  "polity.foster_preference",
	PolityMergeSpan:         "polity.merge_span",
	PolityMergeTrigger:      "polity.merge_trigger",
	PolityMergePreference:   "polity.merge_preference",
	PolityContactTarget:     "polity.contact_target",
	PolityFosterImprovement: "polity.foster_improvement",

	WorldStartingCulture: "world.starting_culture",
	WorldStartingSite:    "world.starting_site",
}

// Name returns the registered name of an offset, or "" if unregistered.
func (o Offset) Name() string {
	return offsetNames[o]
}

// Registered returns every registered offset.
func Registered() []Offset {
	out := make([]Offset, 0, len(offsetNames))
	for o := range offsetNames {
		out = append(out, o)
	}
	return out
}
