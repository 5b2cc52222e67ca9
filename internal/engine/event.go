package engine

// EventType identifies a kind of world event. Values are part of event ids
// and the save format; new kinds only ever append.
type EventType int64

const (
	UpdateCellGroupEventType              EventType = 0
	MigrateGroupEventType                 EventType = 1
	ExpandPolityProminenceEventType       EventType = 2
	TribeFormationEventType               EventType = 3
	ClanCoreMigrationEventType            EventType = 4
	ClanSplitDecisionEventType            EventType = 5
	ClanDemandsInfluenceDecisionEventType EventType = 6
	TribeSplitDecisionEventType           EventType = 7
	FosterTribeRelationDecisionEventType  EventType = 8
	MergeTribesDecisionEventType          EventType = 9
)

var eventTypeNames = map[EventType]string{
	UpdateCellGroupEventType:              "update_cell_group",
	MigrateGroupEventType:                 "migrate_group",
	ExpandPolityProminenceEventType:       "expand_polity_prominence",
	TribeFormationEventType:               "tribe_formation",
	ClanCoreMigrationEventType:            "clan_core_migration",
	ClanSplitDecisionEventType:            "clan_split_decision",
	ClanDemandsInfluenceDecisionEventType: "clan_demands_influence_decision",
	TribeSplitDecisionEventType:           "tribe_split_decision",
	FosterTribeRelationDecisionEventType:  "foster_tribe_relation_decision",
	MergeTribesDecisionEventType:          "merge_tribes_decision",
}

func (t EventType) String() string {
	if n, ok := eventTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// WorldEvent is a scheduled occurrence. CanTrigger is checked when the event
// comes due; Trigger only runs when it holds. Destroy always runs last and
// releases whatever handle the owner keeps on the event.
type WorldEvent interface {
	ID() int64
	TypeID() EventType
	TriggerDate() Date
	SpawnDate() Date
	CanTrigger() bool
	Trigger()
	Destroy()

	// Record flattens the event for a save.
	Record() EventRecord

	base() *BaseEvent
}

// BaseEvent carries the identity shared by every event kind.
type BaseEvent struct {
	world       *World
	id          int64
	typeID      EventType
	locator     int64
	triggerDate Date
	spawnDate   Date

	node *eventNode
}

func (e *BaseEvent) init(w *World, typeID EventType, locator int64, triggerDate Date) {
	e.world = w
	e.typeID = typeID
	e.locator = locator
	e.triggerDate = triggerDate
	e.spawnDate = w.Date
	e.id = NewEventID(triggerDate, locator, typeID)
}

// Reset re-arms the event for a new trigger date. The id is recomputed, so
// the caller must re-insert the event into the queue.
func (e *BaseEvent) Reset(triggerDate Date) {
	e.triggerDate = triggerDate
	e.spawnDate = e.world.Date
	e.id = NewEventID(triggerDate, e.locator, e.typeID)
}

func (e *BaseEvent) ID() int64         { return e.id }
func (e *BaseEvent) TypeID() EventType { return e.typeID }
func (e *BaseEvent) TriggerDate() Date { return e.triggerDate }
func (e *BaseEvent) SpawnDate() Date   { return e.spawnDate }
func (e *BaseEvent) base() *BaseEvent  { return e }

// Queued reports whether the event currently has a valid queue node.
func (e *BaseEvent) Queued() bool {
	return e.node != nil && e.node.valid
}

// EventRecord is the id-based form of an event in a save.
type EventRecord struct {
	Type        EventType `json:"type"`
	TriggerDate Date      `json:"trigger_date"`
	SpawnDate   Date      `json:"spawn_date"`
	TargetID    int64     `json:"target_id"`
	SecondaryID int64     `json:"secondary_id,omitempty"`
	TertiaryID  int64     `json:"tertiary_id,omitempty"`
}

func (e *BaseEvent) record(target, secondary, tertiary int64) EventRecord {
	return EventRecord{
		Type:        e.typeID,
		TriggerDate: e.triggerDate,
		SpawnDate:   e.spawnDate,
		TargetID:    target,
		SecondaryID: secondary,
		TertiaryID:  tertiary,
	}
}
