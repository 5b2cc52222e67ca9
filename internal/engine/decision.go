package engine

import (
	"fmt"
	"log/slog"
	"slices"
)

// DecisionState tracks a decision from proposal to resolution.
type DecisionState int

const (
	Proposed DecisionState = iota
	AutonomouslyResolved
	EscalatedToGuidance
	PlayerResolved
)

func (s DecisionState) String() string {
	switch s {
	case Proposed:
		return "proposed"
	case AutonomouslyResolved:
		return "autonomously_resolved"
	case EscalatedToGuidance:
		return "escalated_to_guidance"
	case PlayerResolved:
		return "player_resolved"
	}
	return "unknown"
}

// DecisionKind identifies which builder produced a decision, so a pending
// decision can be rebuilt from its record on load.
type DecisionKind int

const (
	ClanSplitDecisionKind            DecisionKind = 1
	ClanDemandsInfluenceDecisionKind DecisionKind = 2
	AcceptInfluenceDemandKind        DecisionKind = 3
	TribeSplitDecisionKind           DecisionKind = 4
	FosterTribeRelationDecisionKind  DecisionKind = 5
	MergeTribesDecisionKind          DecisionKind = 6
)

// Option is one choice of a decision. Effect mutates the world when chosen.
type Option struct {
	Label       string `json:"label"`
	Consequence string `json:"consequence"`
	Effect      func() `json:"-"`
}

// Decision is a choice a faction faces. Its options and preferred option are
// fixed at construction from the record and the random stream, so building
// the same record twice yields the same decision.
type Decision struct {
	ID          int64         `json:"id"`
	Kind        DecisionKind  `json:"kind"`
	Date        Date          `json:"date"`
	Description string        `json:"description"`
	Options     []Option      `json:"options"`
	Preferred   int           `json:"preferred"`
	State       DecisionState `json:"state"`

	DecidingFactionID int64 `json:"deciding_faction_id"`
	AffectedPolityID  int64 `json:"affected_polity_id"`

	record   DecisionRecord
	executed bool
}

// DecisionRecord is the id-based form of a pending decision. Chance and
// Amount are the values computed when the decision was proposed.
type DecisionRecord struct {
	ID                int64        `json:"id"`
	Kind              DecisionKind `json:"kind"`
	Date              Date         `json:"date"`
	DecidingFactionID int64        `json:"deciding_faction_id"`
	TargetID          int64        `json:"target_id"`
	Chance            float64      `json:"chance"`
	Amount            float64      `json:"amount,omitempty"`
}

// ExecutePreferredOption runs the preferred option's effect.
func (d *Decision) ExecutePreferredOption() error {
	return d.Execute(d.Preferred)
}

// Execute runs option i's effect. A decision executes at most once.
func (d *Decision) Execute(i int) error {
	if d.executed {
		return fmt.Errorf("decision %d: %w", d.ID, ErrDecisionResolved)
	}
	if i < 0 || i >= len(d.Options) {
		return fmt.Errorf("decision %d option %d of %d: %w", d.ID, i, len(d.Options), ErrInvalidOption)
	}
	d.executed = true
	if eff := d.Options[i].Effect; eff != nil {
		eff()
	}
	return nil
}

// Record returns the id-based form of the decision.
func (d *Decision) Record() DecisionRecord {
	return d.record
}

// isGuided reports whether the player steers the deciding faction or the
// affected polity.
func (w *World) isGuided(d *Decision) bool {
	if f := w.Factions[d.DecidingFactionID]; f != nil && f.Guided {
		return true
	}
	if p := w.Polities[d.AffectedPolityID]; p != nil && p.Guided {
		return true
	}
	return false
}

// ResolveDecision escalates d when guided, otherwise executes the preferred
// option immediately.
func (w *World) ResolveDecision(d *Decision) {
	if w.isGuided(d) {
		d.State = EscalatedToGuidance
		w.pendingDecisions = append(w.pendingDecisions, d)
		w.logEvent("decision", "awaiting guidance: %s", d.Description)
		return
	}
	if err := d.ExecutePreferredOption(); err != nil {
		slog.Warn("decision not executed", "decision", d.ID, "err", err)
		return
	}
	d.State = AutonomouslyResolved
	slog.Debug("decision resolved", "decision", d.ID, "option", d.Options[d.Preferred].Label)
}

// PendingDecisions returns the decisions awaiting guidance in arrival order.
func (w *World) PendingDecisions() []*Decision {
	return slices.Clone(w.pendingDecisions)
}

// ResolvePendingDecision executes option of a pending decision (option < 0
// picks the preferred one) and flushes the update phases. Must run on the
// simulation goroutine.
func (w *World) ResolvePendingDecision(id int64, option int) error {
	idx := slices.IndexFunc(w.pendingDecisions, func(d *Decision) bool { return d.ID == id })
	if idx < 0 {
		return fmt.Errorf("decision %d: %w", id, ErrUnknownDecision)
	}
	d := w.pendingDecisions[idx]
	if option < 0 {
		option = d.Preferred
	}
	if option >= len(d.Options) {
		return fmt.Errorf("decision %d option %d of %d: %w", id, option, len(d.Options), ErrInvalidOption)
	}
	w.pendingDecisions = slices.Delete(w.pendingDecisions, idx, idx+1)
	if err := d.Execute(option); err != nil {
		return err
	}
	d.State = PlayerResolved
	w.logEvent("decision", "guided choice %q: %s", d.Options[option].Label, d.Description)
	w.runUpdatePhases()
	return nil
}

func (w *World) decisionPending(id int64) bool {
	return slices.ContainsFunc(w.pendingDecisions, func(d *Decision) bool { return d.ID == id })
}

// dropDecisionsOf discards pending decisions owed by a faction that no
// longer exists.
func (w *World) dropDecisionsOf(factionID int64) {
	w.pendingDecisions = slices.DeleteFunc(w.pendingDecisions, func(d *Decision) bool {
		if d.DecidingFactionID != factionID {
			return false
		}
		slog.Info("pending decision dropped", "decision", d.ID, "faction", factionID)
		return true
	})
}

// proposeDecision builds a decision from its record and resolves it.
func (w *World) proposeDecision(rec DecisionRecord) {
	d, err := w.buildDecision(rec)
	if err != nil {
		slog.Warn("decision not proposed", "kind", rec.Kind, "err", err)
		return
	}
	w.ResolveDecision(d)
}

// buildDecision dispatches a record to the builder of its kind.
func (w *World) buildDecision(rec DecisionRecord) (*Decision, error) {
	decider := w.Factions[rec.DecidingFactionID]
	if decider == nil || !decider.StillPresent {
		return nil, fmt.Errorf("decision %d faction %d: %w", rec.ID, rec.DecidingFactionID, ErrDanglingReference)
	}
	var d *Decision
	var err error
	switch rec.Kind {
	case ClanSplitDecisionKind:
		d, err = w.buildClanSplitDecision(decider, rec)
	case ClanDemandsInfluenceDecisionKind:
		d, err = w.buildClanDemandsInfluenceDecision(decider, rec)
	case AcceptInfluenceDemandKind:
		d, err = w.buildAcceptInfluenceDemandDecision(decider, rec)
	case TribeSplitDecisionKind:
		d, err = w.buildTribeSplitDecision(decider, rec)
	case FosterTribeRelationDecisionKind:
		d, err = w.buildFosterTribeRelationDecision(decider, rec)
	case MergeTribesDecisionKind:
		d, err = w.buildMergeTribesDecision(decider, rec)
	default:
		return nil, fmt.Errorf("decision %d kind %d: %w", rec.ID, rec.Kind, ErrUnknownDecision)
	}
	if err != nil {
		return nil, err
	}
	d.ID = rec.ID
	d.Kind = rec.Kind
	d.Date = rec.Date
	d.DecidingFactionID = decider.ID
	d.record = rec
	return d, nil
}

// newDecisionRecord stamps a record with an id derived like an event id,
// probing forward past ids already pending.
func (w *World) newDecisionRecord(kind DecisionKind, decider *Faction, target int64, chance, amount float64) DecisionRecord {
	id := NewEventID(w.Date, decider.ID, EventType(100+kind))
	for w.decisionPending(id) {
		id++
	}
	return DecisionRecord{
		ID:                id,
		Kind:              kind,
		Date:              w.Date,
		DecidingFactionID: decider.ID,
		TargetID:          target,
		Chance:            chance,
		Amount:            amount,
	}
}
