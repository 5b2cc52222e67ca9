package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ValidateTriggerDate rejects dates that are not strictly in the future or
// that overflow event ids.
func (w *World) ValidateTriggerDate(date Date) error {
	if date <= w.Date {
		return fmt.Errorf("date %d not after current %d: %w", date, w.Date, ErrInvalidTriggerDate)
	}
	if date > MaxSupportedDate {
		return fmt.Errorf("date %d beyond %d: %w", date, MaxSupportedDate, ErrInvalidTriggerDate)
	}
	return nil
}

// dateAfter turns a span in days into a trigger date. The span is capped at
// MaxUpdateSpan; degenerate spans yield ErrInvalidTriggerDate.
func (w *World) dateAfter(days float64) (Date, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) {
		return 0, fmt.Errorf("span %v: %w", days, ErrInvalidTriggerDate)
	}
	span := Date(math.Min(days, float64(MaxUpdateSpan)))
	date := w.Date + span
	if err := w.ValidateTriggerDate(date); err != nil {
		return 0, err
	}
	return date, nil
}

// schedule inserts e unless its trigger date is invalid, in which case a
// warning is logged and false returned.
func (w *World) schedule(e WorldEvent) bool {
	if err := w.ValidateTriggerDate(e.TriggerDate()); err != nil {
		slog.Warn("event not scheduled", "type", e.TypeID().String(), "err", err)
		return false
	}
	w.Events.Insert(e)
	return true
}

// Update advances the clock to the next due date, fires every event due on
// it in id order and runs the update phases. Returns false when the queue is
// empty.
func (w *World) Update() bool {
	next := w.Events.Peek()
	if next == nil {
		return false
	}
	w.Date = next.TriggerDate()

	for {
		e := w.Events.Peek()
		if e == nil || e.TriggerDate() != w.Date {
			break
		}
		w.Events.Pop()
		w.fire(e)
	}

	w.runUpdatePhases()
	return true
}

func (w *World) fire(e WorldEvent) {
	if e.CanTrigger() {
		e.Trigger()
		w.EventsTriggered++
		if w.OnEventTriggered != nil {
			w.OnEventTriggered(e)
		}
	}
	e.Destroy()
}

// Advance runs updates while the next event is due at or before target, then
// moves the clock to target. Returns the number of updates.
func (w *World) Advance(target Date) int {
	steps, _ := w.AdvanceWithBudget(target, 0, 0)
	return steps
}

// AdvanceWithBudget is Advance capped at maxSteps updates and maxWall wall
// time (zero means unbounded). reached reports whether the clock got to target.
func (w *World) AdvanceWithBudget(target Date, maxSteps int, maxWall time.Duration) (steps int, reached bool) {
	if target > MaxSupportedDate {
		target = MaxSupportedDate
	}
	start := time.Now()
	for {
		next := w.Events.Peek()
		if next == nil || next.TriggerDate() > target {
			break
		}
		if maxSteps > 0 && steps >= maxSteps {
			return steps, false
		}
		if maxWall > 0 && time.Since(start) >= maxWall {
			return steps, false
		}
		w.Update()
		steps++
	}
	if target > w.Date {
		w.Date = target
	}
	return steps, true
}

// runUpdatePhases is the fixed barrier every update ends with:
//
//	A  group updates
//	B  migrations arrive, group prominences commit
//	C  polity updates, faction updates (core migrations commit here)
//	D  prominences commit again, removals, distances and administrative cost
func (w *World) runUpdatePhases() {
	// A
	groups := sortedIDs(w.groupsToUpdate)
	clear(w.groupsToUpdate)
	for _, id := range groups {
		if g := w.Groups[id]; g != nil {
			g.Update()
		}
	}

	// B
	w.applyMigrations()
	w.commitProminences()

	// C
	polities := sortedIDs(w.politiesToUpdate)
	clear(w.politiesToUpdate)
	for _, id := range polities {
		if p := w.Polities[id]; p != nil {
			p.Update()
		}
	}
	factions := sortedIDs(w.factionsToUpdate)
	clear(w.factionsToUpdate)
	for _, id := range factions {
		if f := w.Factions[id]; f != nil {
			f.Update()
		}
	}

	// D
	w.commitProminences()
	w.processRemovals()
	w.refreshPolityDistances()

	clear(w.updatedGroups)
}

func (w *World) commitProminences() {
	for len(w.groupsToPostUpdate) > 0 {
		ids := sortedIDs(w.groupsToPostUpdate)
		clear(w.groupsToPostUpdate)
		for _, id := range ids {
			if g := w.Groups[id]; g != nil {
				g.commitProminences()
			}
		}
	}
}

// processRemovals drains the removal batches. Removing a group can orphan a
// faction, and a faction its polity, so it loops until all are empty.
func (w *World) processRemovals() {
	for len(w.groupsToRemove)+len(w.factionsToRemove)+len(w.politiesToRemove) > 0 {
		for _, id := range sortedIDs(w.groupsToRemove) {
			g := w.groupsToRemove[id]
			delete(w.groupsToRemove, id)
			w.removeGroup(g)
		}
		w.commitProminences()
		for _, id := range sortedIDs(w.factionsToRemove) {
			f := w.factionsToRemove[id]
			delete(w.factionsToRemove, id)
			w.removeFaction(f)
		}
		for _, id := range sortedIDs(w.politiesToRemove) {
			p := w.politiesToRemove[id]
			delete(w.politiesToRemove, id)
			w.removePolity(p)
		}
		w.commitProminences()
	}
}

func (w *World) refreshPolityDistances() {
	for _, id := range sortedIDs(w.Polities) {
		p := w.Polities[id]
		if p.distancesDirty {
			p.refreshDistances()
		}
	}
}
