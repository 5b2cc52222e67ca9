package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTriggerDate is returned for a trigger date at or before the
	// current date or beyond MaxSupportedDate. Callers skip scheduling.
	ErrInvalidTriggerDate = errors.New("invalid trigger date")

	// ErrDanglingReference marks an id in a save that resolves to nothing.
	ErrDanglingReference = errors.New("dangling reference")

	ErrUnknownDecision  = errors.New("unknown decision")
	ErrInvalidOption    = errors.New("invalid decision option")
	ErrDecisionResolved = errors.New("decision already resolved")
	ErrUnknownFaction   = errors.New("unknown faction")
	ErrUnknownPolity    = errors.New("unknown polity")
)

// InvariantError reports a modeling bug: state the engine must never reach.
// It is raised with panic, never returned.
type InvariantError struct {
	Entity  string
	ID      int64
	Message string
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("invariant violated on %s %d: %s", e.Entity, e.ID, e.Message)
}

func invariant(entity string, id int64, format string, args ...any) {
	panic(InvariantError{Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)})
}
