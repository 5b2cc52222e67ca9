package engine

import (
	"fmt"
	"math"
)

// Date is the simulated date in days since world creation.
type Date int64

// Calendar constants.
const (
	DaysPerYear    Date = 365
	GenerationSpan      = 25 * DaysPerYear

	// MaxUpdateSpan caps how far ahead a single reschedule may reach.
	MaxUpdateSpan = 8 * GenerationSpan
)

// Composite id factors. Event ids are
// triggerDate*1e9 + locator*1e3 + eventType, entity ids date*1e6 + locator.
const (
	eventDateFactor    = 1_000_000_000
	eventLocatorFactor = 1_000
	entityDateFactor   = 1_000_000
	maxLocator         = 1_000_000
	maxEventType       = 1_000
)

// MaxSupportedDate is the last date whose event ids fit in an int64.
const MaxSupportedDate Date = math.MaxInt64/eventDateFactor - 1

// NewEventID builds the composite id of an event. Ids order like trigger
// dates, and simultaneous events tie-break by locator then type.
func NewEventID(triggerDate Date, locator int64, eventType EventType) int64 {
	return int64(triggerDate)*eventDateFactor + (locator%maxLocator)*eventLocatorFactor + int64(eventType)%maxEventType
}

// newEntityID builds the id of a group, faction or polity created at date.
func newEntityID(date Date, locator int64) int64 {
	return int64(date)*entityDateFactor + locator%maxLocator
}

// Years converts a date span to fractional years.
func (d Date) Years() float64 {
	return float64(d) / float64(DaysPerYear)
}

// String formats a date as "Year Y, Day D".
func (d Date) String() string {
	return fmt.Sprintf("Year %d, Day %d", d/DaysPerYear+1, d%DaysPerYear+1)
}
