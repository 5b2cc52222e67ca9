package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/talgya/worldhistory/internal/world"
)

const testSpan = 120 * DaysPerYear

// checkInvariants verifies the state every update must leave behind.
func checkInvariants(t *testing.T, w *World) {
	t.Helper()
	for _, id := range sortedIDs(w.Groups) {
		g := w.Groups[id]
		if g.ExactPopulation < 0 {
			t.Fatalf("%s: group %d has negative population %v", w.Date, id, g.ExactPopulation)
		}
		sum := 0.0
		for _, rec := range g.Prominences {
			if rec.Value <= MinPolityProminence {
				t.Fatalf("%s: group %d keeps prominence %v", w.Date, id, rec.Value)
			}
			sum += rec.Value
		}
		if sum > 1+1e-9 {
			t.Fatalf("%s: group %d prominence sum %v", w.Date, id, sum)
		}
		if cell := w.Map.Get(g.Coord); cell.GroupID != id {
			t.Fatalf("%s: cell %v points at %d, not %d", w.Date, g.Coord, cell.GroupID, id)
		}
	}
	for _, id := range sortedIDs(w.Factions) {
		f := w.Factions[id]
		if f.CoreGroup.FactionCores[id] != f || !f.CoreGroup.StillPresent {
			t.Fatalf("%s: faction %d not seated in its core", w.Date, id)
		}
		if f.Polity.Factions[id] != f {
			t.Fatalf("%s: faction %d missing from polity %d", w.Date, id, f.Polity.ID)
		}
		if f.CoreGroup.Prominences[f.Polity.ID] == nil {
			t.Fatalf("%s: core of faction %d has no prominence for %d", w.Date, id, f.Polity.ID)
		}
	}
	if next := w.Events.Peek(); next != nil && next.TriggerDate() <= w.Date {
		t.Fatalf("%s: event %s scheduled at %d, not after now", w.Date, next.TypeID(), next.TriggerDate())
	}
}

func runChecked(t *testing.T, w *World, until Date) {
	t.Helper()
	for {
		next := w.Events.Peek()
		if next == nil || next.TriggerDate() > until {
			return
		}
		w.Update()
		checkInvariants(t, w)
	}
}

func TestLongRunKeepsInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("long run")
	}
	w := generatedWorld(t, 11)
	runChecked(t, w, testSpan)
	if w.EventsTriggered == 0 {
		t.Fatalf("nothing happened in %d days", testSpan)
	}
	if len(w.Groups) == 0 {
		t.Fatalf("every group died out")
	}
}

func TestSameSeedReplaysIdentically(t *testing.T) {
	trace := func(w *World) *[]string {
		var out []string
		w.OnEventTriggered = func(e WorldEvent) {
			out = append(out, fmt.Sprintf("%d:%s:%d", e.TriggerDate(), e.TypeID(), e.ID()))
		}
		return &out
	}
	a := generatedWorld(t, 5)
	b := generatedWorld(t, 5)
	ta, tb := trace(a), trace(b)
	a.Advance(testSpan / 2)
	b.Advance(testSpan / 2)

	if !slices.Equal(*ta, *tb) {
		t.Fatalf("event traces diverge: %d vs %d events", len(*ta), len(*tb))
	}
	if da, db := a.Digest(), b.Digest(); da != db {
		t.Fatalf("digests diverge: %s vs %s", da, db)
	}
	if a.SessionID == b.SessionID {
		t.Fatalf("session ids should differ between runs")
	}
}

func TestSaveLoadContinueMatchesStraightRun(t *testing.T) {
	mid, end := Date(testSpan/3), Date(testSpan/2)

	straight := generatedWorld(t, 9)
	straight.Advance(end)

	saved := generatedWorld(t, 9)
	saved.Advance(mid)
	data, err := json.Marshal(saved.Synchronize())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st SaveState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := Restore(world.Generate(st.MapConfig), &st)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, want := restored.Digest(), saved.Digest(); got != want {
		t.Fatalf("restored digest: got=%s want=%s", got, want)
	}
	checkInvariants(t, restored)

	restored.Advance(end)
	if got, want := restored.Digest(), straight.Digest(); got != want {
		t.Fatalf("continued run diverges: got=%s want=%s", got, want)
	}
}

func TestFinalizeLoadReportsDanglingReferences(t *testing.T) {
	w := generatedWorld(t, 3)
	w.Advance(10 * DaysPerYear)
	st := w.Synchronize()
	st.Events = append(st.Events, EventRecord{Type: UpdateCellGroupEventType, TriggerDate: w.Date + 5, TargetID: 123456789})

	_, err := Restore(world.Generate(st.MapConfig), st)
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("restore error: got=%v want=ErrDanglingReference", err)
	}
}

func TestRestoreRejectsOtherVersions(t *testing.T) {
	w := generatedWorld(t, 3)
	st := w.Synchronize()
	st.Version = SaveVersion + 1
	if _, err := Restore(world.Generate(st.MapConfig), st); err == nil {
		t.Fatalf("restore accepted version %d", st.Version)
	}
}

func TestSeedGroupsSchedulesUpdates(t *testing.T) {
	w := generatedWorld(t, 21)
	if w.Events.Len() != len(w.Groups) {
		t.Fatalf("queued events: got=%d want=%d", w.Events.Len(), len(w.Groups))
	}
	for _, g := range w.Groups {
		if g.NextUpdateDate <= 0 {
			t.Fatalf("group %d next update: %d", g.ID, g.NextUpdateDate)
		}
		if g.OptimalPopulation <= 0 {
			t.Fatalf("group %d seeded on a barren cell", g.ID)
		}
	}
	stats := w.Stats()
	if stats.Groups != len(w.Groups) || stats.TotalPopulation != 100*float64(len(w.Groups)) {
		t.Fatalf("stats: %+v", stats)
	}
}
