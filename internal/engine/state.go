package engine

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"lukechampine.com/blake3"

	"github.com/talgya/worldhistory/internal/agents"
	"github.com/talgya/worldhistory/internal/social"
	"github.com/talgya/worldhistory/internal/world"
)

// SaveVersion is bumped whenever the save layout changes incompatibly.
const SaveVersion = 1

// SaveState is the flat, id-based form of a world between updates.
type SaveState struct {
	Version   int             `json:"version"`
	Seed      int64           `json:"seed"`
	SessionID string          `json:"session_id"`
	Date      Date            `json:"date"`
	MapConfig world.GenConfig `json:"map_config"`

	Groups    []GroupRecord    `json:"groups"`
	Polities  []PolityRecord   `json:"polities"`
	Factions  []FactionRecord  `json:"factions"`
	Events    []EventRecord    `json:"events"`
	Decisions []DecisionRecord `json:"decisions"`
}

// GroupRecord is a saved CellGroup.
type GroupRecord struct {
	ID                          int64              `json:"id"`
	Coord                       world.HexCoord     `json:"coord"`
	ExactPopulation             float64            `json:"exact_population"`
	OptimalPopulation           float64            `json:"optimal_population"`
	Culture                     social.Culture     `json:"culture"`
	InitDate                    Date               `json:"init_date"`
	LastUpdateDate              Date               `json:"last_update_date"`
	NextUpdateDate              Date               `json:"next_update_date"`
	PreferredMigrationDirection int                `json:"preferred_migration_direction"`
	TotalPolityProminenceValue  float64            `json:"total_polity_prominence_value"`
	Prominences                 []ProminenceRecord `json:"prominences"`
}

// ProminenceRecord is a saved PolityProminence.
type ProminenceRecord struct {
	PolityID            int64   `json:"polity_id"`
	Value               float64 `json:"value"`
	FactionCoreDistance float64 `json:"faction_core_distance"`
	PolityCoreDistance  float64 `json:"polity_core_distance"`
	ClosestFactionID    int64   `json:"closest_faction_id"`
	AdministrativeCost  float64 `json:"administrative_cost"`
	LastChangeDate      Date    `json:"last_change_date"`
}

// PolityRecord is a saved Polity.
type PolityRecord struct {
	ID                      int64           `json:"id"`
	Type                    PolityType      `json:"type"`
	Name                    string          `json:"name"`
	FormationDate           Date            `json:"formation_date"`
	CoreGroupID             int64           `json:"core_group_id"`
	DominantFactionID       int64           `json:"dominant_faction_id"`
	Culture                 social.Culture  `json:"culture"`
	Contacts                []PolityContact `json:"contacts"`
	TotalAdministrativeCost float64         `json:"total_administrative_cost"`
	TotalPopulation         float64         `json:"total_population"`
	Guided                  bool            `json:"guided"`
}

// FactionRecord is a saved Faction.
type FactionRecord struct {
	ID              int64                `json:"id"`
	Type            FactionType          `json:"type"`
	Name            string               `json:"name"`
	FormationDate   Date                 `json:"formation_date"`
	PolityID        int64                `json:"polity_id"`
	CoreGroupID     int64                `json:"core_group_id"`
	Influence       float64              `json:"influence"`
	Preferences     social.Preferences   `json:"preferences"`
	Relationships   []RelationshipRecord `json:"relationships"`
	Leader          agents.Agent         `json:"leader"`
	LeaderStartDate Date                 `json:"leader_start_date"`
	LastUpdateDate  Date                 `json:"last_update_date"`
	Guided          bool                 `json:"guided"`
}

// RelationshipRecord is one saved faction relationship.
type RelationshipRecord struct {
	FactionID int64   `json:"faction_id"`
	Value     float64 `json:"value"`
}

// Synchronize flattens the world into a SaveState. Call between updates.
func (w *World) Synchronize() *SaveState {
	st := &SaveState{
		Version:   SaveVersion,
		Seed:      w.Seed,
		SessionID: w.SessionID,
		Date:      w.Date,
		MapConfig: w.MapConfig,
	}
	for _, id := range sortedIDs(w.Groups) {
		g := w.Groups[id]
		rec := GroupRecord{
			ID:                          g.ID,
			Coord:                       g.Coord,
			ExactPopulation:             g.ExactPopulation,
			OptimalPopulation:           g.OptimalPopulation,
			Culture:                     g.Culture,
			InitDate:                    g.InitDate,
			LastUpdateDate:              g.LastUpdateDate,
			NextUpdateDate:              g.NextUpdateDate,
			PreferredMigrationDirection: g.PreferredMigrationDirection,
			TotalPolityProminenceValue:  g.TotalPolityProminenceValue,
		}
		for _, pid := range sortedIDs(g.Prominences) {
			p := g.Prominences[pid]
			rec.Prominences = append(rec.Prominences, ProminenceRecord{
				PolityID:            pid,
				Value:               p.Value,
				FactionCoreDistance: p.FactionCoreDistance,
				PolityCoreDistance:  p.PolityCoreDistance,
				ClosestFactionID:    p.ClosestFactionID,
				AdministrativeCost:  p.AdministrativeCost,
				LastChangeDate:      p.LastChangeDate,
			})
		}
		st.Groups = append(st.Groups, rec)
	}
	for _, id := range sortedIDs(w.Polities) {
		p := w.Polities[id]
		rec := PolityRecord{
			ID:                      p.ID,
			Type:                    p.Type,
			Name:                    p.Name,
			FormationDate:           p.FormationDate,
			Culture:                 p.Culture,
			TotalAdministrativeCost: p.TotalAdministrativeCost,
			TotalPopulation:         p.TotalPopulation,
			Guided:                  p.Guided,
		}
		if p.CoreGroup != nil {
			rec.CoreGroupID = p.CoreGroup.ID
		}
		if p.DominantFaction != nil {
			rec.DominantFactionID = p.DominantFaction.ID
		}
		for _, qid := range sortedIDs(p.Contacts) {
			rec.Contacts = append(rec.Contacts, *p.Contacts[qid])
		}
		st.Polities = append(st.Polities, rec)
	}
	for _, id := range sortedIDs(w.Factions) {
		f := w.Factions[id]
		rec := FactionRecord{
			ID:              f.ID,
			Type:            f.Type,
			Name:            f.Name,
			FormationDate:   f.FormationDate,
			PolityID:        f.Polity.ID,
			CoreGroupID:     f.CoreGroup.ID,
			Influence:       f.Influence,
			Preferences:     f.Preferences,
			LeaderStartDate: f.LeaderStartDate,
			LastUpdateDate:  f.LastUpdateDate,
			Guided:          f.Guided,
		}
		if f.Leader != nil {
			rec.Leader = *f.Leader
		}
		for _, oid := range sortedIDs(f.Relationships) {
			rec.Relationships = append(rec.Relationships, RelationshipRecord{FactionID: oid, Value: f.Relationships[oid]})
		}
		st.Factions = append(st.Factions, rec)
	}
	w.Events.Each(func(e WorldEvent) {
		st.Events = append(st.Events, e.Record())
	})
	for _, d := range w.pendingDecisions {
		st.Decisions = append(st.Decisions, d.Record())
	}
	return st
}

// Digest fingerprints the world: blake3 over the JSON save state with the
// session id blanked. Identical seeds and inputs give identical digests.
func (w *World) Digest() string {
	st := w.Synchronize()
	st.SessionID = ""
	data, err := json.Marshal(st)
	if err != nil {
		// Save records hold only plain values.
		panic(fmt.Sprintf("marshal save state: %v", err))
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load creates every entity of a save on m without resolving references.
// FinalizeLoad must follow.
func Load(m *world.Map, st *SaveState) *World {
	w := NewWorld(st.MapConfig, m)
	w.Seed = st.Seed
	if st.SessionID != "" {
		w.SessionID = st.SessionID
	}
	w.Date = st.Date

	for _, rec := range st.Groups {
		g := &CellGroup{
			world:                       w,
			ID:                          rec.ID,
			Coord:                       rec.Coord,
			Locator:                     rec.Coord.Locator(),
			ExactPopulation:             rec.ExactPopulation,
			OptimalPopulation:           rec.OptimalPopulation,
			Culture:                     rec.Culture,
			InitDate:                    rec.InitDate,
			LastUpdateDate:              rec.LastUpdateDate,
			NextUpdateDate:              rec.NextUpdateDate,
			PreferredMigrationDirection: rec.PreferredMigrationDirection,
			TotalPolityProminenceValue:  rec.TotalPolityProminenceValue,
			StillPresent:                true,
			Prominences:                 make(map[int64]*PolityProminence),
			FactionCores:                make(map[int64]*Faction),
			prominencesToAdd:            make(map[int64]float64),
			prominencesToRemove:         make(map[int64]bool),
			factionCoresToBe:            make(map[int64]*Faction),
		}
		g.updateEvent = newUpdateCellGroupEvent(w, g, w.Date)
		w.Groups[g.ID] = g
	}
	for _, rec := range st.Polities {
		w.Polities[rec.ID] = &Polity{
			world:                   w,
			ID:                      rec.ID,
			Type:                    rec.Type,
			Name:                    rec.Name,
			FormationDate:           rec.FormationDate,
			Prominences:             make(map[int64]*PolityProminence),
			Territory:               make(map[int64]*CellGroup),
			Factions:                make(map[int64]*Faction),
			Contacts:                make(map[int64]*PolityContact),
			Culture:                 rec.Culture,
			TotalAdministrativeCost: rec.TotalAdministrativeCost,
			TotalPopulation:         rec.TotalPopulation,
			Guided:                  rec.Guided,
			StillPresent:            true,
		}
	}
	for _, rec := range st.Factions {
		leader := rec.Leader
		f := &Faction{
			world:           w,
			ID:              rec.ID,
			Type:            rec.Type,
			Name:            rec.Name,
			FormationDate:   rec.FormationDate,
			Influence:       rec.Influence,
			Preferences:     rec.Preferences,
			Relationships:   make(map[int64]float64, len(rec.Relationships)),
			Leader:          &leader,
			LeaderStartDate: rec.LeaderStartDate,
			LastUpdateDate:  rec.LastUpdateDate,
			Guided:          rec.Guided,
			StillPresent:    true,
		}
		for _, r := range rec.Relationships {
			f.Relationships[r.FactionID] = r.Value
		}
		w.Factions[f.ID] = f
	}
	return w
}

// FinalizeLoad resolves every id of the save, rebuilds derived state and
// re-inserts events and pending decisions. Each dangling id is logged and
// reported; the returned error wraps ErrDanglingReference.
func (w *World) FinalizeLoad(st *SaveState) error {
	var errs []error
	dangling := func(format string, args ...any) {
		err := fmt.Errorf(format+": %w", append(args, ErrDanglingReference)...)
		slog.Error("load failed to resolve reference", "err", err)
		errs = append(errs, err)
	}

	for _, rec := range st.Groups {
		g := w.Groups[rec.ID]
		cell := w.Map.Get(rec.Coord)
		if cell == nil || !cell.IsLand() {
			dangling("group %d cell %v", rec.ID, rec.Coord)
			continue
		}
		cell.GroupID = g.ID
		for _, pr := range rec.Prominences {
			p := w.Polities[pr.PolityID]
			if p == nil {
				dangling("group %d prominence polity %d", rec.ID, pr.PolityID)
				continue
			}
			prom := &PolityProminence{
				Polity:              p,
				PolityID:            p.ID,
				Group:               g,
				Value:               pr.Value,
				NewValue:            pr.Value,
				FactionCoreDistance: pr.FactionCoreDistance,
				PolityCoreDistance:  pr.PolityCoreDistance,
				ClosestFactionID:    pr.ClosestFactionID,
				AdministrativeCost:  pr.AdministrativeCost,
				LastChangeDate:      pr.LastChangeDate,
			}
			g.Prominences[p.ID] = prom
			p.Prominences[g.ID] = prom
		}
	}

	for _, rec := range st.Factions {
		f := w.Factions[rec.ID]
		p := w.Polities[rec.PolityID]
		core := w.Groups[rec.CoreGroupID]
		if p == nil {
			dangling("faction %d polity %d", rec.ID, rec.PolityID)
			continue
		}
		if core == nil {
			dangling("faction %d core group %d", rec.ID, rec.CoreGroupID)
			continue
		}
		f.Polity = p
		f.CoreGroup = core
		p.Factions[f.ID] = f
		core.FactionCores[f.ID] = f
	}

	for _, rec := range st.Polities {
		p := w.Polities[rec.ID]
		if rec.CoreGroupID != 0 {
			if p.CoreGroup = w.Groups[rec.CoreGroupID]; p.CoreGroup == nil {
				dangling("polity %d core group %d", rec.ID, rec.CoreGroupID)
			}
		}
		if rec.DominantFactionID != 0 {
			if p.DominantFaction = w.Factions[rec.DominantFactionID]; p.DominantFaction == nil {
				dangling("polity %d dominant faction %d", rec.ID, rec.DominantFactionID)
			}
		}
		for _, c := range rec.Contacts {
			c := c
			p.Contacts[c.PolityID] = &c
		}
	}

	for _, id := range sortedIDs(w.Groups) {
		w.Groups[id].refreshHighestProminence()
	}

	for _, rec := range st.Events {
		e, err := w.rebuildEvent(rec)
		if err != nil {
			dangling("event %s on %d", rec.Type, rec.TargetID)
			continue
		}
		e.base().spawnDate = rec.SpawnDate
		w.Events.Insert(e)
	}

	for _, rec := range st.Decisions {
		d, err := w.buildDecision(rec)
		if err != nil {
			if errors.Is(err, ErrDanglingReference) {
				dangling("decision %d", rec.ID)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		d.State = EscalatedToGuidance
		w.pendingDecisions = append(w.pendingDecisions, d)
	}

	return errors.Join(errs...)
}

// Restore is Load followed by FinalizeLoad.
func Restore(m *world.Map, st *SaveState) (*World, error) {
	if st.Version != SaveVersion {
		return nil, fmt.Errorf("save version %d, want %d", st.Version, SaveVersion)
	}
	w := Load(m, st)
	if err := w.FinalizeLoad(st); err != nil {
		return nil, fmt.Errorf("finalize load: %w", err)
	}
	slog.Info("world restored", "date", w.Date.String(), "groups", len(w.Groups), "polities", len(w.Polities))
	return w, nil
}

func (w *World) rebuildEvent(rec EventRecord) (WorldEvent, error) {
	group := func(id int64) (*CellGroup, error) {
		if g := w.Groups[id]; g != nil {
			return g, nil
		}
		return nil, ErrDanglingReference
	}
	faction := func(id int64) (*Faction, error) {
		if f := w.Factions[id]; f != nil {
			return f, nil
		}
		return nil, ErrDanglingReference
	}
	polity := func(id int64) (*Polity, error) {
		if p := w.Polities[id]; p != nil {
			return p, nil
		}
		return nil, ErrDanglingReference
	}

	switch rec.Type {
	case UpdateCellGroupEventType:
		g, err := group(rec.TargetID)
		if err != nil {
			return nil, err
		}
		g.updateEvent.Reset(rec.TriggerDate)
		return g.updateEvent, nil
	case MigrateGroupEventType:
		g, err := group(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newMigrateGroupEvent(w, g, world.CoordFromLocator(rec.SecondaryID), MigrationType(rec.TertiaryID), rec.TriggerDate)
		g.migrationEvent = e
		return e, nil
	case ExpandPolityProminenceEventType:
		g, err := group(rec.TargetID)
		if err != nil {
			return nil, err
		}
		p, err := polity(rec.SecondaryID)
		if err != nil {
			return nil, err
		}
		t, err := group(rec.TertiaryID)
		if err != nil {
			return nil, err
		}
		e := newExpandPolityProminenceEvent(w, g, p, t, rec.TriggerDate)
		g.expansionEvent = e
		return e, nil
	case TribeFormationEventType:
		g, err := group(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newTribeFormationEvent(w, g, rec.TriggerDate)
		g.tribeFormationEvent = e
		return e, nil
	case ClanCoreMigrationEventType:
		f, err := faction(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newClanCoreMigrationEvent(w, f, rec.TriggerDate)
		f.coreMigrationEvent = e
		return e, nil
	case ClanSplitDecisionEventType:
		f, err := faction(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newClanSplitDecisionEvent(w, f, rec.TriggerDate)
		f.splitEvent = e
		return e, nil
	case ClanDemandsInfluenceDecisionEventType:
		f, err := faction(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newClanDemandsInfluenceDecisionEvent(w, f, rec.TriggerDate)
		f.demandEvent = e
		return e, nil
	case TribeSplitDecisionEventType:
		f, err := faction(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newTribeSplitDecisionEvent(w, f, rec.TriggerDate)
		f.tribeSplitEvent = e
		return e, nil
	case FosterTribeRelationDecisionEventType:
		p, err := polity(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newFosterTribeRelationDecisionEvent(w, p, rec.TriggerDate)
		p.fosterEvent = e
		return e, nil
	case MergeTribesDecisionEventType:
		p, err := polity(rec.TargetID)
		if err != nil {
			return nil, err
		}
		e := newMergeTribesDecisionEvent(w, p, rec.TriggerDate)
		p.mergeEvent = e
		return e, nil
	}
	return nil, fmt.Errorf("event type %d: %w", rec.Type, ErrDanglingReference)
}
