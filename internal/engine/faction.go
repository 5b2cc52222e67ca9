package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/worldhistory/internal/agents"
	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
)

// FactionType identifies the kind of faction. Only clans exist for now.
type FactionType int

const ClanType FactionType = 0

func (t FactionType) String() string {
	if t == ClanType {
		return "clan"
	}
	return "unknown"
}

// Faction constants.
const (
	DefaultRelationship = 0.5
	LeaderTenureYears   = 20
	LeaderMaxAge        = 70
)

// Faction is a group of people within a polity with its own seat and leader.
type Faction struct {
	world *World

	ID            int64
	Type          FactionType
	Name          string
	FormationDate Date
	Polity        *Polity
	CoreGroup     *CellGroup

	// Influence is the faction's share of power; shares in a polity sum to 1.
	Influence     float64
	Preferences   social.Preferences
	Relationships map[int64]float64

	Leader          *agents.Agent
	LeaderStartDate Date
	LastUpdateDate  Date

	Guided       bool
	StillPresent bool

	newCoreGroup *CellGroup

	coreMigrationEvent *ClanCoreMigrationEvent
	splitEvent         *ClanSplitDecisionEvent
	demandEvent        *ClanDemandsInfluenceDecisionEvent
	tribeSplitEvent    *TribeSplitDecisionEvent
}

// createClan founds a clan seated in core. It is not yet attached to p's
// faction set; callers decide its influence and attach it.
func (w *World) createClan(p *Polity, core *CellGroup, prefs social.Preferences) *Faction {
	id := w.allocateID(core.Locator, func(id int64) bool {
		_, ok := w.Factions[id]
		return ok
	})
	date := int64(w.Date)
	f := &Faction{
		world:           w,
		ID:              id,
		Type:            ClanType,
		Name:            agents.GenerateName(w.RNG, id, date, rng.FactionNameFirst),
		FormationDate:   w.Date,
		Polity:          p,
		CoreGroup:       core,
		Preferences:     prefs,
		Relationships:   make(map[int64]float64),
		Leader:          agents.NewLeader(w.RNG, id, date),
		LeaderStartDate: w.Date,
		LastUpdateDate:  w.Date,
		StillPresent:    true,
	}
	w.Factions[id] = f
	core.FactionCores[id] = f
	w.AddFactionToUpdate(f)
	return f
}

// IsDominant reports whether the faction leads its polity.
func (f *Faction) IsDominant() bool {
	return f.Polity != nil && f.Polity.DominantFaction == f
}

// RelationshipWith returns the relationship with another faction, default 0.5.
func (f *Faction) RelationshipWith(other *Faction) float64 {
	if v, ok := f.Relationships[other.ID]; ok {
		return v
	}
	return DefaultRelationship
}

// SetRelationship sets the relationship symmetrically.
func (f *Faction) SetRelationship(other *Faction, value float64) {
	value = mathx.Round(mathx.Clamp01(value))
	f.Relationships[other.ID] = value
	other.Relationships[f.ID] = value
}

// Update runs in phase C: commits a pending core migration, renews the
// leader and drifts preferences toward the core group.
func (f *Faction) Update() {
	if !f.StillPresent {
		return
	}
	if f.newCoreGroup != nil {
		f.migrateToNewCore()
	}
	f.updateLeader()
	f.updatePreferences()
	f.scheduleEvents()
}

func (f *Faction) updateLeader() {
	w := f.world
	tenure := w.Date - f.LeaderStartDate
	if f.Leader != nil && tenure < LeaderTenureYears*DaysPerYear && f.Leader.Age(int64(w.Date)) < LeaderMaxAge {
		return
	}
	f.Leader = agents.NewLeader(w.RNG, f.ID, int64(w.Date))
	f.LeaderStartDate = w.Date
	slog.Debug("new clan leader", "faction", f.ID, "leader", f.Leader.Name)
}

func (f *Faction) updatePreferences() {
	w := f.world
	span := w.Date - f.LastUpdateDate
	if span <= 0 {
		return
	}
	f.LastUpdateDate = w.Date
	rate := (1 - math.Exp(-float64(span)/float64(GenerationSpan))) *
		w.RNG.Range(f.ID, int64(w.Date), rng.FactionPreferenceDrift, 0.25, 0.75)
	f.Preferences = f.Preferences.Blend(f.CoreGroup.Culture.Preferences, mathx.Clamp01(rate))
}

// scheduleEvents arms whichever recurring events the faction lacks.
func (f *Faction) scheduleEvents() {
	w := f.world
	date := int64(w.Date)
	arm := func(kind string, days float64, build func(Date) WorldEvent) WorldEvent {
		at, err := w.dateAfter(days)
		if err != nil {
			slog.Warn("faction event not scheduled", "faction", f.ID, "event", kind, "err", err)
			return nil
		}
		e := build(at)
		if !w.schedule(e) {
			return nil
		}
		return e
	}

	if f.coreMigrationEvent == nil {
		days := float64(GenerationSpan) / 2 * w.RNG.Range(f.ID, date, rng.FactionCoreMigrationSpan, 0.5, 1.5)
		if e := arm("core_migration", days, func(d Date) WorldEvent { return newClanCoreMigrationEvent(w, f, d) }); e != nil {
			f.coreMigrationEvent = e.(*ClanCoreMigrationEvent)
		}
	}
	if f.splitEvent == nil {
		days := float64(GenerationSpan) * w.RNG.Range(f.ID, date, rng.FactionSplitSpan, 0.5, 1.5)
		if e := arm("split", days, func(d Date) WorldEvent { return newClanSplitDecisionEvent(w, f, d) }); e != nil {
			f.splitEvent = e.(*ClanSplitDecisionEvent)
		}
	}
	if f.demandEvent == nil {
		days := float64(GenerationSpan) * w.RNG.Range(f.ID, date, rng.FactionDemandSpan, 0.5, 1.5)
		if e := arm("demand", days, func(d Date) WorldEvent { return newClanDemandsInfluenceDecisionEvent(w, f, d) }); e != nil {
			f.demandEvent = e.(*ClanDemandsInfluenceDecisionEvent)
		}
	}
	if f.tribeSplitEvent == nil {
		days := 2 * float64(GenerationSpan) * w.RNG.Range(f.ID, date, rng.FactionTribeSplitSpan, 0.5, 1.5)
		if e := arm("tribe_split", days, func(d Date) WorldEvent { return newTribeSplitDecisionEvent(w, f, d) }); e != nil {
			f.tribeSplitEvent = e.(*TribeSplitDecisionEvent)
		}
	}
}

// ShouldMigrateFactionCore compares population×prominence of the candidate
// against the current core, scaled by a threshold that rises with cohesion
// and falls with authority:
//
//	(1 + clamp(2×cohesion, 0, 2)^4) / (0.5 + authority)
func (f *Faction) ShouldMigrateFactionCore(current, candidate *CellGroup) bool {
	if candidate == nil || candidate == current || !candidate.StillPresent {
		return false
	}
	p := f.Polity
	curScore := current.ExactPopulation * current.pendingProminence(p.ID)
	candScore := candidate.ExactPopulation * candidate.pendingProminence(p.ID)
	threshold := (1 + mathx.Sharpen(f.Preferences.Cohesion)) / (0.5 + f.Preferences.Authority)
	return candScore > curScore*threshold
}

// PrepareNewCoreGroup flags candidate to become the faction's core. The move
// is committed in the faction's next update.
func (f *Faction) PrepareNewCoreGroup(candidate *CellGroup) {
	if f.newCoreGroup != nil {
		delete(f.newCoreGroup.factionCoresToBe, f.ID)
	}
	f.newCoreGroup = candidate
	candidate.factionCoresToBe[f.ID] = f
	f.world.AddFactionToUpdate(f)
}

// NewCoreGroup returns the group flagged to become core, if any.
func (f *Faction) NewCoreGroup() *CellGroup {
	return f.newCoreGroup
}

func (f *Faction) cancelCoreMigration() {
	if f.newCoreGroup != nil {
		delete(f.newCoreGroup.factionCoresToBe, f.ID)
		f.newCoreGroup = nil
	}
}

// migrateToNewCore seats the faction in its flagged group. The new core is
// registered before the old one is released.
func (f *Faction) migrateToNewCore() {
	next := f.newCoreGroup
	f.cancelCoreMigration()
	if !next.StillPresent || next.Prominences[f.Polity.ID] == nil {
		return
	}
	old := f.CoreGroup
	f.setCoreGroup(next)
	f.world.logEvent("clan", "the %s clan moved its seat from %v to %v", f.Name, old.Coord, next.Coord)
	old.requestUpdate()
	next.requestUpdate()
}

func (f *Faction) setCoreGroup(g *CellGroup) {
	old := f.CoreGroup
	g.FactionCores[f.ID] = f
	if old != nil && old != g {
		delete(old.FactionCores, f.ID)
	}
	f.CoreGroup = g
	if g.pendingProminence(f.Polity.ID) < MinCoreProminence {
		g.adjustProminence(f.Polity, MinCoreProminence)
	}
	if f.IsDominant() {
		f.Polity.CoreGroup = g
	}
	f.Polity.distancesDirty = true
	f.world.AddPolityToUpdate(f.Polity)
}

// removeFaction handles a faction marked for removal.
func (w *World) removeFaction(f *Faction) {
	w.destroyFaction(f, true)
}

// destroyFaction drops the faction, its seat, its events and any decisions it
// owes. detach also removes it from its polity.
func (w *World) destroyFaction(f *Faction, detach bool) {
	if !f.StillPresent {
		return
	}
	f.StillPresent = false
	f.cancelCoreMigration()
	if f.CoreGroup != nil {
		delete(f.CoreGroup.FactionCores, f.ID)
	}
	if f.coreMigrationEvent != nil {
		w.Events.Remove(f.coreMigrationEvent)
	}
	if f.splitEvent != nil {
		w.Events.Remove(f.splitEvent)
	}
	if f.demandEvent != nil {
		w.Events.Remove(f.demandEvent)
	}
	if f.tribeSplitEvent != nil {
		w.Events.Remove(f.tribeSplitEvent)
	}
	f.coreMigrationEvent, f.splitEvent, f.demandEvent, f.tribeSplitEvent = nil, nil, nil, nil
	w.dropDecisionsOf(f.ID)

	if detach && f.Polity != nil {
		f.Polity.removeFaction(f)
	} else if f.Polity != nil {
		delete(f.Polity.Factions, f.ID)
	}
	delete(w.Factions, f.ID)
	delete(w.factionsToUpdate, f.ID)
	w.logEvent("clan", "the %s clan disbanded", f.Name)
}

// ClanCoreMigrationEvent periodically looks for a better seat for a clan
// among the neighbors of its core.
type ClanCoreMigrationEvent struct {
	BaseEvent
	Faction *Faction
}

func newClanCoreMigrationEvent(w *World, f *Faction, date Date) *ClanCoreMigrationEvent {
	e := &ClanCoreMigrationEvent{Faction: f}
	e.init(w, ClanCoreMigrationEventType, f.ID, date)
	return e
}

func (e *ClanCoreMigrationEvent) CanTrigger() bool {
	f := e.Faction
	return f.StillPresent && f.coreMigrationEvent == e && f.newCoreGroup == nil
}

func (e *ClanCoreMigrationEvent) Trigger() {
	w := e.world
	f := e.Faction
	core := f.CoreGroup
	var best *CellGroup
	bestScore := 0.0
	for _, cell := range w.Map.Neighbors(core.Coord) {
		g := w.Groups[cell.GroupID]
		if g == nil || g.Prominences[f.Polity.ID] == nil {
			continue
		}
		if score := g.ExactPopulation * g.pendingProminence(f.Polity.ID); best == nil || score > bestScore {
			best, bestScore = g, score
		}
	}
	if best != nil && f.ShouldMigrateFactionCore(core, best) {
		f.PrepareNewCoreGroup(best)
	}
}

// Destroy re-arms the event while the faction lives.
func (e *ClanCoreMigrationEvent) Destroy() {
	f := e.Faction
	if f.coreMigrationEvent != e {
		return
	}
	if !f.StillPresent {
		f.coreMigrationEvent = nil
		return
	}
	w := e.world
	days := float64(GenerationSpan) / 2 * w.RNG.Range(f.ID, int64(w.Date), rng.FactionCoreMigrationSpan, 0.5, 1.5)
	f.coreMigrationEvent = nil
	if date, err := w.dateAfter(days); err == nil {
		e.Reset(date)
		if w.schedule(e) {
			f.coreMigrationEvent = e
		}
	}
}

func (e *ClanCoreMigrationEvent) Record() EventRecord {
	return e.record(e.Faction.ID, 0, 0)
}
