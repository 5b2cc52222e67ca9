package engine

import (
	"log/slog"
	"math"

	"github.com/talgya/worldhistory/internal/agents"
	"github.com/talgya/worldhistory/internal/mathx"
	"github.com/talgya/worldhistory/internal/rng"
	"github.com/talgya/worldhistory/internal/social"
)

// PolityType identifies the kind of polity. Only tribes exist for now.
type PolityType int

const TribeType PolityType = 0

func (t PolityType) String() string {
	if t == TribeType {
		return "tribe"
	}
	return "unknown"
}

// Polity model constants.
const (
	// ProminenceDistanceFalloff is the core distance at which a group's target
	// prominence halves.
	ProminenceDistanceFalloff = 10.0
	// ProminenceChangeSpan is the e-folding time of prominence change.
	ProminenceChangeSpan = GenerationSpan

	MinTribePopulation      = 500.0
	TribeFormationKnowledge = 0.5
)

// Polity is a political entity spread over the groups where it has prominence.
type Polity struct {
	world *World

	ID            int64
	Type          PolityType
	Name          string
	FormationDate Date
	CoreGroup     *CellGroup

	// Prominences by group id.
	Prominences map[int64]*PolityProminence
	// Territory holds the groups where this polity is the most prominent.
	Territory map[int64]*CellGroup

	Factions        map[int64]*Faction
	DominantFaction *Faction
	Contacts        map[int64]*PolityContact

	Culture                 social.Culture
	TotalAdministrativeCost float64
	TotalPopulation         float64

	Guided       bool
	StillPresent bool

	distancesDirty bool

	fosterEvent *FosterTribeRelationDecisionEvent
	mergeEvent  *MergeTribesDecisionEvent
}

// PolityContact is the overlap between two polities.
type PolityContact struct {
	PolityID int64   `json:"polity_id"`
	Strength float64 `json:"strength"`
}

func newPolity(w *World, id int64, core *CellGroup) *Polity {
	return &Polity{
		world:         w,
		ID:            id,
		Type:          TribeType,
		Name:          agents.GenerateName(w.RNG, id, int64(w.Date), rng.PolityNameFirst),
		FormationDate: w.Date,
		CoreGroup:     core,
		Prominences:   make(map[int64]*PolityProminence),
		Territory:     make(map[int64]*CellGroup),
		Factions:      make(map[int64]*Faction),
		Contacts:      make(map[int64]*PolityContact),
		Culture:       core.Culture,
		StillPresent:  true,
	}
}

// createTribe founds a tribe seated in core with a founding clan. The caller
// sets the core's prominence.
func (w *World) createTribe(core *CellGroup, founder *Faction) *Polity {
	id := w.allocateID(core.Locator, func(id int64) bool {
		_, ok := w.Polities[id]
		return ok
	})
	p := newPolity(w, id, core)
	w.Polities[id] = p

	if founder == nil {
		founder = w.createClan(p, core, core.Culture.Preferences)
	}
	founder.Influence = 1
	p.addFaction(founder)
	p.setDominantFaction(founder)
	w.AddPolityToUpdate(p)
	return p
}

// formTribe turns a band into a tribe.
func (w *World) formTribe(g *CellGroup) *Polity {
	p := w.createTribe(g, nil)
	g.SetPolityProminence(p, 1)
	w.logEvent("tribe", "the %s tribe formed at %v", p.Name, g.Coord)
	return p
}

func (p *Polity) addProminence(rec *PolityProminence) {
	p.Prominences[rec.Group.ID] = rec
	p.distancesDirty = true
}

func (p *Polity) removeProminence(g *CellGroup) {
	delete(p.Prominences, g.ID)
	delete(p.Territory, g.ID)
	p.distancesDirty = true
	if len(p.Prominences) == 0 {
		p.world.markPolityForRemoval(p)
	}
}

func (p *Polity) addFaction(f *Faction) {
	f.Polity = p
	p.Factions[f.ID] = f
	p.distancesDirty = true
}

func (p *Polity) removeFaction(f *Faction) {
	delete(p.Factions, f.ID)
	p.distancesDirty = true
	if len(p.Factions) == 0 {
		p.world.markPolityForRemoval(p)
		return
	}
	p.normalizeInfluence()
	p.updateDominantFaction()
}

// normalizeInfluence rescales faction influence to sum to 1.
func (p *Polity) normalizeInfluence() {
	ids := sortedIDs(p.Factions)
	sum := 0.0
	for _, id := range ids {
		sum += p.Factions[id].Influence
	}
	if sum <= 0 {
		for _, id := range ids {
			p.Factions[id].Influence = mathx.Round(1 / float64(len(ids)))
		}
		return
	}
	for _, id := range ids {
		f := p.Factions[id]
		f.Influence = mathx.Round(f.Influence / sum)
	}
}

// updateDominantFaction picks the most influential faction, lower id on ties.
func (p *Polity) updateDominantFaction() {
	var best *Faction
	for _, id := range sortedIDs(p.Factions) {
		f := p.Factions[id]
		if best == nil || f.Influence > best.Influence {
			best = f
		}
	}
	if best != nil && best != p.DominantFaction {
		p.setDominantFaction(best)
	}
}

func (p *Polity) setDominantFaction(f *Faction) {
	p.DominantFaction = f
	p.CoreGroup = f.CoreGroup
	p.distancesDirty = true
}

// Update refreshes the polity after its groups changed. Runs in phase C.
func (p *Polity) Update() {
	if !p.StillPresent {
		return
	}
	if len(p.Factions) == 0 {
		p.world.markPolityForRemoval(p)
		return
	}
	p.normalizeInfluence()
	p.updateDominantFaction()
	p.updateGroupProminences()
	p.updateCulture()
	p.updateContacts()
	p.scheduleEvents()
}

// updateGroupProminences moves the prominence of every group updated this
// step toward a target set by cultural similarity and distance to the
// nearest faction core. Reads Value, writes NewValue.
func (p *Polity) updateGroupProminences() {
	w := p.world
	date := int64(w.Date)
	for _, id := range sortedIDs(p.Prominences) {
		if _, updated := w.updatedGroups[id]; !updated {
			continue
		}
		rec := p.Prominences[id]
		g := rec.Group
		span := w.Date - rec.LastChangeDate
		if span <= 0 {
			continue
		}
		rec.LastChangeDate = w.Date

		dist := math.Min(rec.FactionCoreDistance, MaxAdministrativeDistance)
		target := g.Culture.Similarity(p.Culture) / (1 + dist/ProminenceDistanceFalloff)
		rate := (1 - math.Exp(-float64(span)/float64(ProminenceChangeSpan))) *
			w.RNG.Range(g.Locator*1_000_003+p.ID, date, rng.GroupProminenceChange, 0.5, 1.5)
		g.adjustProminence(p, rec.Value+(target-rec.Value)*mathx.Clamp01(rate))
	}
}

// updateCulture aggregates group cultures weighted by population×prominence.
func (p *Polity) updateCulture() {
	var acc social.Accumulator
	total := 0.0
	for _, id := range sortedIDs(p.Prominences) {
		rec := p.Prominences[id]
		weight := rec.Group.ExactPopulation * rec.Value
		acc.Add(rec.Group.Culture, weight)
		total += weight
	}
	p.Culture = acc.Result(p.Culture)
	p.TotalPopulation = mathx.Round(total)
}

// updateContacts sums min(value, other value) over groups shared with every
// other polity.
func (p *Polity) updateContacts() {
	strength := make(map[int64]float64)
	for _, id := range sortedIDs(p.Prominences) {
		rec := p.Prominences[id]
		g := rec.Group
		for _, qid := range sortedIDs(g.Prominences) {
			if qid == p.ID {
				continue
			}
			strength[qid] += math.Min(rec.Value, g.Prominences[qid].Value)
		}
	}
	clear(p.Contacts)
	for _, qid := range sortedIDs(strength) {
		if q := p.world.Polities[qid]; q == nil || !q.StillPresent {
			continue
		}
		p.Contacts[qid] = &PolityContact{PolityID: qid, Strength: mathx.Round(strength[qid])}
	}
}

func (p *Polity) scheduleEvents() {
	w := p.world
	if len(p.Contacts) == 0 {
		return
	}
	if p.fosterEvent == nil {
		days := float64(GenerationSpan) * w.RNG.Range(p.ID, int64(w.Date), rng.PolityFosterSpan, 0.5, 1.5)
		if date, err := w.dateAfter(days); err == nil {
			e := newFosterTribeRelationDecisionEvent(w, p, date)
			if w.schedule(e) {
				p.fosterEvent = e
			}
		} else {
			slog.Warn("foster relation event not scheduled", "polity", p.ID, "err", err)
		}
	}
	if p.mergeEvent == nil {
		days := 2 * float64(GenerationSpan) * w.RNG.Range(p.ID, int64(w.Date), rng.PolityMergeSpan, 0.5, 1.5)
		if date, err := w.dateAfter(days); err == nil {
			e := newMergeTribesDecisionEvent(w, p, date)
			if w.schedule(e) {
				p.mergeEvent = e
			}
		} else {
			slog.Warn("merge tribes event not scheduled", "polity", p.ID, "err", err)
		}
	}
}

// bestCoreCandidate returns the group with the highest population×prominence,
// skipping exclude.
func (p *Polity) bestCoreCandidate(exclude *CellGroup) *CellGroup {
	var best *CellGroup
	bestScore := 0.0
	for _, id := range sortedIDs(p.Prominences) {
		rec := p.Prominences[id]
		g := rec.Group
		if g == exclude || !g.StillPresent || g.ExactPopulation < MinGroupPopulation {
			continue
		}
		if score := g.ExactPopulation * rec.Value; best == nil || score > bestScore {
			best, bestScore = g, score
		}
	}
	return best
}

// removePolity drops a polity with whatever prominences and factions remain.
func (w *World) removePolity(p *Polity) {
	if !p.StillPresent {
		return
	}
	for _, id := range sortedIDs(p.Factions) {
		w.destroyFaction(p.Factions[id], false)
	}
	for _, id := range sortedIDs(p.Prominences) {
		rec := p.Prominences[id]
		rec.Group.removeProminence(rec)
		w.AddGroupToPostUpdate(rec.Group)
	}
	for _, g := range w.Groups {
		delete(g.prominencesToAdd, p.ID)
	}
	if p.fosterEvent != nil {
		w.Events.Remove(p.fosterEvent)
		p.fosterEvent = nil
	}
	if p.mergeEvent != nil {
		w.Events.Remove(p.mergeEvent)
		p.mergeEvent = nil
	}
	p.StillPresent = false
	delete(w.Polities, p.ID)
	delete(w.politiesToUpdate, p.ID)
	w.logEvent("tribe", "the %s tribe dissolved", p.Name)
}

// TribeFormationEvent turns an organized band into a tribe.
type TribeFormationEvent struct {
	BaseEvent
	Group *CellGroup
}

func newTribeFormationEvent(w *World, g *CellGroup, date Date) *TribeFormationEvent {
	e := &TribeFormationEvent{Group: g}
	e.init(w, TribeFormationEventType, g.Locator, date)
	return e
}

// canFormTribe reports whether the group is an unaffiliated, organized band.
func (g *CellGroup) canFormTribe() bool {
	return len(g.Prominences) == 0 && len(g.prominencesToAdd) == 0 &&
		g.ExactPopulation >= MinTribePopulation &&
		g.Culture.Knowledge.SocialOrganization >= TribeFormationKnowledge
}

func (g *CellGroup) considerTribeFormation() {
	if g.tribeFormationEvent != nil || !g.canFormTribe() {
		return
	}
	w := g.world
	days := float64(GenerationSpan) / 4 * w.RNG.Range(g.Locator, int64(w.Date), rng.GroupTribeFormationSpan, 0.5, 1.5)
	date, err := w.dateAfter(days)
	if err != nil {
		slog.Warn("tribe formation not scheduled", "group", g.ID, "err", err)
		return
	}
	e := newTribeFormationEvent(w, g, date)
	if w.schedule(e) {
		g.tribeFormationEvent = e
	}
}

func (e *TribeFormationEvent) CanTrigger() bool {
	g := e.Group
	if !g.StillPresent || g.tribeFormationEvent != e || !g.canFormTribe() {
		return false
	}
	return e.world.RNG.Chance(g.Locator, int64(e.world.Date), rng.GroupTribeFormationRoll,
		g.Culture.Knowledge.SocialOrganization)
}

func (e *TribeFormationEvent) Trigger() {
	e.world.formTribe(e.Group)
}

func (e *TribeFormationEvent) Destroy() {
	if e.Group.tribeFormationEvent == e {
		e.Group.tribeFormationEvent = nil
	}
}

func (e *TribeFormationEvent) Record() EventRecord {
	return e.record(e.Group.ID, 0, 0)
}
