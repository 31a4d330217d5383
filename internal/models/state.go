package models

// ScenarioRef is the minimal identity a SimState carries for its scenario;
// the scenario document itself (demand curves, CTR/CVR tables, seasonality)
// lives in package scenario and is passed alongside the state, not embedded
// in it, since it is read-only for the lifetime of a run.
type ScenarioRef struct {
	Slug string
}

// SimState is the complete working state of a simulation: every advertiser
// (the user and all competitors), the current day counter, and the
// per-(advertiser,segment) fatigue map. It is the value apply_actions reads
// and mutates at day start and simulate_day returns a new copy of.
type SimState struct {
	Scenario    ScenarioRef
	CurrentDay  int
	Advertisers []Advertiser // registration order; index 0 by convention is the user advertiser if IsUser
	Fatigue     map[fatigueKey]FatigueState
}

type fatigueKey struct {
	AdvertiserID string
	SegmentKey   string
}

// NewSimState returns an empty state for the given scenario slug.
func NewSimState(scenarioSlug string) *SimState {
	return &SimState{
		Scenario: ScenarioRef{Slug: scenarioSlug},
		Fatigue:  make(map[fatigueKey]FatigueState),
	}
}

// UserAdvertiser returns the first advertiser flagged IsUser, or nil if none exists.
// A state with no user advertiser is valid: simulate_day produces zero-valued
// metrics for that day rather than erroring (see the day engine's failure semantics).
func (s *SimState) UserAdvertiser() *Advertiser {
	for i := range s.Advertisers {
		if s.Advertisers[i].IsUser {
			return &s.Advertisers[i]
		}
	}
	return nil
}

// GetFatigue looks up fatigue state for an (advertiser, segment) pair, returning
// a fresh NewFatigueState() with default scale and decay (not stored) if none
// exists yet.
func (s *SimState) GetFatigue(advertiserID string, segment Segment) FatigueState {
	key := fatigueKey{AdvertiserID: advertiserID, SegmentKey: segment.Key()}
	if f, ok := s.Fatigue[key]; ok {
		return f
	}
	return NewFatigueState()
}

// SetFatigue stores fatigue state for an (advertiser, segment) pair.
func (s *SimState) SetFatigue(advertiserID string, segment Segment, f FatigueState) {
	key := fatigueKey{AdvertiserID: advertiserID, SegmentKey: segment.Key()}
	s.Fatigue[key] = f
}

// Clone produces a working copy for one day's execution. Entity pools
// (advertisers, campaigns, ad groups, ads, landing pages) are deep-copied
// down to the mutable slots a day can change (DailySpend, QS EMAs); this is
// the "shallow over read-only pools, deep over mutable slots" arena strategy
// called for in the design notes, implemented here as a straightforward deep
// copy since this repository favors clarity over a hand-rolled arena
// allocator at the scale these portfolios reach in practice.
func (s *SimState) Clone() *SimState {
	clone := &SimState{
		Scenario:   s.Scenario,
		CurrentDay: s.CurrentDay,
		Fatigue:    make(map[fatigueKey]FatigueState, len(s.Fatigue)),
	}
	for k, v := range s.Fatigue {
		clone.Fatigue[k] = v
	}
	clone.Advertisers = make([]Advertiser, len(s.Advertisers))
	for i, adv := range s.Advertisers {
		clone.Advertisers[i] = cloneAdvertiser(adv)
	}
	return clone
}

func cloneAdvertiser(a Advertiser) Advertiser {
	out := a
	out.Campaigns = make([]Campaign, len(a.Campaigns))
	for i, c := range a.Campaigns {
		out.Campaigns[i] = cloneCampaign(c)
	}
	out.LandingPages = append([]LandingPage(nil), a.LandingPages...)
	return out
}

func cloneCampaign(c Campaign) Campaign {
	out := c
	out.AdGroups = make([]AdGroup, len(c.AdGroups))
	for i, g := range c.AdGroups {
		out.AdGroups[i] = cloneAdGroup(g)
	}
	return out
}

func cloneAdGroup(g AdGroup) AdGroup {
	out := g
	out.Keywords = append([]Keyword(nil), g.Keywords...)
	out.Ads = append([]Ad(nil), g.Ads...)
	out.Negatives = append([]NegativeKeyword(nil), g.Negatives...)
	return out
}
