package models

// LandingPage carries the signals that feed both the quality-score landing
// component (calculate_landing_experience, see package qualityscore) and the
// conversion-rate landing multiplier (calculate_landing_multiplier, see
// package clickmodel). The two consumers apply different thresholds to the
// same three fields; do not collapse them into one derived score.
type LandingPage struct {
	ID          string
	Relevance   float64 // [0,1]
	LoadTimeMS  float64
	MobileScore float64 // [0,1]
}

// Ad is a single creative under an AdGroup. Strength is a precomputed
// [0,1] score (headline/description quality, extensions present, etc.)
// fed into the CTR formula; this repository does not model ad-copy
// generation, only its summary effect.
type Ad struct {
	ID            string
	AdGroupID     string
	Headlines     []string
	Descriptions  []string
	Strength      float64 // [0,1]
	LandingPageID string  // references LandingPage.ID, may be empty
	Status        EntityStatus
}

// Keyword is the unit of matching and bidding. BidOverride, when non-nil,
// replaces the owning AdGroup's DefaultBid for this keyword only.
type Keyword struct {
	ID          string
	AdGroupID   string
	Text        string
	MatchType   MatchType
	BidOverride *float64
	IntentTier  *IntentTier // optional override of the segment-derived intent
	IsNegative  bool
	Status      EntityStatus
	QS          QualityScoreState
}

// NegativeKeyword blocks matches within the ad group (or account) that owns it.
type NegativeKeyword struct {
	Text      string
	MatchType MatchType
}

// AdGroup groups keywords and ads under a shared default bid and negative list.
type AdGroup struct {
	ID         string
	CampaignID string
	Name       string
	DefaultBid float64
	Status     EntityStatus
	Keywords   []Keyword
	Ads        []Ad
	Negatives  []NegativeKeyword
}

// Campaign is the budget-owning unit. DailySpend is reset to zero at the
// start of every simulated day (see simengine.ApplyActions) and accumulates
// as the day's auctions are won.
type Campaign struct {
	ID         string
	AdvertiserID string
	Name       string
	DailyBudget float64
	DailySpend  float64
	Status      EntityStatus
	AdGroups    []AdGroup
}

// Advertiser is either the simulated user's own business or a synthetic
// competitor. Competitors skip per-keyword quality score entirely and bid
// using BaseQualityScore and BidMultiplier instead.
type Advertiser struct {
	ID               string
	Name             string
	IsUser           bool
	DailyBudget      float64
	Campaigns        []Campaign
	LandingPages     []LandingPage
	Archetype        Archetype // competitors only
	BidMultiplier    float64   // competitors only, 1.0 for the user
	BaseQualityScore float64   // competitors only, substitutes per-keyword QS
}

// LandingPageByID returns a pointer into the advertiser's landing page slice, or nil.
func (a *Advertiser) LandingPageByID(id string) *LandingPage {
	if id == "" {
		return nil
	}
	for i := range a.LandingPages {
		if a.LandingPages[i].ID == id {
			return &a.LandingPages[i]
		}
	}
	return nil
}
