package models

// ActionKind enumerates the mutations an operator (or a scripted scenario)
// may apply to a SimState at the start of a day, before any demand is
// generated. The engine treats all entities as read-only outside of
// apply_actions; this is the only path by which state changes.
type ActionKind string

const (
	ActionSetBid            ActionKind = "set_bid"
	ActionSetBudget         ActionKind = "set_budget"
	ActionSetStatus         ActionKind = "set_status"
	ActionAddKeyword        ActionKind = "add_keyword"
	ActionAddNegative       ActionKind = "add_negative_keyword"
	ActionUpdateAd          ActionKind = "update_ad"
	ActionUpdateLandingPage ActionKind = "update_landing_page"
)

// Action is one mutation applied at day start. TargetID is interpreted
// according to Kind (a keyword ID for ActionSetBid, a campaign ID for
// ActionSetBudget, and so on); Payload carries the kind-specific fields.
type Action struct {
	Kind     ActionKind
	TargetID string
	Payload  ActionPayload
}

// ActionPayload bundles the fields any action kind might need. Only the
// fields relevant to Action.Kind are read; the rest are zero-valued and ignored.
type ActionPayload struct {
	Bid             float64
	Budget          float64
	Status          EntityStatus
	Keyword         Keyword
	Negative        NegativeKeyword
	Headlines       []string
	Descriptions    []string
	Strength        float64
	LandingPage     LandingPage
}
