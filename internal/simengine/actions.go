package simengine

import (
	"fmt"

	"github.com/sherlockdev6/adsim-lab/internal/models"
	"github.com/sherlockdev6/adsim-lab/internal/qualityscore"
)

// ApplyActions applies a day's actions, in order, to a cloned copy of state
// and returns that copy along with a warning string for every action that
// referenced an unknown target. Applying an action never mutates state in
// place; the caller always receives a fresh *models.SimState.
func ApplyActions(state *models.SimState, actions []models.Action) (*models.SimState, []string) {
	newState := state.Clone()
	var warnings []string
	for _, action := range actions {
		if warning := applyOne(newState, action); warning != "" {
			warnings = append(warnings, warning)
		}
	}
	return newState, warnings
}

func applyOne(state *models.SimState, action models.Action) string {
	switch action.Kind {
	case models.ActionSetBid:
		return applySetBid(state, action)
	case models.ActionSetBudget:
		return applySetBudget(state, action)
	case models.ActionSetStatus:
		return applySetStatus(state, action)
	case models.ActionAddKeyword:
		return applyAddKeyword(state, action)
	case models.ActionAddNegative:
		return applyAddNegative(state, action)
	case models.ActionUpdateAd:
		return applyUpdateAd(state, action)
	case models.ActionUpdateLandingPage:
		return applyUpdateLandingPage(state, action)
	default:
		return fmt.Sprintf("unknown action kind %q", action.Kind)
	}
}

// findKeyword locates a keyword by ID and returns pointers to it and its
// owning ad group, or (nil, nil) if not found.
func findKeyword(state *models.SimState, id string) (*models.Keyword, *models.AdGroup) {
	for ai := range state.Advertisers {
		for ci := range state.Advertisers[ai].Campaigns {
			for gi := range state.Advertisers[ai].Campaigns[ci].AdGroups {
				group := &state.Advertisers[ai].Campaigns[ci].AdGroups[gi]
				for ki := range group.Keywords {
					if group.Keywords[ki].ID == id {
						return &group.Keywords[ki], group
					}
				}
			}
		}
	}
	return nil, nil
}

func findAdGroup(state *models.SimState, id string) *models.AdGroup {
	for ai := range state.Advertisers {
		for ci := range state.Advertisers[ai].Campaigns {
			for gi := range state.Advertisers[ai].Campaigns[ci].AdGroups {
				if state.Advertisers[ai].Campaigns[ci].AdGroups[gi].ID == id {
					return &state.Advertisers[ai].Campaigns[ci].AdGroups[gi]
				}
			}
		}
	}
	return nil
}

func findCampaign(state *models.SimState, id string) *models.Campaign {
	for ai := range state.Advertisers {
		for ci := range state.Advertisers[ai].Campaigns {
			if state.Advertisers[ai].Campaigns[ci].ID == id {
				return &state.Advertisers[ai].Campaigns[ci]
			}
		}
	}
	return nil
}

// findAd locates an ad by ID and returns pointers to it and its owning ad group.
func findAd(state *models.SimState, id string) (*models.Ad, *models.AdGroup) {
	for ai := range state.Advertisers {
		for ci := range state.Advertisers[ai].Campaigns {
			for gi := range state.Advertisers[ai].Campaigns[ci].AdGroups {
				group := &state.Advertisers[ai].Campaigns[ci].AdGroups[gi]
				for di := range group.Ads {
					if group.Ads[di].ID == id {
						return &group.Ads[di], group
					}
				}
			}
		}
	}
	return nil, nil
}

// findLandingPage locates a landing page by ID within any advertiser.
func findLandingPage(state *models.SimState, id string) *models.LandingPage {
	for ai := range state.Advertisers {
		if lp := state.Advertisers[ai].LandingPageByID(id); lp != nil {
			return lp
		}
	}
	return nil
}

func applySetBid(state *models.SimState, action models.Action) string {
	if kw, _ := findKeyword(state, action.TargetID); kw != nil {
		bid := action.Payload.Bid
		kw.BidOverride = &bid
		return ""
	}
	if group := findAdGroup(state, action.TargetID); group != nil {
		group.DefaultBid = action.Payload.Bid
		return ""
	}
	return fmt.Sprintf("set_bid: unknown target %q", action.TargetID)
}

func applySetBudget(state *models.SimState, action models.Action) string {
	campaign := findCampaign(state, action.TargetID)
	if campaign == nil {
		return fmt.Sprintf("set_budget: unknown campaign %q", action.TargetID)
	}
	campaign.DailyBudget = action.Payload.Budget
	return ""
}

// terminal statuses never accept a further transition; once removed or
// ended, an entity stays that way for the rest of the run.
func isTerminalStatus(s models.EntityStatus) bool {
	return s == models.StatusRemoved || s == models.StatusEnded
}

func applySetStatus(state *models.SimState, action models.Action) string {
	newStatus := action.Payload.Status

	if campaign := findCampaign(state, action.TargetID); campaign != nil {
		if isTerminalStatus(campaign.Status) {
			return fmt.Sprintf("set_status: campaign %q is in a terminal status", action.TargetID)
		}
		campaign.Status = newStatus
		return ""
	}
	if group := findAdGroup(state, action.TargetID); group != nil {
		if isTerminalStatus(group.Status) {
			return fmt.Sprintf("set_status: ad group %q is in a terminal status", action.TargetID)
		}
		group.Status = newStatus
		return ""
	}
	if kw, _ := findKeyword(state, action.TargetID); kw != nil {
		if isTerminalStatus(kw.Status) {
			return fmt.Sprintf("set_status: keyword %q is in a terminal status", action.TargetID)
		}
		kw.Status = newStatus
		return ""
	}
	if ad, _ := findAd(state, action.TargetID); ad != nil {
		if isTerminalStatus(ad.Status) {
			return fmt.Sprintf("set_status: ad %q is in a terminal status", action.TargetID)
		}
		ad.Status = newStatus
		return ""
	}
	return fmt.Sprintf("set_status: unknown target %q", action.TargetID)
}

func applyAddKeyword(state *models.SimState, action models.Action) string {
	group := findAdGroup(state, action.TargetID)
	if group == nil {
		return fmt.Sprintf("add_keyword: unknown ad group %q", action.TargetID)
	}
	group.Keywords = append(group.Keywords, action.Payload.Keyword)
	return ""
}

func applyAddNegative(state *models.SimState, action models.Action) string {
	group := findAdGroup(state, action.TargetID)
	if group == nil {
		return fmt.Sprintf("add_negative_keyword: unknown ad group %q", action.TargetID)
	}
	group.Negatives = append(group.Negatives, action.Payload.Negative)
	return ""
}

// applyUpdateAd updates an ad's creative and recomputes ad_relevance, via
// calculate_landing_experience, for every keyword in the ad's ad group
// (the keywords that "share" this ad, since a Keyword carries no direct ad
// reference of its own). The ad's Strength stands in for the relevance
// input and its landing page (if any) supplies load time / mobile score;
// this mapping is a deliberate design decision, not a literal port, since
// the source never actually implements apply_actions.
func applyUpdateAd(state *models.SimState, action models.Action) string {
	ad, group := findAd(state, action.TargetID)
	if ad == nil {
		return fmt.Sprintf("update_ad: unknown ad %q", action.TargetID)
	}

	payload := action.Payload
	if payload.Headlines != nil {
		ad.Headlines = payload.Headlines
	}
	if payload.Descriptions != nil {
		ad.Descriptions = payload.Descriptions
	}
	ad.Strength = payload.Strength

	loadTimeMS, mobileScore := 2000.0, 0.5
	if lp := findLandingPage(state, ad.LandingPageID); lp != nil {
		loadTimeMS, mobileScore = lp.LoadTimeMS, lp.MobileScore
	}
	newRelevance := qualityscore.CalculateLandingExperience(ad.Strength, loadTimeMS, mobileScore, false)
	for ki := range group.Keywords {
		qualityscore.ApplyRelevanceUpdate(&group.Keywords[ki].QS, newRelevance-group.Keywords[ki].QS.AdRelevance)
	}
	return ""
}

// applyUpdateLandingPage updates a landing page's signals and recomputes
// landing_exp, via calculate_landing_experience, for every keyword whose ad
// group owns an ad referencing this landing page.
func applyUpdateLandingPage(state *models.SimState, action models.Action) string {
	lp := findLandingPage(state, action.TargetID)
	if lp == nil {
		return fmt.Sprintf("update_landing_page: unknown landing page %q", action.TargetID)
	}

	payload := action.Payload.LandingPage
	lp.Relevance = payload.Relevance
	lp.LoadTimeMS = payload.LoadTimeMS
	lp.MobileScore = payload.MobileScore

	newExperience := qualityscore.CalculateLandingExperience(lp.Relevance, lp.LoadTimeMS, lp.MobileScore, false)

	for ai := range state.Advertisers {
		for ci := range state.Advertisers[ai].Campaigns {
			for gi := range state.Advertisers[ai].Campaigns[ci].AdGroups {
				group := &state.Advertisers[ai].Campaigns[ci].AdGroups[gi]
				sharesLandingPage := false
				for _, ad := range group.Ads {
					if ad.LandingPageID == lp.ID {
						sharesLandingPage = true
						break
					}
				}
				if !sharesLandingPage {
					continue
				}
				for ki := range group.Keywords {
					qualityscore.ApplyLandingUpdate(&group.Keywords[ki].QS, newExperience-group.Keywords[ki].QS.LandingExp)
				}
			}
		}
	}
	return ""
}
