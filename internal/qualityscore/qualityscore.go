// Package qualityscore implements the EMA-based update rules for a
// keyword's quality score state: how a day's impressions/clicks/conversions
// move ECTR, and the landing-page-experience input to that score.
//
// calculate_landing_experience here feeds the quality score. It is a
// distinct function from clickmodel.CalculateLandingMultiplier, which feeds
// CVR and uses different load-time bands; the two must never be collapsed
// into one.
package qualityscore

import "github.com/sherlockdev6/adsim-lab/internal/models"

const baseEMAAlpha = 0.1

func emaAlpha(q models.QualityScoreState) float64 {
	if q.InLearningPhase() {
		return baseEMAAlpha * 2
	}
	return baseEMAAlpha
}

// UpdateCTREMA folds actualCTR into the keyword's CTR EMA, at twice the
// base rate while the keyword is in its learning phase.
func UpdateCTREMA(q *models.QualityScoreState, actualCTR float64) {
	alpha := emaAlpha(*q)
	q.CTREMA = alpha*actualCTR + (1-alpha)*q.CTREMA
}

// UpdateCVREMA folds actualCVR into the keyword's CVR EMA, at twice the
// base rate while the keyword is in its learning phase.
func UpdateCVREMA(q *models.QualityScoreState, actualCVR float64) {
	alpha := emaAlpha(*q)
	q.CVREMA = alpha*actualCVR + (1-alpha)*q.CVREMA
}

// UpdateECTR blends ECTR toward the current CTR EMA. The blend is faster
// (less dampened) during the learning phase so a new keyword's score moves
// quickly, then slows once it has enough history.
func UpdateECTR(q *models.QualityScoreState) {
	blend := 0.15
	if q.InLearningPhase() {
		blend = 0.3
	}
	ectr := (1-blend)*q.ECTR + blend*q.CTREMA
	q.ECTR = clamp01(ectr)
}

// AddImpressions records impressions seen, advancing the keyword toward
// (and eventually out of) its learning phase.
func AddImpressions(q *models.QualityScoreState, count int64) {
	q.ImpressionsSeen += count
}

// UpdateFromDay folds one day's observed impressions/clicks/conversions
// into a keyword's quality score state: impression count, CTR EMA, ECTR,
// and (only if there were clicks) CVR EMA. A day with zero impressions
// leaves the state untouched.
func UpdateFromDay(q *models.QualityScoreState, impressions, clicks, conversions int64) {
	if impressions <= 0 {
		return
	}
	AddImpressions(q, impressions)

	actualCTR := float64(clicks) / float64(impressions)
	UpdateCTREMA(q, actualCTR)
	UpdateECTR(q)

	if clicks > 0 {
		actualCVR := float64(conversions) / float64(clicks)
		UpdateCVREMA(q, actualCVR)
	}
}

// ApplyRelevanceUpdate nudges ad_relevance by delta (positive or negative),
// clamped to [0,1]. Used when an ad's copy changes or keyword-ad alignment improves.
func ApplyRelevanceUpdate(q *models.QualityScoreState, delta float64) {
	q.AdRelevance = clamp01(q.AdRelevance + delta)
}

// ApplyLandingUpdate nudges landing_exp by delta (positive or negative),
// clamped to [0,1]. Used when a keyword's landing page changes.
func ApplyLandingUpdate(q *models.QualityScoreState, delta float64) {
	q.LandingExp = clamp01(q.LandingExp + delta)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NewInitialState returns the starting quality score state for a newly
// created keyword: neutral ECTR, the given ad-relevance and landing-page
// experience scores.
func NewInitialState(adRelevance, landingScore float64) models.QualityScoreState {
	state := models.NewQualityScoreState()
	state.AdRelevance = adRelevance
	state.LandingExp = landingScore
	return state
}

// CalculateLandingExperience scores a landing page for the quality-score
// pipeline: a load-time band (<1000ms/<2000ms/<3000ms/<5000ms/else), a
// mobile-friendliness adjustment when isMobile, and a content-relevance
// term, weighted 0.5/0.3/0.2 and clamped to [0,1].
func CalculateLandingExperience(relevanceScore, loadTimeMS, mobileScore float64, isMobile bool) float64 {
	var loadScore float64
	switch {
	case loadTimeMS < 1000:
		loadScore = 1.0
	case loadTimeMS < 2000:
		loadScore = 0.9
	case loadTimeMS < 3000:
		loadScore = 0.7
	case loadTimeMS < 5000:
		loadScore = 0.5
	default:
		loadScore = 0.3
	}

	deviceScore := 1.0
	if isMobile {
		deviceScore = mobileScore
	}

	experience := relevanceScore*0.5 + loadScore*0.3 + deviceScore*0.2
	return clamp01(experience)
}
