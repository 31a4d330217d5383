// Package clickmodel turns a won auction position into a click, and a click
// into a (possibly delayed, possibly untracked) conversion: CTR/CVR formulas,
// Bernoulli sampling, and the landing-page conversion multiplier.
package clickmodel

import "github.com/sherlockdev6/adsim-lab/internal/simrng"

// positionMultipliers gives the CTR multiplier for positions 1-8; any
// position beyond 8 uses the 0.1 long-tail fallback.
var positionMultipliers = map[int]float64{
	1: 1.0, 2: 0.85, 3: 0.70, 4: 0.55, 5: 0.40, 6: 0.30, 7: 0.22, 8: 0.15,
}

// PositionMultiplier returns the CTR multiplier for position (1-indexed,
// best first). Position 0 (not shown) gets 0; anything past 8 gets 0.1.
func PositionMultiplier(position int) float64 {
	if position <= 0 {
		return 0
	}
	if m, ok := positionMultipliers[position]; ok {
		return m
	}
	return 0.1
}

// CTRComponents breaks down the CTR formula's factors, for diagnostics/logging.
type CTRComponents struct {
	BaseCTR        float64
	PositionMult   float64
	AdStrengthMult float64
	RelevanceMult  float64
	FatigueMult    float64
	NoiseMult      float64
}

// ComputeCTR combines the segment's base CTR with position, ad-strength,
// relevance, fatigue, and (if rng is non-nil) multiplicative noise, clamped
// to [0, 1]:
// CTR = baseCTR * posMult * (0.6 + 0.4*adStrength) * (0.7 + 0.6*relevance) * (1 - 0.5*fatigue) * noise
func ComputeCTR(baseCTR float64, position int, adStrength, relevance, fatigue, noiseVariance float64, rng *simrng.RNG) (float64, CTRComponents) {
	posMult := PositionMultiplier(position)
	adMult := 0.6 + 0.4*adStrength
	relMult := 0.7 + 0.6*relevance
	fatigueMult := 1.0 - 0.5*fatigue

	noiseMult := 1.0
	if rng != nil {
		noiseMult = rng.Noise(1.0, noiseVariance)
	}

	ctr := baseCTR * posMult * adMult * relMult * fatigueMult * noiseMult
	ctr = clamp01(ctr)

	return ctr, CTRComponents{
		BaseCTR: baseCTR, PositionMult: posMult, AdStrengthMult: adMult,
		RelevanceMult: relMult, FatigueMult: fatigueMult, NoiseMult: noiseMult,
	}
}

// CVRComponents breaks down the CVR formula's factors, for diagnostics/logging.
type CVRComponents struct {
	BaseCVR      float64
	LandingMult  float64
	OfferMult    float64
	TrustMult    float64
	NoiseMult    float64
	QualityMult  float64
}

// ComputeCVR combines the segment's base CVR with the landing-page
// multiplier, offer/trust multipliers, a quality penalty, and (if rng is
// non-nil) multiplicative noise, clamped to [0, 1]:
// CVR = baseCVR * landingMult * offerMult * trustMult * noise * (1 - qualityPenalty)
func ComputeCVR(baseCVR, landingMult, offerMult, trustMult, qualityPenalty, noiseVariance float64, rng *simrng.RNG) (float64, CVRComponents) {
	qualityMult := 1.0 - qualityPenalty

	noiseMult := 1.0
	if rng != nil {
		noiseMult = rng.Noise(1.0, noiseVariance)
	}

	cvr := baseCVR * landingMult * offerMult * trustMult * noiseMult * qualityMult
	cvr = clamp01(cvr)

	return cvr, CVRComponents{
		BaseCVR: baseCVR, LandingMult: landingMult, OfferMult: offerMult,
		TrustMult: trustMult, NoiseMult: noiseMult, QualityMult: qualityMult,
	}
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

// ClickResult is the outcome of one impression's click roll.
type ClickResult struct {
	Clicked bool
	IsFraud bool
	CTRUsed float64
}

// SimulateClick rolls whether an impression is clicked, and if so, whether
// that click is fraudulent. With rng == nil it falls back to the
// deterministic threshold ctr >= 0.5, a path reachable only from tests.
func SimulateClick(ctr, fraudRate float64, rng *simrng.RNG) ClickResult {
	if rng == nil {
		return ClickResult{Clicked: ctr >= 0.5, CTRUsed: ctr}
	}
	clicked := rng.Bernoulli(ctr)
	isFraud := clicked && rng.Bernoulli(fraudRate)
	return ClickResult{Clicked: clicked, IsFraud: isFraud, CTRUsed: ctr}
}

// ConversionResult is the outcome of one click's conversion roll.
type ConversionResult struct {
	Converted bool
	IsTracked bool // false if lost to tracking
	DelayDays int
	CVRUsed   float64
}

// baseDelayWeights is the truncated-geometric attribution-delay
// distribution: most conversions attribute same day, a shrinking tail
// attributes up to 6 days later.
var baseDelayWeights = []float64{0.5, 0.25, 0.12, 0.07, 0.03, 0.02, 0.01}

// SimulateConversion rolls whether a click converts, and if so whether
// tracking captures it and how many days attribution is delayed. With
// rng == nil it falls back to the deterministic threshold cvr >= 0.5, a
// path reachable only from tests.
func SimulateConversion(cvr, trackingLossRate float64, maxDelayDays int, rng *simrng.RNG) ConversionResult {
	if rng == nil {
		return ConversionResult{Converted: cvr >= 0.5, IsTracked: true, CVRUsed: cvr}
	}

	converted := rng.Bernoulli(cvr)
	if !converted {
		return ConversionResult{Converted: false, IsTracked: true, CVRUsed: cvr}
	}

	isTracked := !rng.Bernoulli(trackingLossRate)

	if maxDelayDays > len(baseDelayWeights) {
		maxDelayDays = len(baseDelayWeights)
	}
	if maxDelayDays <= 0 {
		maxDelayDays = 1
	}
	weights := append([]float64(nil), baseDelayWeights[:maxDelayDays]...)
	delayDays := rng.WeightedChoice(weights)

	return ConversionResult{
		Converted: true, IsTracked: isTracked, DelayDays: delayDays, CVRUsed: cvr,
	}
}

// CalculateLandingMultiplier returns the landing-page conversion-rate
// multiplier: load-time band (<1500ms/<2500ms/<4000ms/else), a mobile-
// experience adjustment when isMobile, and a relevance adjustment. This is
// distinct from the quality-score landing-experience function, which uses
// different load-time bands and feeds a different score entirely.
func CalculateLandingMultiplier(relevanceScore, loadTimeMS, mobileScore float64, isMobile bool) float64 {
	var loadMult float64
	switch {
	case loadTimeMS < 1500:
		loadMult = 1.1
	case loadTimeMS < 2500:
		loadMult = 1.0
	case loadTimeMS < 4000:
		loadMult = 0.85
	default:
		loadMult = 0.7
	}

	mobileMult := 1.0
	if isMobile {
		mobileMult = 0.8 + 0.4*mobileScore
	}

	relevanceMult := 0.6 + 0.6*relevanceScore

	return loadMult * mobileMult * relevanceMult
}
