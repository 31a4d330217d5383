package models

// QualityScoreDisplayThresholds maps an internal [0,1] quality score onto
// the {1..10} display scale advertisers see. A score below the first
// threshold displays as 1; at or above the last threshold it displays as 10.
var QualityScoreDisplayThresholds = [9]float64{0.20, 0.30, 0.40, 0.50, 0.55, 0.60, 0.70, 0.80, 0.90}

// QualityScoreState is the per-keyword composite quality score: a weighted
// blend of expected CTR, ad relevance and landing-page experience, each
// tracked as an exponentially-weighted moving average. See package
// qualityscore for the update formulas; this struct only carries the state.
type QualityScoreState struct {
	ECTR            float64 // expected CTR component, [0,1]
	AdRelevance     float64 // [0,1]
	LandingExp      float64 // [0,1]
	CTREMA          float64
	CVREMA          float64
	ImpressionsSeen int64
	LearningPhaseAt int64 // impression count at which learning-phase EMAs switch to stable rates; default 1000
}

// Score returns the weighted composite quality score, clamped to [0,1].
func (q QualityScoreState) Score() float64 {
	s := 0.40*q.ECTR + 0.35*q.AdRelevance + 0.25*q.LandingExp
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// InLearningPhase reports whether the keyword is still within its learning window.
func (q QualityScoreState) InLearningPhase() bool {
	threshold := q.LearningPhaseAt
	if threshold <= 0 {
		threshold = 1000
	}
	return q.ImpressionsSeen < threshold
}

// DisplayScore maps Score() onto the integer {1..10} scale advertisers see.
func (q QualityScoreState) DisplayScore() int {
	score := q.Score()
	display := 1
	for i, t := range QualityScoreDisplayThresholds {
		if score >= t {
			display = i + 2
		}
	}
	if display > 10 {
		display = 10
	}
	return display
}

// NewQualityScoreState returns the default starting state for a freshly created keyword.
func NewQualityScoreState() QualityScoreState {
	return QualityScoreState{
		ECTR:            0.5,
		AdRelevance:     0.5,
		LandingExp:      0.5,
		CTREMA:          0.0,
		CVREMA:          0.0,
		ImpressionsSeen: 0,
		LearningPhaseAt: 1000,
	}
}

// FatigueState tracks ad fatigue for one (advertiser, segment) pair.
// Impressions accumulate additively during the day and are capped at 1;
// the accumulated value decays multiplicatively at end of day.
type FatigueState struct {
	ImpressionsToday    int
	CumulativeFatigue   float64 // [0,1]
	Scale               float64 // default 1200
	Decay               float64 // default 0.92
}

// NewFatigueState returns fresh fatigue state using the default scale/decay.
func NewFatigueState() FatigueState {
	return FatigueState{Scale: 1200, Decay: 0.92}
}

// AddImpressions accumulates today's impressions into cumulative fatigue, capped at 1.
func (f *FatigueState) AddImpressions(count int) {
	if count <= 0 {
		return
	}
	scale := f.Scale
	if scale <= 0 {
		scale = 1200
	}
	f.ImpressionsToday += count
	f.CumulativeFatigue += float64(count) / scale
	if f.CumulativeFatigue > 1 {
		f.CumulativeFatigue = 1
	}
}

// EndDay applies the daily decay and resets the per-day impression counter.
func (f *FatigueState) EndDay() {
	decay := f.Decay
	if decay <= 0 {
		decay = 0.92
	}
	f.CumulativeFatigue *= decay
	f.ImpressionsToday = 0
}

// Level returns the current fatigue level in [0,1].
func (f FatigueState) Level() float64 {
	return f.CumulativeFatigue
}
