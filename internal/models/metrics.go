package models

// CausalLog is a normalized bag of driver_name -> weight, assembled by the
// day engine from threshold-triggered conditions (see simengine). It is
// deliberately a flat map keyed by a string from a closed vocabulary rather
// than a class hierarchy of driver types.
type CausalLog map[string]float64

// Normalize rescales the log so its weights sum to 1. A nil or empty log is left untouched.
func (c CausalLog) Normalize() {
	if len(c) == 0 {
		return
	}
	var total float64
	for _, w := range c {
		total += w
	}
	if total <= 0 {
		return
	}
	for k, w := range c {
		c[k] = w / total
	}
}

// KeywordMetrics aggregates one day's activity for a single keyword.
type KeywordMetrics struct {
	KeywordID     string
	AdGroupID     string
	Impressions   int64
	Clicks        int64
	Conversions   int64
	Cost          float64
	PositionSum   float64 // divide by Impressions for the day's average position
	QualityScoreSum float64
}

// AvgPosition returns the keyword's average served position for the day, or 0 with no impressions.
func (k KeywordMetrics) AvgPosition() float64 {
	if k.Impressions == 0 {
		return 0
	}
	return k.PositionSum / float64(k.Impressions)
}

// AvgQualityScore returns the keyword's average internal [0,1] quality score per impression for the day.
func (k KeywordMetrics) AvgQualityScore() float64 {
	if k.Impressions == 0 {
		return 0
	}
	return k.QualityScoreSum / float64(k.Impressions)
}

// SegmentMetrics aggregates one day's activity for a single demand segment.
type SegmentMetrics struct {
	Segment     Segment
	Impressions int64
	Clicks      int64
	Conversions int64
	Cost        float64
}

// DayMetrics is the complete output of simulating one day for the user advertiser.
type DayMetrics struct {
	Day int

	Impressions int64
	Clicks      int64
	Conversions int64
	Cost        float64
	Revenue     float64

	AvgPosition        float64
	AvgQualityScore    float64
	ImpressionShare    float64
	LostISBudget       float64
	LostISRank         float64

	FraudClicks            int64
	TrackingLostConversions int64

	KeywordMetrics []KeywordMetrics
	SegmentMetrics []SegmentMetrics

	CausalLog CausalLog
}

// EngineErrorMetrics returns the zero-valued DayMetrics used when a day
// aborts with a DomainError: no partial metrics are emitted, and the causal
// log carries only the engine_error driver at full weight.
func EngineErrorMetrics(day int) DayMetrics {
	return DayMetrics{
		Day:       day,
		CausalLog: CausalLog{"engine_error": 1.0},
	}
}
