package simengine

import (
	"fmt"

	"github.com/sherlockdev6/adsim-lab/internal/models"
	"github.com/sherlockdev6/adsim-lab/internal/scenario"
	"github.com/sherlockdev6/adsim-lab/internal/simrng"
)

// SearchQuery is one synthesized unit of demand: a piece of query text drawn
// from the segment's intent-tier phrase pool, carrying the segment and the
// segment-derived scores the engine reads when scoring a match.
type SearchQuery struct {
	Text                 string
	Segment              models.Segment
	TrueIntentScore      float64
	ConversionPropensity float64
}

// phrasePool is keyed by intent tier; each phrase is drawn from the same
// vocabulary the matching synonym table recognizes, so queries are always
// realistic enough to exercise broad/phrase matching meaningfully.
var phrasePool = map[models.IntentTier][]string{
	models.IntentHigh: {
		"buy villa dubai", "rent apartment near me", "plumber service price",
		"best electrician abu dhabi", "ac repair service", "buy apartment dubai",
	},
	models.IntentMedium: {
		"villa dubai price", "apartment cleaning service", "best villa dubai",
		"rent villa abu dhabi", "cheap apartment dubai", "ac service price",
	},
	models.IntentLow: {
		"villa dubai", "apartment dubai", "plumber dubai", "electrician uae",
		"cleaning service", "ac repair",
	},
}

// geoSuffix nudges a phrase toward a segment's geo tier when the phrase
// doesn't already name a location.
var geoSuffix = map[models.GeoTier]string{
	models.GeoPrimary:   "dubai",
	models.GeoSecondary: "abu dhabi",
}

func synthesizeQueryText(segment models.Segment, rng *simrng.RNG) string {
	pool := phrasePool[segment.Intent]
	if len(pool) == 0 {
		pool = phrasePool[models.IntentLow]
	}
	weights := make([]float64, len(pool))
	for i := range weights {
		weights[i] = 1.0
	}
	phrase := pool[rng.WeightedChoice(weights)]

	for _, token := range []string{"dubai", "abu dhabi"} {
		if contains(phrase, token) {
			return phrase
		}
	}
	return fmt.Sprintf("%s %s", phrase, geoSuffix[segment.Geo])
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// intentTrueScore and intentConversionPropensity give each segment's
// synthesized queries a derived score, used only as diagnostic context
// carried alongside the query (the matching/auction/click pipeline itself
// reads base_ctr/base_cvr from the scenario config, not these fields).
func intentTrueScore(tier models.IntentTier) float64 {
	switch tier {
	case models.IntentHigh:
		return 0.7
	case models.IntentMedium:
		return 0.5
	default:
		return 0.3
	}
}

func intentConversionPropensity(tier models.IntentTier) float64 {
	switch tier {
	case models.IntentHigh:
		return 0.10
	case models.IntentMedium:
		return 0.05
	default:
		return 0.02
	}
}

// GenerateSegmentQueries synthesizes a segment's daily query volume:
// floor(daily_baseline * intent_share * device_share * geo_share *
// time_share * seasonality_mult * event_mult) queries, each drawn from the
// segment's intent-tier phrase pool via the day RNG's weighted choice.
func GenerateSegmentQueries(segment models.Segment, cfg *scenario.Config, seasonalityMult, eventMult float64, rng *simrng.RNG) []SearchQuery {
	share := cfg.SegmentShare(string(segment.Intent), string(segment.Device), string(segment.Geo), string(segment.TimeBucket))
	demand := int(float64(cfg.DemandConfig.DailyBaseline) * share * seasonalityMult * eventMult)
	if demand <= 0 {
		return nil
	}

	queries := make([]SearchQuery, demand)
	for i := 0; i < demand; i++ {
		queries[i] = SearchQuery{
			Text:                 synthesizeQueryText(segment, rng),
			Segment:              segment,
			TrueIntentScore:      intentTrueScore(segment.Intent),
			ConversionPropensity: intentConversionPropensity(segment.Intent),
		}
	}
	return queries
}
