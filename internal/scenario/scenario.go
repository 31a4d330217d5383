// Package scenario loads the YAML documents that parameterize a run: demand
// curves, CTR/CVR tables, seasonality, event shocks, and competitor mix.
// Loading follows the same gopkg.in/yaml.v3 struct-tag idiom as
// sawpanic-cryptorun's regime-threshold router: unmarshal into a plain
// struct, then validate.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sherlockdev6/adsim-lab/internal/simerrors"
)

// DemandConfig controls how much search volume each segment generates.
type DemandConfig struct {
	DailyBaseline int                `yaml:"daily_baseline"`
	IntentSplit   map[string]float64 `yaml:"intent_split"`
	DeviceSplit   map[string]float64 `yaml:"device_split"`
	GeoSplit      map[string]float64 `yaml:"geo_split"`
	TimeSplit     map[string]float64 `yaml:"time_split"`
}

// CTRCVRConfig carries the per-intent-tier base rates the click model scales.
type CTRCVRConfig struct {
	BaseCTRByIntent map[string]float64 `yaml:"base_ctr_by_intent"`
	BaseCVRByIntent map[string]float64 `yaml:"base_cvr_by_intent"`
}

// Seasonality carries the monthly and day-of-week multiplier tables.
type Seasonality struct {
	MonthlyFactors    [12]float64 `yaml:"monthly_factors"`
	DayOfWeekFactors  [7]float64  `yaml:"day_of_week_factors"`
}

// EventShock applies a demand multiplier over an inclusive day range.
type EventShock struct {
	DayRange   [2]int  `yaml:"day_range"`
	DemandMult float64 `yaml:"demand_mult"`
}

// FatigueConfig overrides the default fatigue scale/decay for a scenario.
type FatigueConfig struct {
	Scale float64 `yaml:"scale"`
	Decay float64 `yaml:"decay"`
}

// QualityScoreConfig overrides quality-score defaults for a scenario.
type QualityScoreConfig struct {
	LearningPhaseThreshold int64 `yaml:"learning_phase_threshold"`
}

// Config is one scenario document: everything the day engine consults
// beyond the advertiser portfolio itself.
type Config struct {
	Slug                string                 `yaml:"slug"`
	DemandConfig        DemandConfig           `yaml:"demand_config"`
	CTRCVRConfig        CTRCVRConfig           `yaml:"ctr_cvr_config"`
	CPCAnchors          map[string]float64     `yaml:"cpc_anchors"`
	TrackingLossRate    float64                `yaml:"tracking_loss_rate"`
	FraudRate           float64                `yaml:"fraud_rate"`
	Seasonality         Seasonality            `yaml:"seasonality"`
	EventShocks         []EventShock           `yaml:"event_shocks"`
	CompetitorMix       map[string]float64     `yaml:"competitor_mix"`
	QualityScoreConfig  QualityScoreConfig     `yaml:"quality_score_config"`
	FatigueConfig       FatigueConfig          `yaml:"fatigue_config"`
	// RevenuePerConversion resolves the distilled spec's revenue Open
	// Question: a scenario-configured value per converted click, optionally
	// broken down by intent tier via RevenuePerConversionByIntent. Scenarios
	// that set neither fall back to DefaultRevenuePerConversion.
	RevenuePerConversion          float64            `yaml:"revenue_per_conversion"`
	RevenuePerConversionByIntent  map[string]float64 `yaml:"revenue_per_conversion_by_intent"`
}

// DefaultRevenuePerConversion is used when a scenario sets neither
// RevenuePerConversion nor a per-intent override, preserving the reference
// implementation's single hardcoded revenue value as a documented default.
const DefaultRevenuePerConversion = 100.0

// Load reads and parses a scenario document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerrors.ConfigError(fmt.Sprintf("read %s", path), err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, simerrors.ConfigError(fmt.Sprintf("parse %s", path), err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate returns a ConfigError when daily_baseline is negative or when
// fraud_rate, tracking_loss_rate or an intent_split value lies outside [0,1].
// It does not check for missing keys; absent fields keep their zero values.
func Validate(cfg *Config) error {
	if cfg.DemandConfig.DailyBaseline < 0 {
		return simerrors.ConfigError("demand_config.daily_baseline", fmt.Errorf("must be >= 0, got %d", cfg.DemandConfig.DailyBaseline))
	}
	if cfg.FraudRate < 0 || cfg.FraudRate > 1 {
		return simerrors.ConfigError("fraud_rate", fmt.Errorf("must be in [0,1], got %v", cfg.FraudRate))
	}
	if cfg.TrackingLossRate < 0 || cfg.TrackingLossRate > 1 {
		return simerrors.ConfigError("tracking_loss_rate", fmt.Errorf("must be in [0,1], got %v", cfg.TrackingLossRate))
	}
	for k, v := range cfg.DemandConfig.IntentSplit {
		if v < 0 || v > 1 {
			return simerrors.ConfigError("demand_config.intent_split."+k, fmt.Errorf("must be in [0,1], got %v", v))
		}
	}
	return nil
}

// RevenueForConversion returns the configured revenue for one converted
// click in the given intent tier, falling back to the scenario-wide value
// and finally to DefaultRevenuePerConversion.
func (c *Config) RevenueForConversion(intentTier string) float64 {
	if c.RevenuePerConversionByIntent != nil {
		if v, ok := c.RevenuePerConversionByIntent[intentTier]; ok {
			return v
		}
	}
	if c.RevenuePerConversion > 0 {
		return c.RevenuePerConversion
	}
	return DefaultRevenuePerConversion
}

// SeasonalityMultiplier returns the monthly x day-of-week multiplier for
// day N (1-indexed, day 1 = Jan 1), defaulting missing entries to 1.0.
func (c *Config) SeasonalityMultiplier(day int) float64 {
	month := ((day - 1) / 30) % 12
	dow := (day - 1) % 7

	monthlyMult := 1.0
	if month >= 0 && month < len(c.Seasonality.MonthlyFactors) && c.Seasonality.MonthlyFactors[month] != 0 {
		monthlyMult = c.Seasonality.MonthlyFactors[month]
	}
	dowMult := 1.0
	if dow >= 0 && dow < len(c.Seasonality.DayOfWeekFactors) && c.Seasonality.DayOfWeekFactors[dow] != 0 {
		dowMult = c.Seasonality.DayOfWeekFactors[dow]
	}
	return monthlyMult * dowMult
}

// EventMultiplier returns the demand multiplier from the first event shock
// whose inclusive day range contains day, or 1.0 if none applies.
func (c *Config) EventMultiplier(day int) float64 {
	for _, shock := range c.EventShocks {
		if shock.DayRange[0] <= day && day <= shock.DayRange[1] {
			return shock.DemandMult
		}
	}
	return 1.0
}

// shareOrDefault looks up key in splits, falling back to def if missing.
func shareOrDefault(splits map[string]float64, key string, def float64) float64 {
	if v, ok := splits[key]; ok {
		return v
	}
	return def
}

// SegmentShare computes a segment's combined demand share across the four
// split tables, each defaulting independently when the scenario omits that
// key: unknown scenario keys default to a neutral/uniform split per §4.6's
// failure semantics.
func (c *Config) SegmentShare(intent, device, geo, timeBucket string) float64 {
	intentShare := shareOrDefault(c.DemandConfig.IntentSplit, intent, 0.33)
	deviceShare := shareOrDefault(c.DemandConfig.DeviceSplit, device, 0.5)
	geoShare := shareOrDefault(c.DemandConfig.GeoSplit, geo, 0.5)
	timeShare := shareOrDefault(c.DemandConfig.TimeSplit, timeBucket, 0.25)
	return intentShare * deviceShare * geoShare * timeShare
}

// BaseCTR returns the configured base CTR for an intent tier, defaulting to 0.03.
func (c *Config) BaseCTR(intentTier string) float64 {
	return shareOrDefault(c.CTRCVRConfig.BaseCTRByIntent, intentTier, 0.03)
}

// BaseCVR returns the configured base CVR for an intent tier, defaulting to 0.05.
func (c *Config) BaseCVR(intentTier string) float64 {
	return shareOrDefault(c.CTRCVRConfig.BaseCVRByIntent, intentTier, 0.05)
}
