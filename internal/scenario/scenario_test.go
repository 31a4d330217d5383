package scenario

import "testing"

func TestValidateRejectsOutOfRangeFraudRate(t *testing.T) {
	cfg := &Config{FraudRate: 1.5}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected ConfigError for fraud_rate > 1")
	}
}

func TestValidateAcceptsZeroValueConfig(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected zero-value config to validate, got %v", err)
	}
}

func TestSeasonalityMultiplierDefaultsToOne(t *testing.T) {
	cfg := &Config{}
	if m := cfg.SeasonalityMultiplier(15); m != 1.0 {
		t.Fatalf("expected default multiplier 1.0, got %v", m)
	}
}

func TestSeasonalityMultiplierUsesConfiguredFactors(t *testing.T) {
	cfg := &Config{}
	cfg.Seasonality.MonthlyFactors[0] = 1.5
	cfg.Seasonality.DayOfWeekFactors[0] = 2.0
	if m := cfg.SeasonalityMultiplier(1); m != 3.0 {
		t.Fatalf("expected 1.5*2.0=3.0 for day 1, got %v", m)
	}
}

func TestEventMultiplierWithinRange(t *testing.T) {
	cfg := &Config{EventShocks: []EventShock{{DayRange: [2]int{5, 10}, DemandMult: 2.0}}}
	if m := cfg.EventMultiplier(7); m != 2.0 {
		t.Fatalf("expected event multiplier 2.0 within range, got %v", m)
	}
	if m := cfg.EventMultiplier(20); m != 1.0 {
		t.Fatalf("expected default 1.0 outside range, got %v", m)
	}
}

func TestSegmentShareDefaultsWhenKeysMissing(t *testing.T) {
	cfg := &Config{}
	share := cfg.SegmentShare("high", "mobile", "primary", "morning")
	want := 0.33 * 0.5 * 0.5 * 0.25
	if share != want {
		t.Fatalf("got %v want %v", share, want)
	}
}

func TestRevenueForConversionFallsBackToDefault(t *testing.T) {
	cfg := &Config{}
	if r := cfg.RevenueForConversion("high"); r != DefaultRevenuePerConversion {
		t.Fatalf("expected default revenue, got %v", r)
	}
}

func TestRevenueForConversionPrefersPerIntentOverScalar(t *testing.T) {
	cfg := &Config{
		RevenuePerConversion:         50,
		RevenuePerConversionByIntent: map[string]float64{"high": 200},
	}
	if r := cfg.RevenueForConversion("high"); r != 200 {
		t.Fatalf("expected per-intent override 200, got %v", r)
	}
	if r := cfg.RevenueForConversion("low"); r != 50 {
		t.Fatalf("expected scalar fallback 50 for unlisted tier, got %v", r)
	}
}
