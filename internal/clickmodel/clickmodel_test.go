package clickmodel

import (
	"testing"

	"github.com/sherlockdev6/adsim-lab/internal/simrng"
)

func TestPositionMultiplierKnownAndFallback(t *testing.T) {
	if PositionMultiplier(1) != 1.0 {
		t.Fatal("position 1 must have multiplier 1.0")
	}
	if PositionMultiplier(0) != 0 {
		t.Fatal("position 0 (not shown) must have multiplier 0")
	}
	if PositionMultiplier(20) != 0.1 {
		t.Fatalf("expected long-tail fallback 0.1, got %v", PositionMultiplier(20))
	}
}

func TestComputeCTRClampsToUnitRange(t *testing.T) {
	ctr, _ := ComputeCTR(5.0, 1, 1.0, 1.0, 0.0, 0.1, nil)
	if ctr > 1.0 {
		t.Fatalf("expected ctr clamped to 1.0, got %v", ctr)
	}
	ctr, _ = ComputeCTR(0, 1, 1.0, 1.0, 0.0, 0.1, nil)
	if ctr < 0 {
		t.Fatalf("expected ctr clamped to 0, got %v", ctr)
	}
}

func TestComputeCTRNoRNGHasNoNoise(t *testing.T) {
	ctr, components := ComputeCTR(0.05, 2, 0.5, 0.5, 0.0, 0.1, nil)
	if components.NoiseMult != 1.0 {
		t.Fatalf("expected noise_mult 1.0 without rng, got %v", components.NoiseMult)
	}
	want := 0.05 * 0.85 * 0.8 * 1.0 * 1.0
	if diff := ctr - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("got %v want %v", ctr, want)
	}
}

func TestComputeCVRAppliesQualityPenalty(t *testing.T) {
	cvr, components := ComputeCVR(0.1, 1.0, 1.0, 1.0, 0.5, 0.0, nil)
	if components.QualityMult != 0.5 {
		t.Fatalf("expected quality_mult 0.5, got %v", components.QualityMult)
	}
	want := 0.1 * 1.0 * 1.0 * 1.0 * 1.0 * 0.5
	if diff := cvr - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("got %v want %v", cvr, want)
	}
}

func TestSimulateClickDeterministicFallback(t *testing.T) {
	if !SimulateClick(0.5, 0, nil).Clicked {
		t.Fatal("ctr=0.5 must click in deterministic fallback")
	}
	if SimulateClick(0.49, 0, nil).Clicked {
		t.Fatal("ctr<0.5 must not click in deterministic fallback")
	}
}

func TestSimulateClickFraudOnlyOnClick(t *testing.T) {
	rng := simrng.New(3)
	result := SimulateClick(0, 1.0, rng)
	if result.Clicked || result.IsFraud {
		t.Fatal("ctr=0 must never click or be flagged fraud")
	}
}

func TestSimulateConversionDeterministicFallback(t *testing.T) {
	result := SimulateConversion(0.5, 0, 7, nil)
	if !result.Converted || !result.IsTracked || result.DelayDays != 0 {
		t.Fatalf("unexpected deterministic fallback result: %+v", result)
	}
}

func TestSimulateConversionNoConversionIsAlwaysTracked(t *testing.T) {
	rng := simrng.New(11)
	result := SimulateConversion(0, 1.0, 7, rng)
	if result.Converted {
		t.Fatal("cvr=0 must never convert")
	}
	if !result.IsTracked {
		t.Fatal("a non-conversion must always be reported as tracked")
	}
}

func TestSimulateConversionDelayWithinBounds(t *testing.T) {
	rng := simrng.New(99)
	for i := 0; i < 50; i++ {
		result := SimulateConversion(1.0, 0, 5, rng)
		if result.DelayDays < 0 || result.DelayDays >= 5 {
			t.Fatalf("delay_days out of bounds: %d", result.DelayDays)
		}
	}
}

func TestCalculateLandingMultiplierLoadTimeBands(t *testing.T) {
	fast := CalculateLandingMultiplier(0.5, 1000, 0.5, false)
	mid := CalculateLandingMultiplier(0.5, 2000, 0.5, false)
	slow := CalculateLandingMultiplier(0.5, 3000, 0.5, false)
	slowest := CalculateLandingMultiplier(0.5, 5000, 0.5, false)
	if !(fast > mid && mid > slow && slow > slowest) {
		t.Fatalf("expected strictly decreasing multipliers by load time: %v %v %v %v", fast, mid, slow, slowest)
	}
}

func TestCalculateLandingMultiplierMobileAdjustment(t *testing.T) {
	desktop := CalculateLandingMultiplier(0.5, 1000, 1.0, false)
	mobile := CalculateLandingMultiplier(0.5, 1000, 1.0, true)
	if mobile <= desktop {
		t.Fatal("a perfect mobile score gives mobile_mult 1.2, above desktop's implicit 1.0")
	}
}
