package auction

import (
	"math"
	"testing"

	"github.com/sherlockdev6/adsim-lab/internal/simrng"
)

// Scenario test case 2: rank exclusion.
func TestRunExcludesLowRankEntry(t *testing.T) {
	entries := []Entry{
		NewEntry("adv1", "kw1", "ad1", 5, 0.8),
		NewEntry("adv2", "kw2", "ad2", 0.1, 0.1),
	}
	result := Run(entries, "villa dubai", Options{MinAdRank: 0.1})

	pos := result.UserPosition("adv2")
	if pos == nil {
		t.Fatal("expected adv2 to appear in result positions")
	}
	if pos.WonAuction {
		t.Fatal("expected adv2 to lose the auction")
	}
	if pos.LossReason != "rank" {
		t.Fatalf("expected loss reason 'rank', got %q", pos.LossReason)
	}
}

// Scenario test case 3: budget exclusion.
func TestRunExcludesZeroBudgetEntry(t *testing.T) {
	entries := []Entry{
		NewEntry("adv1", "kw1", "ad1", 5, 0.8),
		NewEntry("adv2", "kw2", "ad2", 4, 0.8),
	}
	result := Run(entries, "villa dubai", Options{
		BudgetRemaining: map[string]float64{"adv1": 0, "adv2": 100},
	})

	pos := result.UserPosition("adv1")
	if pos == nil {
		t.Fatal("expected adv1 to appear in result positions")
	}
	if pos.WonAuction {
		t.Fatal("expected adv1 to lose the auction")
	}
	if pos.LossReason != "budget" {
		t.Fatalf("expected loss reason 'budget', got %q", pos.LossReason)
	}
}

// Scenario test case 4: CPC identity.
func TestCalculateCPCIdentity(t *testing.T) {
	cpc := CalculateCPC(10, 0.8, 1.0, 6.0, 0.01, 0.01)
	if math.Abs(cpc-7.51) > 0.01 {
		t.Fatalf("expected cpc ~= 7.51, got %v", cpc)
	}
}

func TestCalculateCPCFloorsAtMinimum(t *testing.T) {
	cpc := CalculateCPC(1, 0.9, 1.0, 0, 0.5, 0.01)
	if cpc < 0.5 {
		t.Fatalf("expected cpc floored at min_cpc, got %v", cpc)
	}
}

func TestCalculateCPCZeroDenominatorReturnsMinCPC(t *testing.T) {
	cpc := CalculateCPC(10, 0, 1.0, 6.0, 0.01, 0.01)
	if cpc != 0.01 {
		t.Fatalf("expected min_cpc fallback, got %v", cpc)
	}
}

func TestSoftmaxPositionsNilRNGIsDeterministicRankOrder(t *testing.T) {
	positions := SoftmaxPositions([]float64{3, 9, 1}, 0.65, nil)
	want := []int{2, 1, 3}
	for i := range want {
		if positions[i] != want[i] {
			t.Fatalf("got %v want %v", positions, want)
		}
	}
}

func TestSoftmaxPositionsSingleEntry(t *testing.T) {
	positions := SoftmaxPositions([]float64{5}, 0.65, simrng.New(1))
	if len(positions) != 1 || positions[0] != 1 {
		t.Fatalf("expected single entry at position 1, got %v", positions)
	}
}

func TestSoftmaxPositionsIsPermutation(t *testing.T) {
	rng := simrng.New(42)
	adRanks := []float64{8, 6, 4, 2, 1}
	positions := SoftmaxPositions(adRanks, 0.65, rng)

	seen := make(map[int]bool)
	for _, p := range positions {
		if p < 1 || p > len(adRanks) {
			t.Fatalf("position out of range: %d", p)
		}
		if seen[p] {
			t.Fatalf("position %d assigned twice: %v", p, positions)
		}
		seen[p] = true
	}
}

func TestRunNoEntriesReturnsEmptyResult(t *testing.T) {
	result := Run(nil, "q", Options{})
	if len(result.Positions) != 0 || result.TotalShown != 0 {
		t.Fatal("expected empty result for no entries")
	}
}

func TestRunCapsShownAtMaxPositions(t *testing.T) {
	entries := make([]Entry, 10)
	for i := range entries {
		entries[i] = NewEntry("adv", "kw", "ad", float64(10-i), 0.9)
	}
	result := Run(entries, "q", Options{MaxPositions: 3, RNG: simrng.New(1)})
	if result.TotalShown != 3 {
		t.Fatalf("expected 3 shown, got %d", result.TotalShown)
	}
}

func TestImpressionShareZeroEligibleIsZero(t *testing.T) {
	share, lostBudget, lostRank := ImpressionShare(0, 0, 0, 0)
	if share != 0 || lostBudget != 0 || lostRank != 0 {
		t.Fatal("expected all-zero result when total eligible auctions is 0")
	}
}

func TestImpressionShareBreakdown(t *testing.T) {
	share, lostBudget, lostRank := ImpressionShare(6, 10, 2, 2)
	if share != 0.6 || lostBudget != 0.2 || lostRank != 0.2 {
		t.Fatalf("unexpected breakdown: share=%v lostBudget=%v lostRank=%v", share, lostBudget, lostRank)
	}
}
