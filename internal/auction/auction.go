// Package auction implements the Google-search-style ad auction: AdRank
// computation, rank/budget eligibility filtering, temperature-softmax
// probabilistic position allocation, and generalized-second-price CPC.
package auction

import (
	"math"
	"sort"

	"github.com/sherlockdev6/adsim-lab/internal/simrng"
)

// Entry is one advertiser's bid into a single query's auction. Use NewEntry
// to get ContextFactor/FormatFactor defaulted to 1.0; the zero value of
// Entry has AdRank 0 and will never clear the minimum-AdRank filter.
type Entry struct {
	AdvertiserID  string
	KeywordID     string
	AdID          string
	Bid           float64
	QualityScore  float64 // 0-1 internal scale
	ContextFactor float64 // location/time relevance
	FormatFactor  float64 // ad extensions etc.
}

// NewEntry builds an Entry with ContextFactor and FormatFactor defaulted to
// 1.0, matching the reference auction's neutral multipliers.
func NewEntry(advertiserID, keywordID, adID string, bid, qualityScore float64) Entry {
	return Entry{
		AdvertiserID: advertiserID, KeywordID: keywordID, AdID: adID,
		Bid: bid, QualityScore: qualityScore, ContextFactor: 1.0, FormatFactor: 1.0,
	}
}

// AdRank is Bid x QualityScore x ContextFactor x FormatFactor.
func (e Entry) AdRank() float64 {
	return e.Bid * e.QualityScore * e.ContextFactor * e.FormatFactor
}

// Position is one advertiser's outcome in a resolved auction.
type Position struct {
	AdvertiserID string
	KeywordID    string
	AdID         string
	Position     int // 1-indexed; 0 means not shown
	AdRank       float64
	CPC          float64
	WonAuction   bool
	LossReason   string // "budget", "rank", or "" when won
}

// Result is the complete outcome of running one query's auction.
type Result struct {
	Query         string
	Positions     []Position
	TotalEligible int
	TotalShown    int
}

// UserPosition returns userAdvertiserID's position in this result, or nil
// if that advertiser did not enter this auction.
func (r Result) UserPosition(userAdvertiserID string) *Position {
	for i := range r.Positions {
		if r.Positions[i].AdvertiserID == userAdvertiserID {
			return &r.Positions[i]
		}
	}
	return nil
}

const defaultTau = 0.65

// SoftmaxPositions allocates 1-indexed positions over adRanks probabilistically:
// a higher AdRank gives a higher chance of a better position, but not a
// certainty. With rng == nil it falls back to a deterministic rank-descending
// sort, a path reachable only from tests that want reproducible ordering
// without consuming randomness.
func SoftmaxPositions(adRanks []float64, tau float64, rng *simrng.RNG) []int {
	n := len(adRanks)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{1}
	}

	if rng == nil {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return adRanks[order[i]] > adRanks[order[j]]
		})
		positions := make([]int, n)
		for pos, idx := range order {
			positions[idx] = pos + 1
		}
		return positions
	}

	maxRank := adRanks[0]
	for _, r := range adRanks[1:] {
		if r > maxRank {
			maxRank = r
		}
	}
	expRanks := make([]float64, n)
	var sumExp float64
	for i, r := range adRanks {
		expRanks[i] = math.Exp((r - maxRank) / tau)
		sumExp += expRanks[i]
	}
	probs := make([]float64, n)
	for i, e := range expRanks {
		probs[i] = e / sumExp
	}

	positions := make([]int, n)
	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}

	for position := 1; position <= n; position++ {
		if len(remaining) == 0 {
			break
		}

		remainingProbs := make([]float64, len(remaining))
		var total float64
		for i, idx := range remaining {
			remainingProbs[i] = probs[idx]
			total += probs[idx]
		}
		if total <= 0 {
			for i := range remainingProbs {
				remainingProbs[i] = 1.0 / float64(len(remaining))
			}
		} else {
			for i := range remainingProbs {
				remainingProbs[i] /= total
			}
		}

		winnerLocal := rng.WeightedChoice(remainingProbs)
		winnerIdx := remaining[winnerLocal]
		positions[winnerIdx] = position
		remaining = append(remaining[:winnerLocal], remaining[winnerLocal+1:]...)
	}

	return positions
}

// CalculateCPC computes generalized-second-price cost per click:
// CPC = (nextAdRank / (winnerQS * winnerContext)) + epsilon, floored at minCPC.
func CalculateCPC(winnerAdRank, winnerQS, winnerContext, nextAdRank, minCPC, epsilon float64) float64 {
	denominator := winnerQS * winnerContext
	if denominator <= 0 {
		return minCPC
	}
	cpc := nextAdRank/denominator + epsilon
	if cpc < minCPC {
		return minCPC
	}
	return cpc
}

const (
	defaultMaxPositions = 8
	defaultMinAdRank    = 0.1
	defaultMinCPC       = 0.01
	defaultEpsilon      = 0.01
)

// Options configures a Run call; zero values fall back to the teacher
// defaults used throughout the reference implementation.
type Options struct {
	MaxPositions    int
	MinAdRank       float64
	BudgetRemaining map[string]float64 // advertiser ID -> remaining daily budget; nil disables budget filtering
	RNG             *simrng.RNG
}

func (o Options) maxPositions() int {
	if o.MaxPositions > 0 {
		return o.MaxPositions
	}
	return defaultMaxPositions
}

func (o Options) minAdRank() float64 {
	if o.MinAdRank > 0 {
		return o.MinAdRank
	}
	return defaultMinAdRank
}

// Run resolves a single query's auction: filters entries by minimum AdRank
// and remaining budget, allocates positions for the survivors among at most
// MaxPositions slots, and prices each won position via GSP.
func Run(entries []Entry, query string, opts Options) Result {
	if len(entries) == 0 {
		return Result{Query: query}
	}

	minAdRank := opts.minAdRank()
	positions := make([]Position, 0, len(entries))

	eligible := make([]Entry, 0, len(entries))
	rankExcluded := make([]Entry, 0)
	for _, e := range entries {
		if e.AdRank() >= minAdRank {
			eligible = append(eligible, e)
		} else {
			rankExcluded = append(rankExcluded, e)
		}
	}

	budgetExcluded := make([]Entry, 0)
	if opts.BudgetRemaining != nil {
		survivors := eligible[:0:0]
		for _, e := range eligible {
			remaining, tracked := opts.BudgetRemaining[e.AdvertiserID]
			if tracked && remaining <= 0 {
				budgetExcluded = append(budgetExcluded, e)
				continue
			}
			survivors = append(survivors, e)
		}
		eligible = survivors
	}

	for _, e := range budgetExcluded {
		positions = append(positions, Position{
			AdvertiserID: e.AdvertiserID, KeywordID: e.KeywordID, AdID: e.AdID,
			AdRank: e.AdRank(), LossReason: "budget",
		})
	}
	for _, e := range rankExcluded {
		positions = append(positions, Position{
			AdvertiserID: e.AdvertiserID, KeywordID: e.KeywordID, AdID: e.AdID,
			AdRank: e.AdRank(), LossReason: "rank",
		})
	}

	if len(eligible) == 0 {
		return Result{Query: query, Positions: positions}
	}

	sorted := make([]Entry, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].AdRank(), sorted[j].AdRank()
		if ri != rj {
			return ri > rj
		}
		return sorted[i].AdvertiserID < sorted[j].AdvertiserID
	})

	maxPositions := opts.maxPositions()
	shown := sorted
	var notShown []Entry
	if len(sorted) > maxPositions {
		shown = sorted[:maxPositions]
		notShown = sorted[maxPositions:]
	}

	adRanks := make([]float64, len(shown))
	for i, e := range shown {
		adRanks[i] = e.AdRank()
	}
	allocated := SoftmaxPositions(adRanks, defaultTau, opts.RNG)

	for i, entry := range shown {
		position := allocated[i]

		nextAdRank := minAdRank
		for j, other := range shown {
			if allocated[j] == position+1 {
				nextAdRank = other.AdRank()
				break
			}
		}

		cpc := CalculateCPC(entry.AdRank(), entry.QualityScore, entry.ContextFactor, nextAdRank, defaultMinCPC, defaultEpsilon)

		positions = append(positions, Position{
			AdvertiserID: entry.AdvertiserID, KeywordID: entry.KeywordID, AdID: entry.AdID,
			Position: position, AdRank: entry.AdRank(), CPC: cpc, WonAuction: true,
		})
	}

	for _, e := range notShown {
		positions = append(positions, Position{
			AdvertiserID: e.AdvertiserID, KeywordID: e.KeywordID, AdID: e.AdID,
			AdRank: e.AdRank(), LossReason: "rank",
		})
	}

	return Result{
		Query:         query,
		Positions:     positions,
		TotalEligible: len(eligible),
		TotalShown:    len(shown),
	}
}

// ImpressionShare returns (share, lostToBudgetShare, lostToRankShare), all
// 0-1, from a count of impressions won against the total auctions an
// advertiser was eligible to enter.
func ImpressionShare(userImpressions, totalEligibleAuctions, lostToBudget, lostToRank int) (float64, float64, float64) {
	if totalEligibleAuctions == 0 {
		return 0, 0, 0
	}
	total := float64(totalEligibleAuctions)
	return float64(userImpressions) / total, float64(lostToBudget) / total, float64(lostToRank) / total
}
