// Package matching classifies a (keyword, query) pair under exact, phrase,
// or broad match rules and applies negative-keyword blocking. It is pure
// and stateless except for the fixed synonym table built once at init.
package matching

import (
	"regexp"
	"strings"

	"github.com/sherlockdev6/adsim-lab/internal/models"
)

var nonWordRE = regexp.MustCompile(`[^\w\s]`)

// Tokenize lowercases text, strips punctuation, and splits on whitespace,
// dropping empty tokens. Empty input tokenizes to an empty (non-nil) slice.
func Tokenize(text string) []string {
	normalized := nonWordRE.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	tokens = append(tokens, fields...)
	return tokens
}

// NormalizeKeyword re-joins a keyword's tokens with single spaces, for display/comparison.
func NormalizeKeyword(keyword string) string {
	return strings.Join(Tokenize(keyword), " ")
}

// ExactMatch reports whether the query's tokens are identical to the keyword's.
func ExactMatch(keywordTokens, queryTokens []string) bool {
	if len(keywordTokens) != len(queryTokens) {
		return false
	}
	for i := range keywordTokens {
		if keywordTokens[i] != queryTokens[i] {
			return false
		}
	}
	return true
}

// PhraseMatch reports whether keywordTokens appear as a contiguous, ordered
// sub-sequence of queryTokens.
func PhraseMatch(keywordTokens, queryTokens []string) bool {
	if len(keywordTokens) == 0 || len(keywordTokens) > len(queryTokens) {
		return false
	}
	for start := 0; start+len(keywordTokens) <= len(queryTokens); start++ {
		match := true
		for i, kt := range keywordTokens {
			if queryTokens[start+i] != kt {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// synonyms is the fixed, read-only bidirectional synonym table consulted
// during broad match scoring. Keys and values are drawn from the reference
// implementation's vocabulary; unknown words have only themselves as synonyms.
var synonyms = map[string][]string{
	"buy":         {"purchase", "get", "acquire", "order"},
	"cheap":       {"affordable", "low cost", "budget", "inexpensive"},
	"best":        {"top", "premier", "leading", "excellent"},
	"near":        {"nearby", "close to", "around", "local"},
	"rent":        {"lease", "hire", "rental"},
	"apartment":   {"flat", "unit", "condo"},
	"villa":       {"house", "home", "property"},
	"service":     {"services", "help", "assistance"},
	"repair":      {"fix", "fixing", "maintenance"},
	"cleaning":    {"clean", "cleaner", "housekeeping"},
	"ac":          {"air conditioning", "air conditioner", "hvac"},
	"plumber":     {"plumbing", "plumbers"},
	"electrician": {"electrical", "electric"},
	"dubai":       {"dxb"},
	"abu dhabi":   {"abudhabi", "ad"},
	"uae":         {"emirates", "united arab emirates"},
	"price":       {"cost", "pricing", "rate", "rates"},
	"discount":    {"sale", "offer", "deal", "deals"},
	"shop":        {"store", "shopping", "buy"},
	"delivery":    {"shipping", "deliver"},
	"online":      {"web", "internet", "digital"},
}

// reverseSynonyms is built once at init so GetSynonyms can look a word up
// whether it's a table key or one of a key's listed synonyms.
var reverseSynonyms map[string][]string

func init() {
	reverseSynonyms = make(map[string][]string)
	for key, list := range synonyms {
		for _, syn := range list {
			reverseSynonyms[syn] = append(reverseSynonyms[syn], key)
		}
	}
}

// GetSynonyms returns the set of words considered synonymous with word,
// including word itself. Unknown words synonymize only with themselves.
func GetSynonyms(word string) map[string]struct{} {
	out := map[string]struct{}{word: {}}
	if list, ok := synonyms[word]; ok {
		for _, s := range list {
			out[s] = struct{}{}
		}
	}
	for _, key := range reverseSynonyms[word] {
		out[key] = struct{}{}
		for _, s2 := range synonyms[key] {
			out[s2] = struct{}{}
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func intersects(a map[string]struct{}, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// BroadMatchScore computes the 0.60/0.25/0.15-weighted broad match score
// between a keyword's tokens and a query's tokens, and a short human-readable
// breakdown of its components.
func BroadMatchScore(keywordTokens, queryTokens []string) (float64, string) {
	if len(keywordTokens) == 0 || len(queryTokens) == 0 {
		return 0, "empty_input"
	}
	querySet := tokenSet(queryTokens)

	directMatches := 0
	synonymMatches := 0
	for _, kw := range keywordTokens {
		if _, ok := querySet[kw]; ok {
			directMatches++
			continue
		}
		if intersects(GetSynonyms(kw), querySet) {
			synonymMatches++
		}
	}

	n := float64(len(keywordTokens))
	topicOverlap := (float64(directMatches) + 0.8*float64(synonymMatches)) / n
	synonymHit := float64(synonymMatches) / n

	qLen, kLen := len(queryTokens), len(keywordTokens)
	minLen, maxLen := qLen, kLen
	if kLen < qLen {
		minLen, maxLen = kLen, qLen
	}
	contextFit := float64(minLen) / float64(maxLen)

	score := 0.60*topicOverlap + 0.25*synonymHit + 0.15*contextFit
	reason := "topic/synonym/context scored"
	return score, reason
}

// BroadMatchThreshold returns the minimum score required to count as a
// broad match: lower during a keyword's learning phase.
func BroadMatchThreshold(learningPhase bool) float64 {
	if learningPhase {
		return 0.58
	}
	return 0.62
}

// BroadMatch reports whether queryTokens broadly match keywordTokens, along
// with the score and a diagnostic reason string.
func BroadMatch(keywordTokens, queryTokens []string, learningPhase bool) (bool, float64, string) {
	threshold := BroadMatchThreshold(learningPhase)
	score, reason := BroadMatchScore(keywordTokens, queryTokens)
	return score >= threshold, score, reason
}

// CheckNegativeBlock reports whether any negative in negatives blocks the
// given query tokens, and which negative's text triggered the block.
//
// negQuality is reserved for a future probabilistic-leakage mode; the
// current behavior blocks unconditionally whenever a negative matches,
// regardless of negQuality's value.
func CheckNegativeBlock(queryTokens []string, negatives []models.NegativeKeyword, negQuality float64) (bool, string) {
	_ = negQuality
	querySet := tokenSet(queryTokens)
	for _, neg := range negatives {
		negTokens := Tokenize(neg.Text)
		blocked := false
		switch neg.MatchType {
		case models.MatchExact:
			blocked = ExactMatch(negTokens, queryTokens)
		case models.MatchPhrase:
			blocked = PhraseMatch(negTokens, queryTokens)
		case models.MatchBroad:
			for _, nt := range negTokens {
				if _, ok := querySet[nt]; ok {
					blocked = true
					break
				}
				if intersects(GetSynonyms(nt), querySet) {
					blocked = true
					break
				}
			}
		}
		if blocked {
			return true, neg.Text
		}
	}
	return false, ""
}

// Result is the outcome of matching one keyword against one query.
type Result struct {
	Matched           bool
	MatchType         models.MatchType
	MatchReason       string
	MatchScore        float64
	BlockedByNegative bool
	BlockingNegative  string
}

// Match runs the full matching pipeline for one keyword: classify by match
// type, then apply negatives if a positive match was found. No input
// (including empty keyword or query text) raises an error; it simply fails to match.
func Match(keywordText, queryText string, matchType models.MatchType, negatives []models.NegativeKeyword, learningPhase bool, negQuality float64) Result {
	keywordTokens := Tokenize(keywordText)
	queryTokens := Tokenize(queryText)

	var matched bool
	var score float64 = 1.0
	var reason string

	switch matchType {
	case models.MatchExact:
		matched = ExactMatch(keywordTokens, queryTokens)
		reason = "no_exact_match"
		if matched {
			reason = "exact_match"
		}
	case models.MatchPhrase:
		matched = PhraseMatch(keywordTokens, queryTokens)
		reason = "no_phrase_match"
		if matched {
			reason = "phrase_match"
		}
	case models.MatchBroad:
		matched, score, reason = BroadMatch(keywordTokens, queryTokens, learningPhase)
	}

	if !matched {
		return Result{Matched: false, MatchReason: reason}
	}

	if len(negatives) > 0 {
		if blocked, negText := CheckNegativeBlock(queryTokens, negatives, negQuality); blocked {
			return Result{
				Matched:           false,
				MatchType:         matchType,
				MatchReason:       "blocked_by_negative: " + negText,
				MatchScore:        score,
				BlockedByNegative: true,
				BlockingNegative:  negText,
			}
		}
	}

	return Result{Matched: true, MatchType: matchType, MatchReason: reason, MatchScore: score}
}
