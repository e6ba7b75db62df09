package match

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// Metric weights for the combined score. The weighted-combination and
// rounding contract is load-bearing; the individual metric choices are not.
const (
	ratioWeight    = 0.4
	tokenSetWeight = 0.3
	prefixWeight   = 0.3
)

// Scorer computes a weighted blend of three string-similarity metrics.
// It is stateless and safe for concurrent use.
type Scorer struct{}

// NewScorer creates a fuzzy scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score compares two already-normalized strings and returns the combined
// 0-100 score plus the per-metric sub-scores.
func (s *Scorer) Score(a, b string) model.SubScores {
	ratio := lengthTolerantRatio(a, b)
	tokenSet := tokenSetScore(a, b)
	prefix := jaroWinklerScore(a, b)

	return model.SubScores{
		Ratio:    ratio,
		TokenSet: tokenSet,
		Prefix:   prefix,
	}
}

// Combined folds sub-scores into the single 0-100 score.
func (s *Scorer) Combined(sub model.SubScores) int {
	combined := ratioWeight*float64(sub.Ratio) +
		tokenSetWeight*float64(sub.TokenSet) +
		prefixWeight*float64(sub.Prefix)

	score := int(math.Round(combined))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// lengthTolerantRatio is the full-string similarity metric. For strings of
// similar length it is the plain Levenshtein ratio; when one string is much
// longer (store numbers, location suffixes) the best-window partial ratio is
// used instead, scaled down so a substring hit never beats an exact match.
func lengthTolerantRatio(a, b string) int {
	full := ratioScore(a, b)

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 || len(longer) <= len(shorter) {
		return full
	}

	partial := int(math.Round(0.9 * float64(partialRatio(shorter, longer))))
	if partial > full {
		return partial
	}
	return full
}

// partialRatio slides the shorter string across the longer and returns the
// best window's Levenshtein ratio.
func partialRatio(shorter, longer string) int {
	sRunes := []rune(shorter)
	lRunes := []rune(longer)

	best := 0
	for start := 0; start+len(sRunes) <= len(lRunes); start++ {
		window := string(lRunes[start : start+len(sRunes)])
		if score := ratioScore(shorter, window); score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// ratioScore is the plain Levenshtein similarity ratio.
func ratioScore(a, b string) int {
	if a == b {
		return 100
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}

	dist := levenshtein.ComputeDistance(a, b)
	score := 100.0 * (1.0 - float64(dist)/float64(maxLen))
	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}

// tokenSetScore is word-order-insensitive: both strings are reduced to
// sorted unique token sets and the shared core is compared against each
// side's remainder, taking the best pairing.
func tokenSetScore(a, b string) int {
	tokensA := uniqueSorted(strings.Fields(a))
	tokensB := uniqueSorted(strings.Fields(b))

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 100
	}

	inB := make(map[string]bool, len(tokensB))
	for _, tok := range tokensB {
		inB[tok] = true
	}
	inA := make(map[string]bool, len(tokensA))
	for _, tok := range tokensA {
		inA[tok] = true
	}

	var shared, onlyA, onlyB []string
	for _, tok := range tokensA {
		if inB[tok] {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for _, tok := range tokensB {
		if !inA[tok] {
			onlyB = append(onlyB, tok)
		}
	}

	core := strings.Join(shared, " ")
	withA := strings.TrimSpace(core + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(core + " " + strings.Join(onlyB, " "))

	best := ratioScore(core, withA)
	if sc := ratioScore(core, withB); sc > best {
		best = sc
	}
	if sc := ratioScore(withA, withB); sc > best {
		best = sc
	}
	return best
}

// jaroWinklerScore is the prefix-weighted similarity: Jaro-Winkler boosts
// strings sharing a common prefix, which suits merchant names that append
// store numbers and location suffixes.
func jaroWinklerScore(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	score := matchr.JaroWinkler(a, b, true) * 100.0
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(math.Round(score))
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			unique = append(unique, tok)
		}
	}
	sort.Strings(unique)
	return unique
}
