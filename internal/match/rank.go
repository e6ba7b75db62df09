package match

import (
	"sort"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// Ranking thresholds. Scores at or above HighConfidence skip disambiguation;
// scores below MinimumCandidate are discarded entirely.
const (
	DefaultMinimumCandidate = 50
	DefaultHighConfidence   = 85

	// aliasHitBonus rewards candidates whose canonical forms match exactly
	// even though their normalized forms differ.
	aliasHitBonus = 10

	// maxDisambiguation caps how many candidates are offered to the oracle.
	maxDisambiguation = 5
)

// Ranker scores a query against a candidate pool and classifies results into
// confidence bands.
type Ranker struct {
	scorer           *Scorer
	aliases          *AliasTable
	minimumCandidate int
	highConfidence   int
}

// NewRanker creates a ranker with the default thresholds.
func NewRanker(scorer *Scorer, aliases *AliasTable) *Ranker {
	return &Ranker{
		scorer:           scorer,
		aliases:          aliases,
		minimumCandidate: DefaultMinimumCandidate,
		highConfidence:   DefaultHighConfidence,
	}
}

// NewRankerWithThresholds creates a ranker with custom band boundaries.
func NewRankerWithThresholds(scorer *Scorer, aliases *AliasTable, minimumCandidate, highConfidence int) *Ranker {
	return &Ranker{
		scorer:           scorer,
		aliases:          aliases,
		minimumCandidate: minimumCandidate,
		highConfidence:   highConfidence,
	}
}

// Rank scores the query against every candidate, keeps results at or above
// the floor, and splits them into the high-confidence and disambiguation
// bands. The bands are disjoint and share the same descending score order.
func (r *Ranker) Rank(query string, candidates []model.PayeeCandidate) ([]model.FuzzyMatchResult, model.MatchSet) {
	normalizedQuery := Normalize(query)
	canonicalQuery := r.aliases.Canonicalize(query)

	results := make([]model.FuzzyMatchResult, 0, len(candidates))
	for _, candidate := range candidates {
		result := r.scoreCandidate(normalizedQuery, canonicalQuery, candidate)
		if result.Score >= r.minimumCandidate {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PayeeName < results[j].PayeeName
	})

	return results, r.classify(results)
}

// scoreCandidate takes the better of the normalized-form and canonical-form
// scores, then applies the alias-hit bonus.
func (r *Ranker) scoreCandidate(normalizedQuery, canonicalQuery string, candidate model.PayeeCandidate) model.FuzzyMatchResult {
	normalizedMatch := Normalize(candidate.PayeeName)
	canonicalMatch := r.aliases.Canonicalize(candidate.PayeeName)

	normalizedSub := r.scorer.Score(normalizedQuery, normalizedMatch)
	canonicalSub := r.scorer.Score(canonicalQuery, canonicalMatch)

	sub := normalizedSub
	score := r.scorer.Combined(normalizedSub)
	if canonicalScore := r.scorer.Combined(canonicalSub); canonicalScore > score {
		sub = canonicalSub
		score = canonicalScore
	}

	if canonicalQuery == canonicalMatch && normalizedQuery != normalizedMatch {
		score += aliasHitBonus
		if score > 100 {
			score = 100
		}
	}

	return model.FuzzyMatchResult{
		PayeeName:       candidate.PayeeName,
		CategoryID:      candidate.CategoryID,
		CategoryName:    candidate.CategoryName,
		NormalizedQuery: normalizedQuery,
		NormalizedMatch: normalizedMatch,
		SubScores:       sub,
		Score:           score,
	}
}

// classify splits sorted results into the two bands.
func (r *Ranker) classify(results []model.FuzzyMatchResult) model.MatchSet {
	var set model.MatchSet

	if len(results) > 0 && results[0].Score >= r.highConfidence {
		top := results[0]
		set.HighConfidence = &top
	}

	for _, result := range results {
		if result.Score >= r.highConfidence {
			continue
		}
		set.Disambiguation = append(set.Disambiguation, result)
		if len(set.Disambiguation) == maxDisambiguation {
			break
		}
	}

	return set
}
