package model

import "fmt"

// PayeeCandidate is a known (payee, category) pair a raw payee string can be
// matched against. Candidates are drawn from the category cache and from
// categorized transaction history.
type PayeeCandidate struct {
	PayeeName         string
	PayeeNameOriginal string
	CategoryID        string
	CategoryName      string
}

// SubScores breaks a fuzzy score down by metric. Each sub-score is 0-100.
type SubScores struct {
	Ratio    int // length-tolerant full-string similarity
	TokenSet int // word-order-insensitive token-set similarity
	Prefix   int // prefix-weighted partial-overlap similarity
}

// FuzzyMatchResult is one scored candidate for a query.
type FuzzyMatchResult struct {
	PayeeName       string
	CategoryID      string
	CategoryName    string
	NormalizedQuery string
	NormalizedMatch string
	SubScores       SubScores
	Score           int
}

// Validate ensures the score is within the contract bounds.
func (r *FuzzyMatchResult) Validate() error {
	if r.Score < 0 || r.Score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", r.Score)
	}
	return nil
}

// MatchSet classifies ranked candidates into the two confidence bands.
// HighConfidence and Disambiguation are disjoint: a result lands in exactly
// one band depending on its score.
type MatchSet struct {
	HighConfidence *FuzzyMatchResult
	Disambiguation []FuzzyMatchResult
}

// HasHighConfidence reports whether the query produced a match strong enough
// to skip disambiguation.
func (m *MatchSet) HasHighConfidence() bool {
	return m.HighConfidence != nil
}
