package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_Bounds(t *testing.T) {
	scorer := NewScorer()

	pairs := [][2]string{
		{"starbucks", "starbucks"},
		{"starbucks store 4521", "starbucks"},
		{"amzn mktp us 2k3", "amazon com"},
		{"chevron", "whole foods market"},
		{"", "starbucks"},
		{"", ""},
	}

	for _, pair := range pairs {
		sub := scorer.Score(pair[0], pair[1])
		combined := scorer.Combined(sub)

		assert.GreaterOrEqual(t, combined, 0, "combined for %v", pair)
		assert.LessOrEqual(t, combined, 100, "combined for %v", pair)
		for _, metric := range []int{sub.Ratio, sub.TokenSet, sub.Prefix} {
			assert.GreaterOrEqual(t, metric, 0, "sub-score for %v", pair)
			assert.LessOrEqual(t, metric, 100, "sub-score for %v", pair)
		}
	}
}

func TestScorer_IdenticalStrings(t *testing.T) {
	scorer := NewScorer()
	sub := scorer.Score("starbucks", "starbucks")
	assert.Equal(t, 100, sub.Ratio)
	assert.Equal(t, 100, sub.TokenSet)
	assert.Equal(t, 100, sub.Prefix)
	assert.Equal(t, 100, scorer.Combined(sub))
}

func TestScorer_TokenSetOrderInsensitive(t *testing.T) {
	scorer := NewScorer()
	sub := scorer.Score("whole foods market", "market whole foods")
	assert.Equal(t, 100, sub.TokenSet, "token-set metric must ignore word order")
}

func TestScorer_StoreSuffixStaysHigh(t *testing.T) {
	// A store-numbered variant of a known merchant should clear the
	// high-confidence bar once all three metrics are blended.
	scorer := NewScorer()
	sub := scorer.Score(Normalize("Starbucks Store #4521"), Normalize("Starbucks"))
	combined := scorer.Combined(sub)
	assert.GreaterOrEqual(t, combined, 85, "sub-scores: %+v", sub)
}

func TestScorer_UnrelatedStaysLow(t *testing.T) {
	scorer := NewScorer()
	sub := scorer.Score("chevron gas 8841", "netflix com")
	assert.Less(t, scorer.Combined(sub), 50, "sub-scores: %+v", sub)
}

func TestScorer_RelativeOrdering(t *testing.T) {
	scorer := NewScorer()
	query := "starbucks store 4521"

	closeScore := scorer.Combined(scorer.Score(query, "starbucks"))
	farScore := scorer.Combined(scorer.Score(query, "shell oil"))
	assert.Greater(t, closeScore, farScore)
}
