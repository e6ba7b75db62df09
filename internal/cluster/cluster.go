// Package cluster implements the payee deduplication clustering engine: a
// union-find over exact, token-set, and weighted rare-token similarity
// signals, optionally refined by an oracle call.
package cluster

import (
	"log/slog"
	"math"
	"sort"

	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// Similarity thresholds for the rare-token bucket. The relaxed threshold
// applies when oracle refinement is enabled, since the oracle is the final
// filter.
const (
	DefaultThreshold = 92
	RelaxedThreshold = 80
)

// Options controls one clustering run.
type Options struct {
	// MinScore overrides the similarity threshold; zero selects the default
	// for the refinement mode.
	MinScore int
	// OracleRefinement relaxes the threshold because refinement prunes
	// false positives afterwards.
	OracleRefinement bool
}

func (o Options) threshold() int {
	if o.MinScore > 0 {
		return o.MinScore
	}
	if o.OracleRefinement {
		return RelaxedThreshold
	}
	return DefaultThreshold
}

// Engine partitions a payee list into merge-candidate clusters.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// record is one payee prepared for clustering.
type record struct {
	payee      model.Payee
	normalized string
	tokenKey   string
	tokens     []string
}

// BuildClusters partitions the payee list into clusters of at least two
// members. The result is a valid partition (every payee id appears in at
// most one cluster) and is independent of the input order.
func (e *Engine) BuildClusters(budgetID string, payees []model.Payee, opts Options) []model.PayeeMergeCluster {
	if len(payees) < 2 {
		return nil
	}

	records := prepare(payees)
	uf := newUnionFind(len(records))

	e.unionExact(records, uf)
	e.unionTokenSets(records, uf)
	e.unionRareTokens(records, uf, opts.threshold())

	clusters := make([]model.PayeeMergeCluster, 0)
	for _, member := range uf.groups() {
		if len(member) < 2 {
			continue
		}
		members := make([]model.ClusterPayee, len(member))
		for i, idx := range member {
			rec := records[idx]
			members[i] = model.ClusterPayee{
				ID:             rec.payee.ID,
				Name:           rec.payee.Name,
				NormalizedName: rec.normalized,
				TokenSet:       rec.tokenKey,
			}
		}
		clusters = append(clusters, model.NewPayeeMergeCluster(budgetID, members))
	}

	sort.Slice(clusters, func(i, j int) bool {
		if len(clusters[i].Payees) != len(clusters[j].Payees) {
			return len(clusters[i].Payees) > len(clusters[j].Payees)
		}
		return clusters[i].ClusterID < clusters[j].ClusterID
	})

	e.logger.Info("built payee clusters",
		"budget_id", budgetID,
		"payee_count", len(payees),
		"cluster_count", len(clusters),
		"threshold", opts.threshold())

	return clusters
}

// prepare normalizes and tokenizes every payee, sorted by id so union order
// never depends on input order.
func prepare(payees []model.Payee) []record {
	records := make([]record, len(payees))
	for i, p := range payees {
		records[i] = record{
			payee:      p,
			normalized: match.Normalize(p.Name),
			tokens:     match.TokenSet(p.Name),
			tokenKey:   match.TokenSetString(p.Name),
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].payee.ID < records[j].payee.ID })
	return records
}

// unionExact merges payees sharing an identical normalized name.
func (e *Engine) unionExact(records []record, uf *unionFind) {
	byNormalized := make(map[string][]int)
	for i, rec := range records {
		if rec.normalized == "" {
			continue
		}
		byNormalized[rec.normalized] = append(byNormalized[rec.normalized], i)
	}
	unionBuckets(byNormalized, uf)
}

// unionTokenSets merges payees sharing an identical sorted token-set string.
func (e *Engine) unionTokenSets(records []record, uf *unionFind) {
	byTokenKey := make(map[string][]int)
	for i, rec := range records {
		if rec.tokenKey == "" {
			continue
		}
		byTokenKey[rec.tokenKey] = append(byTokenKey[rec.tokenKey], i)
	}
	unionBuckets(byTokenKey, uf)
}

// unionRareTokens buckets payees by their rarest token and merges pairs
// whose weighted or raw token-set similarity clears the threshold.
func (e *Engine) unionRareTokens(records []record, uf *unionFind, threshold int) {
	freq := tokenFrequencies(records)

	buckets := make(map[string][]int)
	for i, rec := range records {
		if token := rarestToken(rec.tokens, freq); token != "" {
			buckets[token] = append(buckets[token], i)
		}
	}

	for _, member := range buckets {
		for i := 0; i < len(member); i++ {
			for j := i + 1; j < len(member); j++ {
				a, b := records[member[i]], records[member[j]]
				weighted := weightedJaccard(a.tokens, b.tokens, freq)
				raw := jaccard(a.tokens, b.tokens)
				if weighted >= threshold || raw >= threshold {
					uf.union(member[i], member[j])
				}
			}
		}
	}
}

// tokenFrequencies counts, for every token, how many payees carry it.
func tokenFrequencies(records []record) map[string]int {
	freq := make(map[string]int)
	for _, rec := range records {
		for _, tok := range rec.tokens {
			freq[tok]++
		}
	}
	return freq
}

// rarestToken picks the payee's lowest-frequency token among those shared by
// at least two payees, falling back to the globally rarest token when none
// is shared. Ties break lexicographically for determinism.
func rarestToken(tokens []string, freq map[string]int) string {
	best := ""
	bestFreq := math.MaxInt
	for _, tok := range tokens {
		f := freq[tok]
		if f < 2 {
			continue
		}
		if f < bestFreq || (f == bestFreq && tok < best) {
			best, bestFreq = tok, f
		}
	}
	if best != "" {
		return best
	}

	for _, tok := range tokens {
		f := freq[tok]
		if f < bestFreq || (f == bestFreq && tok < best) || best == "" {
			best, bestFreq = tok, f
		}
	}
	return best
}

// weightedJaccard is a frequency-inverse-weighted Jaccard similarity: rare
// tokens count for more than ubiquitous ones. Weight of token t is
// 1/log2(freq(t)+1). Returns 0-100.
func weightedJaccard(a, b []string, freq map[string]int) int {
	inB := make(map[string]bool, len(b))
	for _, tok := range b {
		inB[tok] = true
	}

	var intersection, union float64
	for _, tok := range a {
		w := tokenWeight(tok, freq)
		union += w
		if inB[tok] {
			intersection += w
		}
	}
	inA := make(map[string]bool, len(a))
	for _, tok := range a {
		inA[tok] = true
	}
	for _, tok := range b {
		if !inA[tok] {
			union += tokenWeight(tok, freq)
		}
	}

	if union == 0 {
		return 0
	}
	return int(math.Round(100 * intersection / union))
}

func tokenWeight(token string, freq map[string]int) float64 {
	f := freq[token]
	if f < 1 {
		f = 1
	}
	return 1.0 / math.Log2(float64(f)+1)
}

// jaccard is the unweighted token-set similarity, 0-100.
func jaccard(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inB := make(map[string]bool, len(b))
	for _, tok := range b {
		inB[tok] = true
	}

	intersection := 0
	for _, tok := range a {
		if inB[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return int(math.Round(100 * float64(intersection) / float64(union)))
}

func unionBuckets(buckets map[string][]int, uf *unionFind) {
	for _, member := range buckets {
		for i := 1; i < len(member); i++ {
			uf.union(member[0], member[i])
		}
	}
}
