package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/llm"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// DefaultMinRefineSize is the cluster size at which the oracle is asked to
// split a cluster into sub-groups. Smaller clusters are kept as-is.
const DefaultMinRefineSize = 5

// Refiner asks the oracle to split large clusters into sub-groups of
// genuinely identical entities.
type Refiner struct {
	oracle  llm.Client
	logger  *slog.Logger
	minSize int
}

// NewRefiner creates a refiner with the default size threshold.
func NewRefiner(oracle llm.Client, logger *slog.Logger) *Refiner {
	return &Refiner{oracle: oracle, logger: logger, minSize: DefaultMinRefineSize}
}

// splitResponse is the structured output expected from the oracle: member
// indices partitioned into sub-groups.
type splitResponse struct {
	Groups [][]int `json:"groups"`
}

var splitSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"groups": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer"},
			},
		},
	},
	"required":             []string{"groups"},
	"additionalProperties": false,
}

// Refine replaces every cluster at or above the size threshold with the
// oracle's sub-groups, dropping singletons. An oracle failure or an invalid
// partition fails the whole run: a corrupted merge suggestion is worse than
// none.
func (r *Refiner) Refine(ctx context.Context, clusters []model.PayeeMergeCluster) ([]model.PayeeMergeCluster, error) {
	refined := make([]model.PayeeMergeCluster, 0, len(clusters))

	for _, c := range clusters {
		if len(c.Payees) < r.minSize {
			refined = append(refined, c)
			continue
		}

		subGroups, err := r.split(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to refine cluster %s: %w", c.ClusterID, err)
		}
		refined = append(refined, subGroups...)
	}

	return refined, nil
}

// split asks the oracle to partition one cluster and validates the answer.
func (r *Refiner) split(ctx context.Context, c model.PayeeMergeCluster) ([]model.PayeeMergeCluster, error) {
	raw, err := r.oracle.GenerateObject(ctx, llm.Request{
		System: splitSystemPrompt,
		Input:  buildSplitInput(c),
		Schema: splitSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle split call failed: %w", err)
	}

	var resp splitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidOracleOutput, err)
	}

	if err := validatePartition(resp.Groups, len(c.Payees)); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidOracleOutput, err)
	}

	out := make([]model.PayeeMergeCluster, 0, len(resp.Groups))
	dropped := 0
	for _, group := range resp.Groups {
		if len(group) < 2 {
			dropped++
			continue
		}
		members := make([]model.ClusterPayee, len(group))
		for i, idx := range group {
			members[i] = c.Payees[idx]
		}
		out = append(out, model.NewPayeeMergeCluster(c.BudgetID, members))
	}

	r.logger.Info("refined cluster",
		"cluster_id", c.ClusterID,
		"member_count", len(c.Payees),
		"sub_groups", len(out),
		"singletons_dropped", dropped)

	return out, nil
}

// validatePartition ensures every index 0..n-1 appears in exactly one group.
func validatePartition(groups [][]int, n int) error {
	seen := make(map[int]bool, n)
	for _, group := range groups {
		for _, idx := range group {
			if idx < 0 || idx >= n {
				return fmt.Errorf("index %d out of range for %d members", idx, n)
			}
			if seen[idx] {
				return fmt.Errorf("index %d appears in more than one group", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != n {
		return fmt.Errorf("partition covers %d of %d members", len(seen), n)
	}
	return nil
}

const splitSystemPrompt = `You split lists of payee names into groups that refer to the same real-world merchant.

Be conservative:
- The same brand with a location or store-number suffix IS the same merchant (merge them).
- Different entities that merely share a descriptor word are NOT the same merchant (do not merge them).
- When in doubt, keep names separate.`

func buildSplitInput(c model.PayeeMergeCluster) string {
	var b strings.Builder
	b.WriteString("These payee names were flagged as possible duplicates of one merchant.\n")
	b.WriteString("Partition ALL of them, by index, into groups that are genuinely the same entity.\n")
	b.WriteString("Every index must appear in exactly one group. Use single-element groups for names that stand alone.\n\n")
	for i, p := range c.Payees {
		fmt.Fprintf(&b, "%d: %s\n", i, p.Name)
	}
	return b.String()
}
