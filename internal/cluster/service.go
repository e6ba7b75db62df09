package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/model"
	"github.com/ledgerleaf/payeewise/internal/service"
)

// BuildOptions controls a cache-aware clustering run.
type BuildOptions struct {
	// MinScore overrides the similarity threshold when positive.
	MinScore int
	// UseOracle enables oracle refinement of large clusters.
	UseOracle bool
	// ForceRebuild skips the cache check and always recomputes.
	ForceRebuild bool
}

// Service orchestrates clustering against the budget provider and the
// cluster store, reusing cached results when the payee list is unchanged.
type Service struct {
	engine  *Engine
	refiner *Refiner
	budget  service.BudgetProvider
	store   service.ClusterStore
	logger  *slog.Logger
}

// NewService wires the clustering service. The refiner may be nil when no
// oracle is configured; oracle runs then fail fast.
func NewService(engine *Engine, refiner *Refiner, budget service.BudgetProvider, store service.ClusterStore, logger *slog.Logger) *Service {
	return &Service{
		engine:  engine,
		refiner: refiner,
		budget:  budget,
		store:   store,
		logger:  logger,
	}
}

// BuildClusters fetches the budget's payees and returns merge-candidate
// clusters, serving cached results when the payee list hash is unchanged.
func (s *Service) BuildClusters(ctx context.Context, budgetID string, opts BuildOptions) ([]model.PayeeMergeCluster, error) {
	if opts.UseOracle && s.refiner == nil {
		return nil, common.ErrOracleNotConfigured
	}

	payees, err := s.budget.GetPayees(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payees: %w", err)
	}
	if len(payees) == 0 {
		return nil, common.ErrNoPayees
	}

	listHash := model.PayeeListHash(payees)

	if !opts.ForceRebuild {
		cached, storedHash, err := s.store.GetClusters(ctx, budgetID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cached clusters: %w", err)
		}
		if storedHash == listHash {
			s.logger.Info("payee list unchanged, serving cached clusters",
				"budget_id", budgetID,
				"cluster_count", len(cached))
			return cached, nil
		}
	}

	clusters := s.engine.BuildClusters(budgetID, payees, Options{
		MinScore:         opts.MinScore,
		OracleRefinement: opts.UseOracle,
	})

	if opts.UseOracle {
		clusters, err = s.refiner.Refine(ctx, clusters)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveClusters(ctx, budgetID, listHash, payees, clusters); err != nil {
		return nil, fmt.Errorf("failed to save clusters: %w", err)
	}

	s.logger.Info("built payee clusters",
		"budget_id", budgetID,
		"payee_count", len(payees),
		"cluster_count", len(clusters),
		"oracle_refined", opts.UseOracle)

	return clusters, nil
}

// GetCachedClusters returns the stored clusters for a budget along with
// their freshness relative to the current payee list. Stale payee ids cover
// payees added, removed, or renamed since the clusters were computed.
func (s *Service) GetCachedClusters(ctx context.Context, budgetID string) ([]model.PayeeMergeCluster, model.ClusterCacheStatus, error) {
	clusters, storedHash, err := s.store.GetClusters(ctx, budgetID)
	if err != nil {
		return nil, model.ClusterCacheStatus{}, fmt.Errorf("failed to load cached clusters: %w", err)
	}
	if storedHash == "" {
		return nil, model.ClusterCacheStatus{Stale: true}, nil
	}

	current, err := s.budget.GetPayees(ctx, budgetID)
	if err != nil {
		return nil, model.ClusterCacheStatus{}, fmt.Errorf("failed to fetch payees: %w", err)
	}

	if model.PayeeListHash(current) == storedHash {
		return clusters, model.ClusterCacheStatus{}, nil
	}

	snapshot, _, err := s.store.GetClusterSnapshot(ctx, budgetID)
	if err != nil {
		return nil, model.ClusterCacheStatus{}, fmt.Errorf("failed to load cluster snapshot: %w", err)
	}

	status := model.ClusterCacheStatus{
		Stale:         true,
		StalePayeeIDs: diffPayees(snapshot, current),
	}
	return clusters, status, nil
}

// Invalidate drops the stored clusters for a budget.
func (s *Service) Invalidate(ctx context.Context, budgetID string) error {
	return s.store.InvalidateClusters(ctx, budgetID)
}

// diffPayees returns the ids of payees that were added, removed, or renamed
// between the snapshot and the current list, sorted for stable output.
func diffPayees(snapshot, current []model.Payee) []string {
	old := make(map[string]string, len(snapshot))
	for _, p := range snapshot {
		old[p.ID] = p.Name
	}

	changed := make(map[string]bool)
	seen := make(map[string]bool, len(current))
	for _, p := range current {
		seen[p.ID] = true
		name, ok := old[p.ID]
		if !ok || name != p.Name {
			changed[p.ID] = true
		}
	}
	for id := range old {
		if !seen[id] {
			changed[id] = true
		}
	}

	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
