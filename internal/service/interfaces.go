// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// BudgetProvider is the external ledger/budget collaborator. Implementations
// talk to whatever sync protocol the budgeting service exposes; this engine
// only consumes the in-process contract.
type BudgetProvider interface {
	GetTransactions(ctx context.Context, budgetID string) ([]model.Transaction, error)
	GetCategories(ctx context.Context, budgetID string) ([]model.Category, error)
	GetPayees(ctx context.Context, budgetID string) ([]model.Payee, error)
	GetCategorizedPayees(ctx context.Context, budgetID string) ([]model.CategorizedPayee, error)
}

// MatchCache stores normalized raw payee -> canonical identity mappings.
// Lookups increment the entry's hit count.
type MatchCache interface {
	FindMatch(ctx context.Context, budgetID, payeeName string) (*model.MatchCacheEntry, error)
	FindMatches(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.MatchCacheEntry, error)
	SaveMatch(ctx context.Context, entry *model.MatchCacheEntry) error
	SaveMatchBatch(ctx context.Context, entries []model.MatchCacheEntry) error
}

// CategoryCache stores normalized canonical payee -> category mappings.
// Lookups increment the entry's hit count.
type CategoryCache interface {
	FindCategory(ctx context.Context, budgetID, payeeName string) (*model.CategoryCacheEntry, error)
	FindCategories(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.CategoryCacheEntry, error)
	SaveCategory(ctx context.Context, entry *model.CategoryCacheEntry) error
	SaveCategoryBatch(ctx context.Context, entries []model.CategoryCacheEntry) error
}

// SuggestionStore persists per-transaction resolution records.
type SuggestionStore interface {
	SaveSuggestion(ctx context.Context, suggestion *model.Suggestion) error
	SaveSuggestions(ctx context.Context, suggestions []model.Suggestion) error
	GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error)
	GetSuggestionsByBudget(ctx context.Context, budgetID string) ([]model.Suggestion, error)
	UpdateSuggestion(ctx context.Context, suggestion *model.Suggestion) error
	DeleteSuggestions(ctx context.Context, ids []string) error
}

// ClusterStore persists merge-candidate clusters together with the payee
// list snapshot and content hash they were computed from, for change-aware
// re-display without recompute.
type ClusterStore interface {
	SaveClusters(ctx context.Context, budgetID, listHash string, payees []model.Payee, clusters []model.PayeeMergeCluster) error
	GetClusters(ctx context.Context, budgetID string) ([]model.PayeeMergeCluster, string, error)
	GetClusterSnapshot(ctx context.Context, budgetID string) ([]model.Payee, string, error)
	InvalidateClusters(ctx context.Context, budgetID string) error
}

// Storage aggregates the persistence contracts plus lifecycle management.
type Storage interface {
	MatchCache
	CategoryCache
	SuggestionStore
	ClusterStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
