package engine

import (
	"context"
	"fmt"

	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// memStorage is an in-memory service.Storage for engine tests.
type memStorage struct {
	matches     map[string]model.MatchCacheEntry
	categories  map[string]model.CategoryCacheEntry
	suggestions map[string]model.Suggestion
}

func newMemStorage() *memStorage {
	return &memStorage{
		matches:     make(map[string]model.MatchCacheEntry),
		categories:  make(map[string]model.CategoryCacheEntry),
		suggestions: make(map[string]model.Suggestion),
	}
}

func cacheKey(budgetID, name string) string {
	return budgetID + "|" + match.Normalize(name)
}

func (m *memStorage) FindMatch(_ context.Context, budgetID, payeeName string) (*model.MatchCacheEntry, error) {
	entry, ok := m.matches[cacheKey(budgetID, payeeName)]
	if !ok {
		return nil, nil
	}
	entry.HitCount++
	m.matches[cacheKey(budgetID, payeeName)] = entry
	return &entry, nil
}

func (m *memStorage) FindMatches(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.MatchCacheEntry, error) {
	out := make(map[string]model.MatchCacheEntry)
	for _, name := range payeeNames {
		if entry, err := m.FindMatch(ctx, budgetID, name); err == nil && entry != nil {
			out[entry.RawPayeeName] = *entry
		}
	}
	return out, nil
}

func (m *memStorage) SaveMatch(_ context.Context, entry *model.MatchCacheEntry) error {
	m.matches[cacheKey(entry.BudgetID, entry.RawPayeeName)] = *entry
	return nil
}

func (m *memStorage) SaveMatchBatch(ctx context.Context, entries []model.MatchCacheEntry) error {
	for i := range entries {
		if err := m.SaveMatch(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStorage) FindCategory(_ context.Context, budgetID, payeeName string) (*model.CategoryCacheEntry, error) {
	entry, ok := m.categories[cacheKey(budgetID, payeeName)]
	if !ok {
		return nil, nil
	}
	entry.HitCount++
	m.categories[cacheKey(budgetID, payeeName)] = entry
	return &entry, nil
}

func (m *memStorage) FindCategories(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.CategoryCacheEntry, error) {
	out := make(map[string]model.CategoryCacheEntry)
	for _, name := range payeeNames {
		if entry, err := m.FindCategory(ctx, budgetID, name); err == nil && entry != nil {
			out[entry.PayeeName] = *entry
		}
	}
	return out, nil
}

func (m *memStorage) SaveCategory(_ context.Context, entry *model.CategoryCacheEntry) error {
	m.categories[cacheKey(entry.BudgetID, entry.PayeeName)] = *entry
	return nil
}

func (m *memStorage) SaveCategoryBatch(ctx context.Context, entries []model.CategoryCacheEntry) error {
	for i := range entries {
		if err := m.SaveCategory(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStorage) SaveSuggestion(_ context.Context, s *model.Suggestion) error {
	m.suggestions[s.ID] = *s
	return nil
}

func (m *memStorage) SaveSuggestions(ctx context.Context, suggestions []model.Suggestion) error {
	for i := range suggestions {
		if err := m.SaveSuggestion(ctx, &suggestions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStorage) GetSuggestion(_ context.Context, id string) (*model.Suggestion, error) {
	s, ok := m.suggestions[id]
	if !ok {
		return nil, fmt.Errorf("suggestion %s not found", id)
	}
	return &s, nil
}

func (m *memStorage) GetSuggestionsByBudget(_ context.Context, budgetID string) ([]model.Suggestion, error) {
	var out []model.Suggestion
	for _, s := range m.suggestions {
		if s.BudgetID == budgetID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStorage) DeleteSuggestions(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(m.suggestions, id)
	}
	return nil
}

func (m *memStorage) UpdateSuggestion(_ context.Context, s *model.Suggestion) error {
	if _, ok := m.suggestions[s.ID]; !ok {
		return fmt.Errorf("suggestion %s not found", s.ID)
	}
	m.suggestions[s.ID] = *s
	return nil
}

func (m *memStorage) SaveClusters(_ context.Context, _, _ string, _ []model.Payee, _ []model.PayeeMergeCluster) error {
	return nil
}

func (m *memStorage) GetClusters(_ context.Context, _ string) ([]model.PayeeMergeCluster, string, error) {
	return nil, "", nil
}

func (m *memStorage) GetClusterSnapshot(_ context.Context, _ string) ([]model.Payee, string, error) {
	return nil, "", nil
}

func (m *memStorage) InvalidateClusters(_ context.Context, _ string) error {
	return nil
}

func (m *memStorage) Migrate(_ context.Context) error { return nil }

func (m *memStorage) Close() error { return nil }
