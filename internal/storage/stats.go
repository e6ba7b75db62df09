package storage

import (
	"context"
	"fmt"
)

// CacheStats summarizes the cache tables for one budget.
type CacheStats struct {
	MatchBySource    map[string]int
	CategoryBySource map[string]int
	MatchEntries     int
	MatchHits        int
	CategoryEntries  int
	CategoryHits     int
}

// GetCacheStats returns entry and hit counts for both caches, broken down by
// provenance source.
func (s *SQLiteStorage) GetCacheStats(ctx context.Context, budgetID string) (*CacheStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budget ID"); err != nil {
		return nil, err
	}

	stats := &CacheStats{
		MatchBySource:    make(map[string]int),
		CategoryBySource: make(map[string]int),
	}

	matchEntries, matchHits, err := s.cacheTotals(ctx, "match_cache", budgetID, stats.MatchBySource)
	if err != nil {
		return nil, fmt.Errorf("failed to read match cache stats: %w", err)
	}
	stats.MatchEntries = matchEntries
	stats.MatchHits = matchHits

	categoryEntries, categoryHits, err := s.cacheTotals(ctx, "category_cache", budgetID, stats.CategoryBySource)
	if err != nil {
		return nil, fmt.Errorf("failed to read category cache stats: %w", err)
	}
	stats.CategoryEntries = categoryEntries
	stats.CategoryHits = categoryHits

	return stats, nil
}

func (s *SQLiteStorage) cacheTotals(ctx context.Context, table, budgetID string, bySource map[string]int) (entries, hits int, err error) {
	query := fmt.Sprintf(`
		SELECT source, COUNT(*), COALESCE(SUM(hit_count), 0)
		FROM %s
		WHERE budget_id = ?
		GROUP BY source`, table)

	rows, err := s.db.QueryContext(ctx, query, budgetID)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var source string
		var count, hitSum int
		if scanErr := rows.Scan(&source, &count, &hitSum); scanErr != nil {
			return 0, 0, scanErr
		}
		bySource[source] = count
		entries += count
		hits += hitSum
	}
	return entries, hits, rows.Err()
}

// ClearCaches removes all match and category cache entries for a budget.
// Suggestions and clusters are untouched.
func (s *SQLiteStorage) ClearCaches(ctx context.Context, budgetID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(budgetID, "budget ID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"match_cache", "category_cache"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE budget_id = ?", table)
		if _, execErr := tx.ExecContext(ctx, query, budgetID); execErr != nil {
			return fmt.Errorf("failed to clear %s: %w", table, execErr)
		}
	}

	return tx.Commit()
}
