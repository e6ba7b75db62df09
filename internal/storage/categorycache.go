package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// FindCategory looks up the usual category for a canonical payee name. The
// name is normalized internally; a hit increments the entry's hit count.
// Returns nil without error on a miss.
func (s *SQLiteStorage) FindCategory(ctx context.Context, budgetID, payeeName string) (*model.CategoryCacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	normalized := match.Normalize(payeeName)
	if normalized == "" {
		return nil, nil
	}

	entry, err := s.findCategoryRow(ctx, s.db, budgetID, normalized)
	if err != nil || entry == nil {
		return entry, err
	}

	if err := s.bumpHitCount(ctx, "category_cache", "payee_name", budgetID, normalized); err != nil {
		return nil, err
	}
	entry.HitCount++
	return entry, nil
}

// FindCategories performs a batched lookup, keyed by normalized payee name in
// the result map.
func (s *SQLiteStorage) FindCategories(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.CategoryCacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	results := make(map[string]model.CategoryCacheEntry, len(payeeNames))
	for _, name := range payeeNames {
		entry, err := s.FindCategory(ctx, budgetID, name)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			results[entry.PayeeName] = *entry
		}
	}
	return results, nil
}

// SaveCategory upserts a category cache entry keyed by (budget, normalized
// payee name).
func (s *SQLiteStorage) SaveCategory(ctx context.Context, entry *model.CategoryCacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveCategoryRow(ctx, s.db, entry)
}

// SaveCategoryBatch upserts entries in a single transaction.
func (s *SQLiteStorage) SaveCategoryBatch(ctx context.Context, entries []model.CategoryCacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range entries {
		if err := s.saveCategoryRow(ctx, tx, &entries[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category batch: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) findCategoryRow(ctx context.Context, q queryable, budgetID, normalized string) (*model.CategoryCacheEntry, error) {
	var entry model.CategoryCacheEntry

	err := q.QueryRowContext(ctx, `
		SELECT budget_id, payee_name, category_id, category_name, source, confidence, hit_count, last_updated
		FROM category_cache
		WHERE budget_id = ? AND payee_name = ?`,
		budgetID, normalized,
	).Scan(&entry.BudgetID, &entry.PayeeName, &entry.CategoryID, &entry.CategoryName,
		&entry.Source, &entry.Confidence, &entry.HitCount, &entry.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category cache: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStorage) saveCategoryRow(ctx context.Context, q queryable, entry *model.CategoryCacheEntry) error {
	if err := validateCategoryEntry(entry); err != nil {
		return err
	}

	normalized := match.Normalize(entry.PayeeName)
	lastUpdated := entry.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO category_cache (budget_id, payee_name, category_id, category_name, source, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(budget_id, payee_name) DO UPDATE SET
			category_id = excluded.category_id,
			category_name = excluded.category_name,
			source = excluded.source,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated`,
		entry.BudgetID, normalized, entry.CategoryID, entry.CategoryName,
		string(entry.Source), entry.Confidence, lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save category cache entry: %w", err)
	}
	return nil
}
