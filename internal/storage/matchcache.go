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

// FindMatch looks up the canonical identity for a raw payee name. The name is
// normalized internally; a hit increments the entry's hit count. Returns nil
// without error on a miss.
func (s *SQLiteStorage) FindMatch(ctx context.Context, budgetID, payeeName string) (*model.MatchCacheEntry, error) {
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

	entry, err := s.findMatchRow(ctx, s.db, budgetID, normalized)
	if err != nil || entry == nil {
		return entry, err
	}

	if err := s.bumpHitCount(ctx, "match_cache", "raw_payee_name", budgetID, normalized); err != nil {
		return nil, err
	}
	entry.HitCount++
	return entry, nil
}

// FindMatches performs a batched lookup, keyed by normalized raw payee name
// in the result map. Misses are absent, not nil entries.
func (s *SQLiteStorage) FindMatches(ctx context.Context, budgetID string, payeeNames []string) (map[string]model.MatchCacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	results := make(map[string]model.MatchCacheEntry, len(payeeNames))
	for _, name := range payeeNames {
		entry, err := s.FindMatch(ctx, budgetID, name)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			results[entry.RawPayeeName] = *entry
		}
	}
	return results, nil
}

// SaveMatch upserts a match cache entry keyed by (budget, normalized raw
// payee). The upsert resets neither confidence nor source of an existing row;
// it replaces them.
func (s *SQLiteStorage) SaveMatch(ctx context.Context, entry *model.MatchCacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveMatchRow(ctx, s.db, entry)
}

// SaveMatchBatch upserts entries in a single transaction.
func (s *SQLiteStorage) SaveMatchBatch(ctx context.Context, entries []model.MatchCacheEntry) error {
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
		if err := s.saveMatchRow(ctx, tx, &entries[i]); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match batch: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) findMatchRow(ctx context.Context, q queryable, budgetID, normalized string) (*model.MatchCacheEntry, error) {
	var entry model.MatchCacheEntry
	var canonicalID sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT budget_id, raw_payee_name, canonical_id, canonical_name, source, confidence, hit_count, last_updated
		FROM match_cache
		WHERE budget_id = ? AND raw_payee_name = ?`,
		budgetID, normalized,
	).Scan(&entry.BudgetID, &entry.RawPayeeName, &canonicalID, &entry.CanonicalName,
		&entry.Source, &entry.Confidence, &entry.HitCount, &entry.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match cache: %w", err)
	}

	entry.CanonicalID = canonicalID.String
	return &entry, nil
}

func (s *SQLiteStorage) saveMatchRow(ctx context.Context, q queryable, entry *model.MatchCacheEntry) error {
	if err := validateMatchEntry(entry); err != nil {
		return err
	}

	normalized := match.Normalize(entry.RawPayeeName)
	lastUpdated := entry.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO match_cache (budget_id, raw_payee_name, canonical_id, canonical_name, source, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(budget_id, raw_payee_name) DO UPDATE SET
			canonical_id = excluded.canonical_id,
			canonical_name = excluded.canonical_name,
			source = excluded.source,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated`,
		entry.BudgetID, normalized, entry.CanonicalID, entry.CanonicalName,
		string(entry.Source), entry.Confidence, lastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save match cache entry: %w", err)
	}
	return nil
}

// bumpHitCount increments the hit counter of a cache row by exactly one.
func (s *SQLiteStorage) bumpHitCount(ctx context.Context, table, keyColumn, budgetID, normalized string) error {
	query := fmt.Sprintf("UPDATE %s SET hit_count = hit_count + 1 WHERE budget_id = ? AND %s = ?", table, keyColumn)
	if _, err := s.db.ExecContext(ctx, query, budgetID, normalized); err != nil {
		return fmt.Errorf("failed to increment hit count: %w", err)
	}
	return nil
}
