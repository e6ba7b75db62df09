package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS match_cache (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					budget_id TEXT NOT NULL,
					raw_payee_name TEXT NOT NULL,
					canonical_id TEXT,
					canonical_name TEXT NOT NULL,
					source TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					hit_count INTEGER NOT NULL DEFAULT 0,
					last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(budget_id, raw_payee_name)
				)`,

				`CREATE TABLE IF NOT EXISTS category_cache (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					budget_id TEXT NOT NULL,
					payee_name TEXT NOT NULL,
					category_id TEXT NOT NULL,
					category_name TEXT NOT NULL,
					source TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					hit_count INTEGER NOT NULL DEFAULT 0,
					last_updated DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(budget_id, payee_name)
				)`,

				`CREATE TABLE IF NOT EXISTS suggestions (
					id TEXT PRIMARY KEY,
					budget_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					raw_payee_name TEXT NOT NULL,
					payee_proposed_id TEXT,
					payee_proposed_name TEXT,
					payee_confidence REAL NOT NULL DEFAULT 0,
					payee_rationale TEXT,
					payee_status TEXT NOT NULL,
					category_proposed_id TEXT,
					category_proposed_name TEXT,
					category_confidence REAL NOT NULL DEFAULT 0,
					category_rationale TEXT,
					category_status TEXT NOT NULL,
					correction_payee_id TEXT,
					correction_payee_name TEXT,
					correction_category_id TEXT,
					correction_category_name TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_suggestions_budget ON suggestions(budget_id)`,
				`CREATE INDEX idx_suggestions_transaction ON suggestions(transaction_id)`,

				`CREATE TABLE IF NOT EXISTS payee_clusters (
					cluster_id TEXT NOT NULL,
					budget_id TEXT NOT NULL,
					group_hash TEXT NOT NULL,
					member_count INTEGER NOT NULL,
					payees TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (budget_id, cluster_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Cluster snapshots for staleness detection",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS cluster_snapshots (
					budget_id TEXT PRIMARY KEY,
					list_hash TEXT NOT NULL,
					payees TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// Migrate applies pending migrations and verifies the final schema version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
