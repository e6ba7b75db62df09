package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// clusterMember is the JSON shape of one entry in a cluster's payee column.
type clusterMember struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName,omitempty"`
	TokenSet       string `json:"tokenSet,omitempty"`
}

// snapshotPayee is the JSON shape of the snapshot's payee list column.
type snapshotPayee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SaveClusters atomically replaces the budget's stored clusters and the payee
// list snapshot they were computed from.
func (s *SQLiteStorage) SaveClusters(ctx context.Context, budgetID, listHash string, payees []model.Payee, clusters []model.PayeeMergeCluster) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return err
	}
	if err := validateString(listHash, "listHash"); err != nil {
		return err
	}

	snapshot := make([]snapshotPayee, len(payees))
	for i, p := range payees {
		snapshot[i] = snapshotPayee{ID: p.ID, Name: p.Name}
	}
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal payee snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payee_clusters WHERE budget_id = ?", budgetID); err != nil {
		return fmt.Errorf("failed to clear old clusters: %w", err)
	}

	for i := range clusters {
		c := &clusters[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("cluster %s: %w", c.ClusterID, err)
		}

		members := make([]clusterMember, len(c.Payees))
		for j, p := range c.Payees {
			members[j] = clusterMember{
				ID:             p.ID,
				Name:           p.Name,
				NormalizedName: p.NormalizedName,
				TokenSet:       p.TokenSet,
			}
		}
		membersJSON, err := json.Marshal(members)
		if err != nil {
			return fmt.Errorf("failed to marshal cluster members: %w", err)
		}

		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payee_clusters (cluster_id, budget_id, group_hash, member_count, payees, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ClusterID, budgetID, c.GroupHash, len(c.Payees), string(membersJSON), createdAt); err != nil {
			return fmt.Errorf("failed to save cluster %s: %w", c.ClusterID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cluster_snapshots (budget_id, list_hash, payees, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(budget_id) DO UPDATE SET
			list_hash = excluded.list_hash,
			payees = excluded.payees,
			created_at = excluded.created_at`,
		budgetID, listHash, string(snapshotJSON), time.Now()); err != nil {
		return fmt.Errorf("failed to save cluster snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clusters: %w", err)
	}
	return nil
}

// GetClusters loads the stored clusters for a budget, largest first, together
// with the payee list hash they were computed from. An empty hash means
// nothing is stored.
func (s *SQLiteStorage) GetClusters(ctx context.Context, budgetID string) ([]model.PayeeMergeCluster, string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, "", err
	}

	listHash, _, err := s.loadSnapshotRow(ctx, budgetID)
	if err != nil {
		return nil, "", err
	}
	if listHash == "" {
		return nil, "", nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, group_hash, payees, created_at
		FROM payee_clusters
		WHERE budget_id = ?
		ORDER BY member_count DESC, cluster_id`, budgetID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clusters []model.PayeeMergeCluster
	for rows.Next() {
		var c model.PayeeMergeCluster
		var membersJSON string
		if err := rows.Scan(&c.ClusterID, &c.GroupHash, &membersJSON, &c.CreatedAt); err != nil {
			return nil, "", fmt.Errorf("failed to scan cluster: %w", err)
		}

		var members []clusterMember
		if err := json.Unmarshal([]byte(membersJSON), &members); err != nil {
			return nil, "", fmt.Errorf("failed to unmarshal cluster members: %w", err)
		}
		c.BudgetID = budgetID
		c.Payees = make([]model.ClusterPayee, len(members))
		for i, m := range members {
			c.Payees[i] = model.ClusterPayee{
				ID:             m.ID,
				Name:           m.Name,
				NormalizedName: m.NormalizedName,
				TokenSet:       m.TokenSet,
			}
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to iterate clusters: %w", err)
	}

	return clusters, listHash, nil
}

// GetClusterSnapshot loads the payee list the stored clusters were computed
// from, with its content hash.
func (s *SQLiteStorage) GetClusterSnapshot(ctx context.Context, budgetID string) ([]model.Payee, string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, "", err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, "", err
	}

	listHash, payeesJSON, err := s.loadSnapshotRow(ctx, budgetID)
	if err != nil || listHash == "" {
		return nil, "", err
	}

	var snapshot []snapshotPayee
	if err := json.Unmarshal([]byte(payeesJSON), &snapshot); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal payee snapshot: %w", err)
	}

	payees := make([]model.Payee, len(snapshot))
	for i, p := range snapshot {
		payees[i] = model.Payee{ID: p.ID, Name: p.Name}
	}
	return payees, listHash, nil
}

// InvalidateClusters drops the budget's stored clusters and snapshot.
func (s *SQLiteStorage) InvalidateClusters(ctx context.Context, budgetID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payee_clusters WHERE budget_id = ?", budgetID); err != nil {
		return fmt.Errorf("failed to delete clusters: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cluster_snapshots WHERE budget_id = ?", budgetID); err != nil {
		return fmt.Errorf("failed to delete cluster snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invalidation: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) loadSnapshotRow(ctx context.Context, budgetID string) (string, string, error) {
	var listHash, payeesJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT list_hash, payees FROM cluster_snapshots WHERE budget_id = ?", budgetID,
	).Scan(&listHash, &payeesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to query cluster snapshot: %w", err)
	}
	return listHash, payeesJSON, nil
}
