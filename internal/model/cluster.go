package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ClusterPayee is one member of a merge-candidate cluster.
type ClusterPayee struct {
	ID             string
	Name           string
	NormalizedName string
	TokenSet       string
}

// PayeeMergeCluster is a group of payees believed to refer to the same
// real-world merchant. Invariant: at least two members, and every payee id
// belongs to at most one cluster.
type PayeeMergeCluster struct {
	CreatedAt time.Time
	ClusterID string
	GroupHash string
	BudgetID  string
	Payees    []ClusterPayee
}

// NewPayeeMergeCluster builds a cluster with its deterministic identity.
// Members are sorted by id so the same set of payees always produces the same
// ClusterID and GroupHash regardless of input order.
func NewPayeeMergeCluster(budgetID string, payees []ClusterPayee) PayeeMergeCluster {
	sorted := make([]ClusterPayee, len(payees))
	copy(sorted, payees)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ids := make([]string, len(sorted))
	pairs := make([]string, len(sorted))
	for i, p := range sorted {
		ids[i] = p.ID
		pairs[i] = p.ID + ":" + p.Name
	}

	hash := sha256.Sum256([]byte(strings.Join(pairs, "|")))

	return PayeeMergeCluster{
		ClusterID: strings.Join(ids, "-"),
		GroupHash: fmt.Sprintf("%x", hash),
		BudgetID:  budgetID,
		Payees:    sorted,
		CreatedAt: time.Now(),
	}
}

// Validate ensures the cluster honors the partition invariants.
func (c *PayeeMergeCluster) Validate() error {
	if len(c.Payees) < 2 {
		return fmt.Errorf("cluster must have at least 2 members, got %d", len(c.Payees))
	}
	seen := make(map[string]bool, len(c.Payees))
	for _, p := range c.Payees {
		if p.ID == "" {
			return fmt.Errorf("cluster member has empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate payee id %q in cluster", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// PayeeListHash is a content hash of the full (id, name) payee list, used to
// detect staleness of cached clusters between runs.
func PayeeListHash(payees []Payee) string {
	pairs := make([]string, len(payees))
	for i, p := range payees {
		pairs[i] = p.ID + ":" + p.Name
	}
	sort.Strings(pairs)
	hash := sha256.Sum256([]byte(strings.Join(pairs, "|")))
	return fmt.Sprintf("%x", hash)
}

// ClusterCacheStatus describes whether stored clusters still match the
// current payee list.
type ClusterCacheStatus struct {
	StalePayeeIDs []string
	Stale         bool
}
