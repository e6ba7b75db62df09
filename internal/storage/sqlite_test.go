package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/model"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	storage, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func TestMigrateIsIdempotent(t *testing.T) {
	storage := setupTestStorage(t)

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	version, err := storage.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestMatchCacheRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	entry := &model.MatchCacheEntry{
		BudgetID:      "b1",
		RawPayeeName:  "SQ *STARBUCKS #4521",
		CanonicalID:   "p-sbux",
		CanonicalName: "Starbucks",
		Source:        model.SourceUserApproved,
		Confidence:    0.95,
	}
	if err := storage.SaveMatch(ctx, entry); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	// Lookup normalizes internally; raw and normalized forms both hit.
	got, err := storage.FindMatch(ctx, "b1", "sq starbucks 4521")
	if err != nil {
		t.Fatalf("failed to find: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.CanonicalName != "Starbucks" || got.CanonicalID != "p-sbux" {
		t.Errorf("got canonical %q/%q, want Starbucks/p-sbux", got.CanonicalName, got.CanonicalID)
	}
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
	if got.Source != model.SourceUserApproved {
		t.Errorf("source = %q, want user_approved", got.Source)
	}
	if got.HitCount != 1 {
		t.Errorf("hit count after first lookup = %d, want 1", got.HitCount)
	}

	got, err = storage.FindMatch(ctx, "b1", "SQ *STARBUCKS #4521")
	if err != nil {
		t.Fatalf("failed to find: %v", err)
	}
	if got.HitCount != 2 {
		t.Errorf("hit count after second lookup = %d, want 2", got.HitCount)
	}
}

func TestMatchCacheMiss(t *testing.T) {
	storage := setupTestStorage(t)

	got, err := storage.FindMatch(context.Background(), "b1", "never seen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestMatchCacheUpsert(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	first := &model.MatchCacheEntry{
		BudgetID:      "b1",
		RawPayeeName:  "amzn mktp",
		CanonicalName: "Amazon Marketplace",
		Source:        model.SourceFuzzyMatch,
		Confidence:    0.88,
	}
	if err := storage.SaveMatch(ctx, first); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	second := &model.MatchCacheEntry{
		BudgetID:      "b1",
		RawPayeeName:  "amzn mktp",
		CanonicalID:   "p-amzn",
		CanonicalName: "Amazon",
		Source:        model.SourceUserApproved,
		Confidence:    1.0,
	}
	if err := storage.SaveMatch(ctx, second); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	got, err := storage.FindMatch(ctx, "b1", "amzn mktp")
	if err != nil {
		t.Fatalf("failed to find: %v", err)
	}
	if got.CanonicalName != "Amazon" || got.Source != model.SourceUserApproved {
		t.Errorf("upsert did not replace row: %+v", got)
	}
}

func TestMatchCacheBatch(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	entries := []model.MatchCacheEntry{
		{BudgetID: "b1", RawPayeeName: "netflix com", CanonicalName: "Netflix", Source: model.SourceHighConfidenceAI, Confidence: 0.9},
		{BudgetID: "b1", RawPayeeName: "spotify usa", CanonicalName: "Spotify", Source: model.SourceHighConfidenceAI, Confidence: 0.92},
	}
	if err := storage.SaveMatchBatch(ctx, entries); err != nil {
		t.Fatalf("failed to save batch: %v", err)
	}

	found, err := storage.FindMatches(ctx, "b1", []string{"netflix com", "spotify usa", "unknown"})
	if err != nil {
		t.Fatalf("failed to find batch: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("found %d entries, want 2", len(found))
	}
	if _, ok := found["netflix com"]; !ok {
		t.Error("missing netflix entry")
	}
}

func TestCategoryCacheRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	entry := &model.CategoryCacheEntry{
		BudgetID:     "b1",
		PayeeName:    "Starbucks",
		CategoryID:   "cat-coffee",
		CategoryName: "Coffee Shops",
		Source:       model.SourceHighConfidenceAI,
		Confidence:   0.9,
	}
	if err := storage.SaveCategory(ctx, entry); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := storage.FindCategory(ctx, "b1", "STARBUCKS")
	if err != nil {
		t.Fatalf("failed to find: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cache hit")
	}
	if got.CategoryID != "cat-coffee" || got.Confidence != 0.9 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", got.HitCount)
	}
}

func TestCategoryCacheValidation(t *testing.T) {
	storage := setupTestStorage(t)

	err := storage.SaveCategory(context.Background(), &model.CategoryCacheEntry{
		BudgetID:  "b1",
		PayeeName: "Starbucks",
		// missing category id
		Confidence: 0.9,
	})
	if err == nil {
		t.Fatal("expected validation error for missing category id")
	}
}

func TestSuggestionRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	suggestion := &model.Suggestion{
		ID:            "s1",
		BudgetID:      "b1",
		TransactionID: "t1",
		RawPayeeName:  "SQ *STARBUCKS #4521",
		Payee: model.PayeeSuggestion{
			ProposedID:   "p-sbux",
			ProposedName: "Starbucks",
			Confidence:   0.95,
			Rationale:    "verified match",
			Status:       model.StatusPending,
		},
		Category: model.CategorySuggestion{
			ProposedID:   "cat-coffee",
			ProposedName: "Coffee Shops",
			Confidence:   0.9,
			Rationale:    "usual category",
			Status:       model.StatusPending,
		},
	}
	if err := storage.SaveSuggestion(ctx, suggestion); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := storage.GetSuggestion(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if got.Payee.ProposedName != "Starbucks" || got.Category.ProposedID != "cat-coffee" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Correction != nil {
		t.Errorf("expected no correction, got %+v", got.Correction)
	}

	got.Payee.Status = model.StatusRejected
	got.Category.Status = model.StatusRejected
	got.Correction = &model.Correction{PayeeName: "Peets Coffee", CategoryID: "cat-coffee", CategoryName: "Coffee Shops"}
	if err := storage.UpdateSuggestion(ctx, got); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	updated, err := storage.GetSuggestion(ctx, "s1")
	if err != nil {
		t.Fatalf("failed to get after update: %v", err)
	}
	if updated.CombinedStatus() != model.StatusRejected {
		t.Errorf("combined status = %q, want rejected", updated.CombinedStatus())
	}
	if updated.Correction == nil || updated.Correction.PayeeName != "Peets Coffee" {
		t.Errorf("correction not persisted: %+v", updated.Correction)
	}
}

func TestSuggestionNotFound(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.GetSuggestion(context.Background(), "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = storage.UpdateSuggestion(context.Background(), &model.Suggestion{
		ID:            "missing",
		BudgetID:      "b1",
		TransactionID: "t1",
		RawPayeeName:  "x",
		Payee:         model.PayeeSuggestion{Status: model.StatusPending},
		Category:      model.CategorySuggestion{Status: model.StatusPending},
	})
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestSuggestionsByBudget(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	suggestions := []model.Suggestion{
		{
			ID: "s1", BudgetID: "b1", TransactionID: "t1", RawPayeeName: "Starbucks",
			Payee:    model.PayeeSuggestion{Status: model.StatusPending},
			Category: model.CategorySuggestion{Status: model.StatusPending},
		},
		{
			ID: "s2", BudgetID: "b1", TransactionID: "t2", RawPayeeName: "Netflix",
			Payee:    model.PayeeSuggestion{Status: model.StatusPending},
			Category: model.CategorySuggestion{Status: model.StatusPending},
		},
		{
			ID: "s3", BudgetID: "b2", TransactionID: "t3", RawPayeeName: "Spotify",
			Payee:    model.PayeeSuggestion{Status: model.StatusPending},
			Category: model.CategorySuggestion{Status: model.StatusPending},
		},
	}
	if err := storage.SaveSuggestions(ctx, suggestions); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	got, err := storage.GetSuggestionsByBudget(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d suggestions for b1, want 2", len(got))
	}
}

func TestDeleteSuggestions(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	suggestions := []model.Suggestion{
		{
			ID: "s1", BudgetID: "b1", TransactionID: "t1", RawPayeeName: "Starbucks",
			Payee:    model.PayeeSuggestion{Status: model.StatusPending},
			Category: model.CategorySuggestion{Status: model.StatusPending},
		},
		{
			ID: "s2", BudgetID: "b1", TransactionID: "t2", RawPayeeName: "Netflix",
			Payee:    model.PayeeSuggestion{Status: model.StatusPending},
			Category: model.CategorySuggestion{Status: model.StatusPending},
		},
	}
	if err := storage.SaveSuggestions(ctx, suggestions); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	if err := storage.DeleteSuggestions(ctx, []string{"s1", "s-unknown"}); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	got, err := storage.GetSuggestionsByBudget(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s2" {
		t.Errorf("got %+v, want only s2 remaining", got)
	}

	if err := storage.DeleteSuggestions(ctx, nil); err != nil {
		t.Errorf("deleting nothing should be a no-op, got %v", err)
	}
}

func TestClusterRoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	payees := []model.Payee{
		{ID: "p1", Name: "Starbucks"},
		{ID: "p2", Name: "STARBUCKS"},
		{ID: "p3", Name: "starbucks."},
		{ID: "p4", Name: "Shell"},
		{ID: "p5", Name: "SHELL"},
	}
	clusters := []model.PayeeMergeCluster{
		model.NewPayeeMergeCluster("b1", []model.ClusterPayee{
			{ID: "p1", Name: "Starbucks", NormalizedName: "starbucks", TokenSet: "starbucks"},
			{ID: "p2", Name: "STARBUCKS", NormalizedName: "starbucks", TokenSet: "starbucks"},
			{ID: "p3", Name: "starbucks.", NormalizedName: "starbucks", TokenSet: "starbucks"},
		}),
		model.NewPayeeMergeCluster("b1", []model.ClusterPayee{
			{ID: "p4", Name: "Shell", NormalizedName: "shell", TokenSet: "shell"},
			{ID: "p5", Name: "SHELL", NormalizedName: "shell", TokenSet: "shell"},
		}),
	}

	if err := storage.SaveClusters(ctx, "b1", "hash-1", payees, clusters); err != nil {
		t.Fatalf("failed to save clusters: %v", err)
	}

	got, hash, err := storage.GetClusters(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get clusters: %v", err)
	}
	if hash != "hash-1" {
		t.Errorf("list hash = %q, want hash-1", hash)
	}
	if len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
	if len(got[0].Payees) != 3 {
		t.Errorf("clusters not ordered by size: first has %d members", len(got[0].Payees))
	}
	if got[0].ClusterID != "p1-p2-p3" {
		t.Errorf("cluster id = %q, want p1-p2-p3", got[0].ClusterID)
	}
	if got[0].GroupHash != clusters[0].GroupHash {
		t.Errorf("group hash not preserved")
	}

	snapshot, snapHash, err := storage.GetClusterSnapshot(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if snapHash != "hash-1" || len(snapshot) != 5 {
		t.Errorf("snapshot = %d payees hash %q, want 5 payees hash-1", len(snapshot), snapHash)
	}

	if err := storage.InvalidateClusters(ctx, "b1"); err != nil {
		t.Fatalf("failed to invalidate: %v", err)
	}
	_, hash, err = storage.GetClusters(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get after invalidate: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash after invalidation, got %q", hash)
	}
}

func TestSaveClustersReplacesPrevious(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	payees := []model.Payee{{ID: "p1", Name: "Shell"}, {ID: "p2", Name: "SHELL"}}
	first := []model.PayeeMergeCluster{
		model.NewPayeeMergeCluster("b1", []model.ClusterPayee{
			{ID: "p1", Name: "Shell"}, {ID: "p2", Name: "SHELL"},
		}),
	}
	if err := storage.SaveClusters(ctx, "b1", "hash-1", payees, first); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := storage.SaveClusters(ctx, "b1", "hash-2", payees, nil); err != nil {
		t.Fatalf("failed to save second run: %v", err)
	}

	got, hash, err := storage.GetClusters(ctx, "b1")
	if err != nil {
		t.Fatalf("failed to get: %v", err)
	}
	if hash != "hash-2" {
		t.Errorf("hash = %q, want hash-2", hash)
	}
	if len(got) != 0 {
		t.Errorf("expected old clusters replaced, got %d", len(got))
	}
}
