package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerleaf/payeewise/internal/model"
)

func seedSuggestion(t *testing.T, storage *memStorage) *model.Suggestion {
	t.Helper()
	s := &model.Suggestion{
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
	require.NoError(t, storage.SaveSuggestion(context.Background(), s))
	return s
}

func TestApproveSuggestion(t *testing.T) {
	storage := newMemStorage()
	seedSuggestion(t, storage)
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	approved, err := resolver.ApproveSuggestion(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Payee.Status)
	assert.Equal(t, model.StatusApproved, approved.Category.Status)
	assert.Equal(t, model.StatusApproved, approved.CombinedStatus())

	// Approval becomes the authoritative cache entry for the next run.
	entry, err := storage.FindMatch(context.Background(), "b1", "sq starbucks 4521")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, model.SourceUserApproved, entry.Source)
	assert.InDelta(t, 1.0, entry.Confidence, 0.001)

	cat, err := storage.FindCategory(context.Background(), "b1", "starbucks")
	require.NoError(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, "cat-coffee", cat.CategoryID)
}

func TestApproveSuggestionKeepsSkippedPayee(t *testing.T) {
	storage := newMemStorage()
	s := seedSuggestion(t, storage)
	s.Payee.Status = model.StatusSkipped
	require.NoError(t, storage.UpdateSuggestion(context.Background(), s))
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	approved, err := resolver.ApproveSuggestion(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, approved.Payee.Status)
	assert.Equal(t, model.StatusApproved, approved.CombinedStatus())
}

func TestRejectSuggestionWithCorrection(t *testing.T) {
	storage := newMemStorage()
	seedSuggestion(t, storage)
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	correction := &model.Correction{
		PayeeID:      "p-peets",
		PayeeName:    "Peets Coffee",
		CategoryID:   "cat-coffee",
		CategoryName: "Coffee Shops",
	}
	rejected, err := resolver.RejectSuggestion(context.Background(), "s1", correction)

	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.CombinedStatus())
	require.NotNil(t, rejected.Correction)

	// The override, not the rejected proposal, goes into the cache.
	entry, err := storage.FindMatch(context.Background(), "b1", "sq starbucks 4521")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Peets Coffee", entry.CanonicalName)
	assert.Equal(t, model.SourceUserApproved, entry.Source)
}

func TestRejectSuggestionWithoutCorrection(t *testing.T) {
	storage := newMemStorage()
	seedSuggestion(t, storage)
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	rejected, err := resolver.RejectSuggestion(context.Background(), "s1", nil)

	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.CombinedStatus())

	entry, err := storage.FindMatch(context.Background(), "b1", "sq starbucks 4521")
	require.NoError(t, err)
	assert.Nil(t, entry, "plain rejection writes nothing to the cache")
}

func TestResetSuggestion(t *testing.T) {
	storage := newMemStorage()
	seedSuggestion(t, storage)
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	_, err := resolver.RejectSuggestion(context.Background(), "s1", &model.Correction{PayeeName: "Peets Coffee"})
	require.NoError(t, err)

	reset, err := resolver.ResetSuggestion(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, reset.Payee.Status)
	assert.Equal(t, model.StatusPending, reset.Category.Status)
	assert.Nil(t, reset.Correction)
}

func TestResetAppliedSuggestionFails(t *testing.T) {
	storage := newMemStorage()
	s := seedSuggestion(t, storage)
	s.Payee.Status = model.StatusApplied
	s.Category.Status = model.StatusApplied
	require.NoError(t, storage.UpdateSuggestion(context.Background(), s))
	resolver := newTestResolver(storage, &stubProvider{}, nil)

	_, err := resolver.ResetSuggestion(context.Background(), "s1")

	assert.Error(t, err)
}
