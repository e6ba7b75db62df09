package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// ApproveSuggestion marks both sub-records approved and writes user-approved
// cache entries so subsequent runs short-circuit at the cache steps. Already
// resolved sub-records (skipped, applied) are left alone.
func (r *Resolver) ApproveSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	suggestion, err := r.storage.GetSuggestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}

	if suggestion.Payee.Status == model.StatusPending {
		suggestion.Payee.Status = model.StatusApproved
	}
	if suggestion.Category.Status == model.StatusPending {
		suggestion.Category.Status = model.StatusApproved
	}

	if err := r.writeUserApprovedCache(ctx, suggestion); err != nil {
		return nil, err
	}

	if err := r.storage.UpdateSuggestion(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}

	r.logger.Info("suggestion approved",
		"suggestion_id", id,
		"payee", suggestion.Payee.ProposedName,
		"category", suggestion.Category.ProposedName)

	return suggestion, nil
}

// RejectSuggestion marks both sub-records rejected. A correction, when
// provided, is recorded and written to the caches as a user-approved entry.
func (r *Resolver) RejectSuggestion(ctx context.Context, id string, correction *model.Correction) (*model.Suggestion, error) {
	suggestion, err := r.storage.GetSuggestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}

	suggestion.Payee.Status = model.StatusRejected
	suggestion.Category.Status = model.StatusRejected
	suggestion.Correction = correction

	if correction != nil {
		if err := r.writeCorrectionCache(ctx, suggestion, correction); err != nil {
			return nil, err
		}
	}

	if err := r.storage.UpdateSuggestion(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}

	r.logger.Info("suggestion rejected", "suggestion_id", id, "corrected", correction != nil)

	return suggestion, nil
}

// ResetSuggestion returns both sub-records to pending and clears any
// correction. Applied suggestions are immutable.
func (r *Resolver) ResetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	suggestion, err := r.storage.GetSuggestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}

	if suggestion.CombinedStatus() == model.StatusApplied {
		return nil, fmt.Errorf("suggestion %s is applied and cannot be reset", id)
	}

	suggestion.Payee.Status = model.StatusPending
	suggestion.Category.Status = model.StatusPending
	suggestion.Correction = nil

	if err := r.storage.UpdateSuggestion(ctx, suggestion); err != nil {
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}

	r.logger.Info("suggestion reset", "suggestion_id", id)

	return suggestion, nil
}

// writeUserApprovedCache persists an approved suggestion's mappings at full
// confidence.
func (r *Resolver) writeUserApprovedCache(ctx context.Context, s *model.Suggestion) error {
	if s.Payee.ProposedName != "" {
		entry := &model.MatchCacheEntry{
			BudgetID:      s.BudgetID,
			RawPayeeName:  match.Normalize(s.RawPayeeName),
			CanonicalID:   s.Payee.ProposedID,
			CanonicalName: s.Payee.ProposedName,
			Source:        model.SourceUserApproved,
			Confidence:    1.0,
			LastUpdated:   time.Now(),
		}
		if err := r.storage.SaveMatch(ctx, entry); err != nil {
			return fmt.Errorf("failed to save approved match entry: %w", err)
		}
	}

	if s.Category.ProposedID != "" {
		canonical := s.Payee.ProposedName
		if canonical == "" {
			canonical = s.RawPayeeName
		}
		entry := &model.CategoryCacheEntry{
			BudgetID:     s.BudgetID,
			PayeeName:    match.Normalize(canonical),
			CategoryID:   s.Category.ProposedID,
			CategoryName: s.Category.ProposedName,
			Source:       model.SourceUserApproved,
			Confidence:   1.0,
			LastUpdated:  time.Now(),
		}
		if err := r.storage.SaveCategory(ctx, entry); err != nil {
			return fmt.Errorf("failed to save approved category entry: %w", err)
		}
	}

	return nil
}

// writeCorrectionCache persists the user's override as the authoritative
// mapping for this raw payee.
func (r *Resolver) writeCorrectionCache(ctx context.Context, s *model.Suggestion, c *model.Correction) error {
	if c.PayeeName != "" {
		entry := &model.MatchCacheEntry{
			BudgetID:      s.BudgetID,
			RawPayeeName:  match.Normalize(s.RawPayeeName),
			CanonicalID:   c.PayeeID,
			CanonicalName: c.PayeeName,
			Source:        model.SourceUserApproved,
			Confidence:    1.0,
			LastUpdated:   time.Now(),
		}
		if err := r.storage.SaveMatch(ctx, entry); err != nil {
			return fmt.Errorf("failed to save corrected match entry: %w", err)
		}
	}

	if c.CategoryID != "" {
		canonical := c.PayeeName
		if canonical == "" {
			canonical = s.RawPayeeName
		}
		entry := &model.CategoryCacheEntry{
			BudgetID:     s.BudgetID,
			PayeeName:    match.Normalize(canonical),
			CategoryID:   c.CategoryID,
			CategoryName: c.CategoryName,
			Source:       model.SourceUserApproved,
			Confidence:   1.0,
			LastUpdated:  time.Now(),
		}
		if err := r.storage.SaveCategory(ctx, entry); err != nil {
			return fmt.Errorf("failed to save corrected category entry: %w", err)
		}
	}

	return nil
}
