// Package engine implements the payee and category resolution waterfall.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/llm"
	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
	"github.com/ledgerleaf/payeewise/internal/service"
)

// CacheWriteThreshold is the minimum confidence at which a fuzzy or oracle
// result is written back into the caches.
const CacheWriteThreshold = 0.85

// Resolver turns raw bank payee strings into canonical identities and budget
// categories, trying the cheapest strategy first and escalating to the oracle
// only when deterministic matching cannot decide.
type Resolver struct {
	storage service.Storage
	budget  service.BudgetProvider
	ranker  *match.Ranker
	oracle  llm.Client
	logger  *slog.Logger

	// Progress, when set, is called after each unique payee with the number
	// processed so far and the total to process.
	Progress func(done, total int)
}

// NewResolver creates a resolver. The oracle may be nil; oracle-backed runs
// then fail fast.
func NewResolver(storage service.Storage, budget service.BudgetProvider, ranker *match.Ranker, oracle llm.Client, logger *slog.Logger) *Resolver {
	return &Resolver{
		storage: storage,
		budget:  budget,
		ranker:  ranker,
		oracle:  oracle,
		logger:  logger,
	}
}

// resolution is the outcome of the waterfall for one unique raw payee. Every
// transaction sharing that payee receives a suggestion built from it.
type resolution struct {
	payee    model.PayeeSuggestion
	category model.CategorySuggestion

	// cachedPayee and cachedCategory mark sub-results served from the
	// caches, which must not be written back.
	cachedPayee    bool
	cachedCategory bool

	// source records how the result was produced, for cache write-back.
	// Empty means high-confidence oracle output.
	source model.CacheSource
}

// ResolveSuggestions runs the waterfall over the uncategorized transactions
// and returns one suggestion per transaction. Unique payees are processed
// strictly sequentially; a single payee's failure degrades to a retryable
// placeholder instead of aborting the batch.
func (r *Resolver) ResolveSuggestions(ctx context.Context, budgetID string, uncategorized []model.Transaction, categories []model.Category, useOracle bool) ([]model.Suggestion, error) {
	if useOracle && r.oracle == nil {
		return nil, common.ErrOracleNotConfigured
	}
	if len(uncategorized) == 0 {
		return nil, common.ErrNoTransactions
	}

	groups := groupByPayee(uncategorized)

	resolved, retryable, err := r.resolvedPayees(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	// Payees being re-attempted carry stale retryable rows from the prior
	// pass; those are superseded by this pass's suggestions.
	var payees, staleIDs []string
	for _, rawPayee := range sortedKeys(groups) {
		normalized := match.Normalize(rawPayee)
		if resolved[normalized] {
			continue
		}
		payees = append(payees, rawPayee)
		staleIDs = append(staleIDs, retryable[normalized]...)
	}

	candidates, err := r.loadCandidates(ctx, budgetID)
	if err != nil {
		return nil, err
	}

	r.logger.Info("starting resolution",
		"budget_id", budgetID,
		"transaction_count", len(uncategorized),
		"unique_payees", len(payees),
		"already_resolved", len(resolved),
		"candidate_count", len(candidates),
		"oracle", useOracle)

	var (
		suggestions  []model.Suggestion
		matchWrites  []model.MatchCacheEntry
		catWrites    []model.CategoryCacheEntry
		failureCount int
	)

	for i, rawPayee := range payees {
		res, err := r.resolvePayee(ctx, budgetID, rawPayee, candidates, categories, useOracle)
		if err != nil {
			r.logger.Warn("payee resolution failed, recording retryable placeholder",
				"payee", rawPayee,
				"error", err)
			res = placeholderResolution()
			failureCount++
		}

		r.collectCacheWrites(budgetID, rawPayee, res, &matchWrites, &catWrites)

		for _, txn := range groups[rawPayee] {
			suggestions = append(suggestions, model.Suggestion{
				ID:            uuid.New().String(),
				BudgetID:      budgetID,
				TransactionID: txn.ID,
				RawPayeeName:  rawPayee,
				Payee:         res.payee,
				Category:      res.category,
				CreatedAt:     time.Now(),
			})
		}

		if r.Progress != nil {
			r.Progress(i+1, len(payees))
		}
	}

	if len(matchWrites) > 0 {
		if err := r.storage.SaveMatchBatch(ctx, matchWrites); err != nil {
			return nil, fmt.Errorf("failed to save match cache entries: %w", err)
		}
	}
	if len(catWrites) > 0 {
		if err := r.storage.SaveCategoryBatch(ctx, catWrites); err != nil {
			return nil, fmt.Errorf("failed to save category cache entries: %w", err)
		}
	}

	if len(staleIDs) > 0 {
		if err := r.storage.DeleteSuggestions(ctx, staleIDs); err != nil {
			return nil, fmt.Errorf("failed to delete superseded suggestions: %w", err)
		}
	}
	if len(suggestions) > 0 {
		if err := r.storage.SaveSuggestions(ctx, suggestions); err != nil {
			return nil, fmt.Errorf("failed to save suggestions: %w", err)
		}
	}

	r.logger.Info("resolution complete",
		"budget_id", budgetID,
		"suggestion_count", len(suggestions),
		"failed_payees", failureCount,
		"match_cache_writes", len(matchWrites),
		"category_cache_writes", len(catWrites))

	return suggestions, nil
}

// resolvePayee runs the waterfall for one unique raw payee.
func (r *Resolver) resolvePayee(ctx context.Context, budgetID, rawPayee string, candidates []model.PayeeCandidate, categories []model.Category, useOracle bool) (resolution, error) {
	normalized := match.Normalize(rawPayee)

	// Step 1: match cache.
	if entry, err := r.storage.FindMatch(ctx, budgetID, normalized); err != nil {
		return resolution{}, fmt.Errorf("match cache lookup failed: %w", err)
	} else if entry != nil {
		r.logger.Debug("match cache hit", "payee", rawPayee, "canonical", entry.CanonicalName)
		return r.resolveKnownIdentity(ctx, budgetID, rawPayee, *entry, categories, useOracle)
	}

	// Steps 3-5: fuzzy matching with oracle escalation.
	_, set := r.ranker.Rank(rawPayee, candidates)

	if set.HasHighConfidence() {
		res, fellThrough, err := r.resolveHighConfidence(ctx, rawPayee, *set.HighConfidence, categories, useOracle)
		if err != nil {
			return resolution{}, err
		}
		if !fellThrough {
			return res, nil
		}
	}

	if len(set.Disambiguation) > 0 && useOracle {
		res, declined, err := r.resolveDisambiguation(ctx, rawPayee, set.Disambiguation, categories)
		if err != nil {
			return resolution{}, err
		}
		if !declined {
			return res, nil
		}
		// Declined with a fallback category already recorded.
		if res.category.ProposedID != "" {
			return res, nil
		}
	}

	if !useOracle {
		// Nothing deterministic left to try.
		return placeholderResolution(), nil
	}

	// Step 5: full identification with external lookup.
	return r.resolveFull(ctx, rawPayee, categories)
}

// resolveKnownIdentity handles a payee whose canonical identity is already
// known: category cache first, then oracle categorization.
func (r *Resolver) resolveKnownIdentity(ctx context.Context, budgetID, rawPayee string, entry model.MatchCacheEntry, categories []model.Category, useOracle bool) (resolution, error) {
	payee := payeeSuggestion(rawPayee, entry.CanonicalID, entry.CanonicalName, entry.Confidence, "cached match")

	canonicalNorm := match.Normalize(entry.CanonicalName)
	if cat, err := r.storage.FindCategory(ctx, budgetID, canonicalNorm); err != nil {
		return resolution{}, fmt.Errorf("category cache lookup failed: %w", err)
	} else if cat != nil {
		// Step 2: fully cached, no oracle call.
		return resolution{
			payee: payee,
			category: model.CategorySuggestion{
				ProposedID:   cat.CategoryID,
				ProposedName: cat.CategoryName,
				Confidence:   cat.Confidence,
				Rationale:    "cached category",
				Status:       model.StatusPending,
			},
			cachedPayee:    true,
			cachedCategory: true,
		}, nil
	}

	if !useOracle {
		return resolution{
			payee:       payee,
			category:    model.CategorySuggestion{Status: model.StatusPending},
			cachedPayee: true,
		}, nil
	}

	category, err := r.categorize(ctx, entry.CanonicalName, "", categories, false)
	if err != nil {
		return resolution{}, err
	}
	return resolution{payee: payee, category: category, cachedPayee: true}, nil
}

// resolveHighConfidence verifies a strong fuzzy match with the oracle and,
// on a positive verdict, asks it to categorize the merchant in a separate
// call. The second return value reports fallthrough to disambiguation.
func (r *Resolver) resolveHighConfidence(ctx context.Context, rawPayee string, best model.FuzzyMatchResult, categories []model.Category, useOracle bool) (resolution, bool, error) {
	if !useOracle {
		// Accept the deterministic match as-is.
		confidence := float64(best.Score) / 100
		return resolution{
			payee: payeeSuggestion(rawPayee, "", best.PayeeName, confidence, fmt.Sprintf("fuzzy match, score %d", best.Score)),
			category: model.CategorySuggestion{
				ProposedID:   best.CategoryID,
				ProposedName: best.CategoryName,
				Confidence:   confidence,
				Rationale:    fmt.Sprintf("usual category for %s", best.PayeeName),
				Status:       model.StatusPending,
			},
			source: model.SourceFuzzyMatch,
		}, false, nil
	}

	verdict, err := r.verifyMatch(ctx, rawPayee, best)
	if err != nil {
		return resolution{}, false, err
	}
	if !verdict.SameMerchant {
		r.logger.Debug("oracle rejected fuzzy match",
			"payee", rawPayee,
			"candidate", best.PayeeName,
			"rationale", verdict.Rationale)
		return resolution{}, true, nil
	}

	// The category sub-suggestion gets its own call; the candidate's usual
	// category is context, not the answer.
	category, err := r.categorize(ctx, best.PayeeName, fmt.Sprintf("historically categorized as %s", best.CategoryName), categories, false)
	if err != nil {
		return resolution{}, false, err
	}

	return resolution{
		payee:    payeeSuggestion(rawPayee, "", best.PayeeName, verdict.Confidence, verdict.Rationale),
		category: category,
	}, false, nil
}

// resolveDisambiguation asks the oracle to pick among the ranked candidates.
// The second return value reports a decline; a declined result may still
// carry a fallback category from general knowledge.
func (r *Resolver) resolveDisambiguation(ctx context.Context, rawPayee string, candidates []model.FuzzyMatchResult, categories []model.Category) (resolution, bool, error) {
	choice, err := r.selectCandidate(ctx, rawPayee, candidates, categories)
	if err != nil {
		return resolution{}, false, err
	}

	if choice.SelectedIndex < 0 {
		res := resolution{payee: placeholderResolution().payee}
		if choice.FallbackCategory != "" {
			if cat, ok := categoryByName(categories, choice.FallbackCategory); ok {
				res.category = model.CategorySuggestion{
					ProposedID:   cat.ID,
					ProposedName: cat.Name,
					Confidence:   choice.Confidence,
					Rationale:    choice.Rationale,
					Status:       model.StatusPending,
				}
			}
		}
		return res, true, nil
	}

	if choice.SelectedIndex >= len(candidates) {
		return resolution{}, false, fmt.Errorf("%w: selected index %d out of %d candidates", common.ErrInvalidOracleOutput, choice.SelectedIndex, len(candidates))
	}

	selected := candidates[choice.SelectedIndex]
	return resolution{
		payee: payeeSuggestion(rawPayee, "", selected.PayeeName, choice.Confidence, choice.Rationale),
		category: model.CategorySuggestion{
			ProposedID:   selected.CategoryID,
			ProposedName: selected.CategoryName,
			Confidence:   choice.Confidence,
			Rationale:    fmt.Sprintf("usual category for %s", selected.PayeeName),
			Status:       model.StatusPending,
		},
	}, false, nil
}

// resolveFull identifies an unknown merchant from scratch: two sequential
// oracle calls, both allowed to reach out to the web.
func (r *Resolver) resolveFull(ctx context.Context, rawPayee string, categories []model.Category) (resolution, error) {
	identity, err := r.identifyMerchant(ctx, rawPayee)
	if err != nil {
		return resolution{}, err
	}

	category, err := r.categorize(ctx, identity.CanonicalName, identity.Rationale, categories, true)
	if err != nil {
		return resolution{}, err
	}

	return resolution{
		payee:    payeeSuggestion(rawPayee, "", identity.CanonicalName, identity.Confidence, identity.Rationale),
		category: category,
	}, nil
}

// collectCacheWrites appends batch cache entries for results at or above the
// write-back threshold.
func (r *Resolver) collectCacheWrites(budgetID, rawPayee string, res resolution, matchWrites *[]model.MatchCacheEntry, catWrites *[]model.CategoryCacheEntry) {
	source := res.source
	if source == "" {
		source = model.SourceHighConfidenceAI
	}

	if res.payee.ProposedName != "" && res.payee.Confidence >= CacheWriteThreshold && !res.cachedPayee {
		*matchWrites = append(*matchWrites, model.MatchCacheEntry{
			BudgetID:      budgetID,
			RawPayeeName:  match.Normalize(rawPayee),
			CanonicalID:   res.payee.ProposedID,
			CanonicalName: res.payee.ProposedName,
			Source:        source,
			Confidence:    res.payee.Confidence,
			LastUpdated:   time.Now(),
		})
	}

	// The category cache only accepts user or oracle results; a fuzzy
	// match's category is just the candidate's history.
	if res.category.ProposedID != "" && res.category.Confidence >= CacheWriteThreshold && !res.cachedCategory && source != model.SourceFuzzyMatch {
		canonical := res.payee.ProposedName
		if canonical == "" {
			canonical = rawPayee
		}
		*catWrites = append(*catWrites, model.CategoryCacheEntry{
			BudgetID:     budgetID,
			PayeeName:    match.Normalize(canonical),
			CategoryID:   res.category.ProposedID,
			CategoryName: res.category.ProposedName,
			Source:       source,
			Confidence:   res.category.Confidence,
			LastUpdated:  time.Now(),
		})
	}
}

// resolvedPayees splits the budget's existing suggestions by normalized raw
// payee: the set already carrying a non-retryable suggestion, and the ids of
// retryable rows awaiting supersession on a successful retry.
func (r *Resolver) resolvedPayees(ctx context.Context, budgetID string) (map[string]bool, map[string][]string, error) {
	existing, err := r.storage.GetSuggestionsByBudget(ctx, budgetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load existing suggestions: %w", err)
	}

	resolved := make(map[string]bool)
	retryable := make(map[string][]string)
	for i := range existing {
		s := &existing[i]
		normalized := match.Normalize(s.RawPayeeName)
		if s.Retryable() {
			retryable[normalized] = append(retryable[normalized], s.ID)
			continue
		}
		resolved[normalized] = true
	}
	return resolved, retryable, nil
}

// loadCandidates builds the fuzzy-matching candidate pool from categorized
// transaction history.
func (r *Resolver) loadCandidates(ctx context.Context, budgetID string) ([]model.PayeeCandidate, error) {
	categorized, err := r.budget.GetCategorizedPayees(ctx, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categorized payees: %w", err)
	}

	candidates := make([]model.PayeeCandidate, 0, len(categorized))
	for _, cp := range categorized {
		candidates = append(candidates, model.PayeeCandidate{
			PayeeName:         cp.PayeeName,
			PayeeNameOriginal: cp.PayeeName,
			CategoryID:        cp.CategoryID,
			CategoryName:      cp.CategoryName,
		})
	}
	return candidates, nil
}

// payeeSuggestion builds the payee sub-record, marking it skipped when the
// canonical name offers no actionable correction over the raw name.
func payeeSuggestion(rawPayee, proposedID, proposedName string, confidence float64, rationale string) model.PayeeSuggestion {
	status := model.StatusPending
	if match.Normalize(proposedName) == match.Normalize(rawPayee) {
		status = model.StatusSkipped
	}
	return model.PayeeSuggestion{
		ProposedID:   proposedID,
		ProposedName: proposedName,
		Confidence:   confidence,
		Rationale:    rationale,
		Status:       status,
	}
}

// placeholderResolution is the zero-confidence, empty-rationale result
// recorded on per-payee failure. Its empty rationale marks the payee
// retryable on the next pass.
func placeholderResolution() resolution {
	return resolution{
		payee:    model.PayeeSuggestion{Status: model.StatusPending},
		category: model.CategorySuggestion{Status: model.StatusPending},
	}
}

func groupByPayee(transactions []model.Transaction) map[string][]model.Transaction {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.PayeeName == "" {
			continue
		}
		groups[txn.PayeeName] = append(groups[txn.PayeeName], txn)
	}
	return groups
}

func sortedKeys(groups map[string][]model.Transaction) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func categoryByName(categories []model.Category, name string) (model.Category, bool) {
	normalized := match.Normalize(name)
	for _, cat := range categories {
		if match.Normalize(cat.Name) == normalized {
			return cat, true
		}
	}
	return model.Category{}, false
}
