package model

import (
	"fmt"
	"time"
)

// SuggestionStatus tracks the lifecycle of a single sub-suggestion.
type SuggestionStatus string

// Suggestion status constants.
const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
	StatusApplied  SuggestionStatus = "applied"
	StatusSkipped  SuggestionStatus = "skipped"
)

// Valid reports whether the status is one of the known values.
func (s SuggestionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusApplied, StatusSkipped:
		return true
	}
	return false
}

// resolved reports whether the sub-suggestion no longer needs user input.
func (s SuggestionStatus) resolved() bool {
	return s == StatusApproved || s == StatusApplied || s == StatusSkipped
}

// PayeeSuggestion proposes a canonical payee identity for a raw payee string.
type PayeeSuggestion struct {
	ProposedID   string
	ProposedName string
	Rationale    string
	Status       SuggestionStatus
	Confidence   float64
}

// CategorySuggestion proposes a budget category for a transaction.
type CategorySuggestion struct {
	ProposedID   string
	ProposedName string
	Rationale    string
	Status       SuggestionStatus
	Confidence   float64
}

// Correction records a user override applied alongside a rejection.
type Correction struct {
	PayeeID      string
	PayeeName    string
	CategoryID   string
	CategoryName string
}

// Suggestion is the full resolution record for one transaction. The payee and
// category sub-records evolve independently; the combined status is always
// derived, never stored as mutable state.
type Suggestion struct {
	CreatedAt     time.Time
	ID            string
	BudgetID      string
	TransactionID string
	RawPayeeName  string
	Payee         PayeeSuggestion
	Category      CategorySuggestion
	Correction    *Correction
}

// CombinedStatus derives the legacy single status from the two sub-records.
// Either rejected wins; both applied means applied; both otherwise resolved
// means approved; anything else is still pending.
func (s *Suggestion) CombinedStatus() SuggestionStatus {
	if s.Payee.Status == StatusRejected || s.Category.Status == StatusRejected {
		return StatusRejected
	}
	if s.Payee.Status == StatusApplied && s.Category.Status == StatusApplied {
		return StatusApplied
	}
	if s.Payee.Status.resolved() && s.Category.Status.resolved() {
		return StatusApproved
	}
	return StatusPending
}

// Retryable reports whether the suggestion should be attempted again on the
// next generation pass. An empty rationale means the oracle or transport
// failed; a missing category id means nothing useful was produced.
func (s *Suggestion) Retryable() bool {
	return s.Category.Rationale == "" || s.Category.ProposedID == ""
}

// Validate ensures the suggestion's data honors the model invariants.
func (s *Suggestion) Validate() error {
	if s.TransactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if s.RawPayeeName == "" {
		return fmt.Errorf("raw payee name is required")
	}
	if !s.Payee.Status.Valid() {
		return fmt.Errorf("invalid payee status: %s", s.Payee.Status)
	}
	if !s.Category.Status.Valid() {
		return fmt.Errorf("invalid category status: %s", s.Category.Status)
	}
	if s.Payee.Confidence < 0 || s.Payee.Confidence > 1 {
		return fmt.Errorf("payee confidence must be between 0.0 and 1.0, got %.2f", s.Payee.Confidence)
	}
	if s.Category.Confidence < 0 || s.Category.Confidence > 1 {
		return fmt.Errorf("category confidence must be between 0.0 and 1.0, got %.2f", s.Category.Confidence)
	}
	return nil
}
