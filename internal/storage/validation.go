package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidEntry      = errors.New("invalid cache entry")
	ErrInvalidSuggestion = errors.New("invalid suggestion")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateMatchEntry validates a match cache entry.
func validateMatchEntry(entry *model.MatchCacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if strings.TrimSpace(entry.BudgetID) == "" {
		return fmt.Errorf("%w: missing budget id", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.RawPayeeName) == "" {
		return fmt.Errorf("%w: missing raw payee name", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.CanonicalName) == "" {
		return fmt.Errorf("%w: missing canonical name", ErrInvalidEntry)
	}
	if entry.Confidence < 0 || entry.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidEntry)
	}
	return nil
}

// validateCategoryEntry validates a category cache entry.
func validateCategoryEntry(entry *model.CategoryCacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if strings.TrimSpace(entry.BudgetID) == "" {
		return fmt.Errorf("%w: missing budget id", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.PayeeName) == "" {
		return fmt.Errorf("%w: missing payee name", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.CategoryID) == "" {
		return fmt.Errorf("%w: missing category id", ErrInvalidEntry)
	}
	if entry.Confidence < 0 || entry.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidEntry)
	}
	return nil
}

// validateSuggestion validates a suggestion record before persistence.
func validateSuggestion(s *model.Suggestion) error {
	if s == nil {
		return fmt.Errorf("%w: suggestion", ErrNilParameter)
	}
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSuggestion)
	}
	if strings.TrimSpace(s.BudgetID) == "" {
		return fmt.Errorf("%w: missing budget id", ErrInvalidSuggestion)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}
	return nil
}
