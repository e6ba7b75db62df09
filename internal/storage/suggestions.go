package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// SaveSuggestion inserts a new resolution record.
func (s *SQLiteStorage) SaveSuggestion(ctx context.Context, suggestion *model.Suggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.saveSuggestionRow(ctx, s.db, suggestion)
}

// SaveSuggestions inserts records in a single transaction.
func (s *SQLiteStorage) SaveSuggestions(ctx context.Context, suggestions []model.Suggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range suggestions {
		if err := s.saveSuggestionRow(ctx, tx, &suggestions[i]); err != nil {
			return fmt.Errorf("suggestion %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit suggestions: %w", err)
	}
	return nil
}

// GetSuggestion loads one suggestion by id.
func (s *SQLiteStorage) GetSuggestion(ctx context.Context, id string) (*model.Suggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, suggestionSelect+" WHERE id = ?", id)
	suggestion, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suggestion %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestion: %w", err)
	}
	return suggestion, nil
}

// GetSuggestionsByBudget loads every suggestion for a budget, newest first.
func (s *SQLiteStorage) GetSuggestionsByBudget(ctx context.Context, budgetID string) ([]model.Suggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetID, "budgetID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, suggestionSelect+" WHERE budget_id = ? ORDER BY created_at DESC, id", budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []model.Suggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, *suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}
	return suggestions, nil
}

// DeleteSuggestions removes suggestion records by id. Unknown ids are
// ignored; superseded rows may already be gone.
func (s *SQLiteStorage) DeleteSuggestions(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM suggestions WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete suggestions: %w", err)
	}
	return nil
}

// UpdateSuggestion replaces a stored suggestion's mutable fields.
func (s *SQLiteStorage) UpdateSuggestion(ctx context.Context, suggestion *model.Suggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSuggestion(suggestion); err != nil {
		return err
	}

	correction := flattenCorrection(suggestion.Correction)
	result, err := s.db.ExecContext(ctx, `
		UPDATE suggestions SET
			payee_proposed_id = ?, payee_proposed_name = ?, payee_confidence = ?, payee_rationale = ?, payee_status = ?,
			category_proposed_id = ?, category_proposed_name = ?, category_confidence = ?, category_rationale = ?, category_status = ?,
			correction_payee_id = ?, correction_payee_name = ?, correction_category_id = ?, correction_category_name = ?
		WHERE id = ?`,
		suggestion.Payee.ProposedID, suggestion.Payee.ProposedName, suggestion.Payee.Confidence, suggestion.Payee.Rationale, string(suggestion.Payee.Status),
		suggestion.Category.ProposedID, suggestion.Category.ProposedName, suggestion.Category.Confidence, suggestion.Category.Rationale, string(suggestion.Category.Status),
		correction.payeeID, correction.payeeName, correction.categoryID, correction.categoryName,
		suggestion.ID)
	if err != nil {
		return fmt.Errorf("failed to update suggestion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("suggestion %s: %w", suggestion.ID, common.ErrNotFound)
	}
	return nil
}

const suggestionSelect = `
	SELECT id, budget_id, transaction_id, raw_payee_name,
		payee_proposed_id, payee_proposed_name, payee_confidence, payee_rationale, payee_status,
		category_proposed_id, category_proposed_name, category_confidence, category_rationale, category_status,
		correction_payee_id, correction_payee_name, correction_category_id, correction_category_name,
		created_at
	FROM suggestions`

type flatCorrection struct {
	payeeID      string
	payeeName    string
	categoryID   string
	categoryName string
}

func flattenCorrection(c *model.Correction) flatCorrection {
	if c == nil {
		return flatCorrection{}
	}
	return flatCorrection{
		payeeID:      c.PayeeID,
		payeeName:    c.PayeeName,
		categoryID:   c.CategoryID,
		categoryName: c.CategoryName,
	}
}

func (s *SQLiteStorage) saveSuggestionRow(ctx context.Context, q queryable, suggestion *model.Suggestion) error {
	if err := validateSuggestion(suggestion); err != nil {
		return err
	}

	createdAt := suggestion.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	correction := flattenCorrection(suggestion.Correction)

	_, err := q.ExecContext(ctx, `
		INSERT INTO suggestions (
			id, budget_id, transaction_id, raw_payee_name,
			payee_proposed_id, payee_proposed_name, payee_confidence, payee_rationale, payee_status,
			category_proposed_id, category_proposed_name, category_confidence, category_rationale, category_status,
			correction_payee_id, correction_payee_name, correction_category_id, correction_category_name,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		suggestion.ID, suggestion.BudgetID, suggestion.TransactionID, suggestion.RawPayeeName,
		suggestion.Payee.ProposedID, suggestion.Payee.ProposedName, suggestion.Payee.Confidence, suggestion.Payee.Rationale, string(suggestion.Payee.Status),
		suggestion.Category.ProposedID, suggestion.Category.ProposedName, suggestion.Category.Confidence, suggestion.Category.Rationale, string(suggestion.Category.Status),
		correction.payeeID, correction.payeeName, correction.categoryID, correction.categoryName,
		createdAt)
	if err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSuggestion(row rowScanner) (*model.Suggestion, error) {
	var s model.Suggestion
	var payeeStatus, categoryStatus string
	var corrPayeeID, corrPayeeName, corrCategoryID, corrCategoryName sql.NullString

	err := row.Scan(&s.ID, &s.BudgetID, &s.TransactionID, &s.RawPayeeName,
		&s.Payee.ProposedID, &s.Payee.ProposedName, &s.Payee.Confidence, &s.Payee.Rationale, &payeeStatus,
		&s.Category.ProposedID, &s.Category.ProposedName, &s.Category.Confidence, &s.Category.Rationale, &categoryStatus,
		&corrPayeeID, &corrPayeeName, &corrCategoryID, &corrCategoryName,
		&s.CreatedAt)
	if err != nil {
		return nil, err
	}

	s.Payee.Status = model.SuggestionStatus(payeeStatus)
	s.Category.Status = model.SuggestionStatus(categoryStatus)

	if corrPayeeID.String != "" || corrPayeeName.String != "" || corrCategoryID.String != "" || corrCategoryName.String != "" {
		s.Correction = &model.Correction{
			PayeeID:      corrPayeeID.String,
			PayeeName:    corrPayeeName.String,
			CategoryID:   corrCategoryID.String,
			CategoryName: corrCategoryName.String,
		}
	}
	return &s, nil
}
