// Package model defines the core domain models used throughout the application.
package model

import "time"

// Transaction represents a single transaction pulled from the budget provider.
type Transaction struct {
	Date       time.Time
	ID         string
	PayeeID    string
	PayeeName  string // Raw, bank-supplied payee text
	CategoryID string
	AccountID  string
	Notes      string
	Amount     float64
	IsTransfer bool // Transfers are never candidates for categorization
}

// Uncategorized reports whether the transaction still needs a category.
func (t *Transaction) Uncategorized() bool {
	return t.CategoryID == "" && !t.IsTransfer
}

// Category is a budget category as exposed by the budget provider.
type Category struct {
	ID      string
	Name    string
	GroupID string
	Hidden  bool
}

// Payee is a payee record as exposed by the budget provider.
type Payee struct {
	ID   string
	Name string
}

// CategorizedPayee is a (payee, category) pair drawn from transaction history,
// weighted by how many transactions back it up. Read-only during matching.
type CategorizedPayee struct {
	PayeeID          string
	PayeeName        string
	CategoryID       string
	CategoryName     string
	TransactionCount int
}
