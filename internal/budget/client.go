// Package budget provides the HTTP adapter to the external budgeting
// service. It implements service.BudgetProvider; the sync protocol itself
// lives on the provider's side.
package budget

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledgerleaf/payeewise/internal/model"
)

// Client talks to the budgeting service's read API over JSON/HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// API response types.
type transactionsResponse struct {
	Transactions []apiTransaction `json:"transactions"`
}

type apiTransaction struct {
	ID         string  `json:"id"`
	Date       string  `json:"date"`
	PayeeID    string  `json:"payee_id"`
	PayeeName  string  `json:"payee_name"`
	CategoryID string  `json:"category_id"`
	AccountID  string  `json:"account_id"`
	Notes      string  `json:"notes"`
	Amount     float64 `json:"amount"`
	Transfer   bool    `json:"transfer"`
}

type categoriesResponse struct {
	Categories []apiCategory `json:"categories"`
}

type apiCategory struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id"`
	Hidden  bool   `json:"hidden"`
}

type payeesResponse struct {
	Payees []apiPayee `json:"payees"`
}

type apiPayee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type categorizedResponse struct {
	Payees []apiCategorizedPayee `json:"payees"`
}

type apiCategorizedPayee struct {
	PayeeID          string `json:"payee_id"`
	PayeeName        string `json:"payee_name"`
	CategoryID       string `json:"category_id"`
	CategoryName     string `json:"category_name"`
	TransactionCount int    `json:"transaction_count"`
}

// NewClient creates a budget service client.
func NewClient(baseURL, token string) (*Client, error) {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid budget service URL: %s", baseURL)
	}
	if token == "" {
		return nil, fmt.Errorf("budget service token is required")
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GetTransactions fetches non-transfer transactions for a budget. Transfers
// come back flagged and are excluded from categorization by the caller.
func (c *Client) GetTransactions(ctx context.Context, budgetID string) ([]model.Transaction, error) {
	var resp transactionsResponse
	if err := c.get(ctx, budgetID, "transactions", &resp); err != nil {
		return nil, err
	}

	transactions := make([]model.Transaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		date, err := time.Parse("2006-01-02", tx.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction date %q: %w", tx.Date, err)
		}
		transactions = append(transactions, model.Transaction{
			ID:         tx.ID,
			Date:       date,
			PayeeID:    tx.PayeeID,
			PayeeName:  tx.PayeeName,
			CategoryID: tx.CategoryID,
			AccountID:  tx.AccountID,
			Notes:      tx.Notes,
			Amount:     tx.Amount,
			IsTransfer: tx.Transfer,
		})
	}
	return transactions, nil
}

// GetCategories fetches the budget's category list.
func (c *Client) GetCategories(ctx context.Context, budgetID string) ([]model.Category, error) {
	var resp categoriesResponse
	if err := c.get(ctx, budgetID, "categories", &resp); err != nil {
		return nil, err
	}

	categories := make([]model.Category, 0, len(resp.Categories))
	for _, cat := range resp.Categories {
		categories = append(categories, model.Category{
			ID:      cat.ID,
			Name:    cat.Name,
			GroupID: cat.GroupID,
			Hidden:  cat.Hidden,
		})
	}
	return categories, nil
}

// GetPayees fetches the budget's full payee list.
func (c *Client) GetPayees(ctx context.Context, budgetID string) ([]model.Payee, error) {
	var resp payeesResponse
	if err := c.get(ctx, budgetID, "payees", &resp); err != nil {
		return nil, err
	}

	payees := make([]model.Payee, 0, len(resp.Payees))
	for _, p := range resp.Payees {
		payees = append(payees, model.Payee{ID: p.ID, Name: p.Name})
	}
	return payees, nil
}

// GetCategorizedPayees fetches (payee, category) pairs from categorized
// transaction history, weighted by transaction count.
func (c *Client) GetCategorizedPayees(ctx context.Context, budgetID string) ([]model.CategorizedPayee, error) {
	var resp categorizedResponse
	if err := c.get(ctx, budgetID, "payees/categorized", &resp); err != nil {
		return nil, err
	}

	payees := make([]model.CategorizedPayee, 0, len(resp.Payees))
	for _, p := range resp.Payees {
		payees = append(payees, model.CategorizedPayee{
			PayeeID:          p.PayeeID,
			PayeeName:        p.PayeeName,
			CategoryID:       p.CategoryID,
			CategoryName:     p.CategoryName,
			TransactionCount: p.TransactionCount,
		})
	}
	return payees, nil
}

// get performs an authenticated GET against a budget-scoped endpoint.
func (c *Client) get(ctx context.Context, budgetID, endpoint string, out any) error {
	u := fmt.Sprintf("%s/budgets/%s/%s", c.baseURL, url.PathEscape(budgetID), endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	slog.Debug("Requesting budget data", "endpoint", endpoint, "budget_id", budgetID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("budget service error on %s: %d - %s", endpoint, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
