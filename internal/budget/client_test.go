package budget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != path {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("not-a-url", "token")
	assert.Error(t, err)

	_, err = NewClient("https://example.com", "")
	assert.Error(t, err)
}

func TestGetTransactions(t *testing.T) {
	server := testServer(t, "/budgets/b1/transactions", `{
		"transactions": [
			{"id":"t1","date":"2026-08-01","payee_name":"SQ *STARBUCKS #4521","account_id":"a1","amount":-5.75},
			{"id":"t2","date":"2026-08-02","payee_name":"Transfer : Savings","account_id":"a1","amount":-100,"transfer":true}
		]
	}`)
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	require.NoError(t, err)

	transactions, err := client.GetTransactions(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	assert.Equal(t, "SQ *STARBUCKS #4521", transactions[0].PayeeName)
	assert.True(t, transactions[0].Uncategorized())
	assert.True(t, transactions[1].IsTransfer)
	assert.False(t, transactions[1].Uncategorized(), "transfers are never categorization candidates")
}

func TestGetCategories(t *testing.T) {
	server := testServer(t, "/budgets/b1/categories", `{
		"categories": [
			{"id":"c1","name":"Coffee Shops","group_id":"g1"},
			{"id":"c2","name":"Hidden","group_id":"g1","hidden":true}
		]
	}`)
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	require.NoError(t, err)

	categories, err := client.GetCategories(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Coffee Shops", categories[0].Name)
	assert.True(t, categories[1].Hidden)
}

func TestGetPayees(t *testing.T) {
	server := testServer(t, "/budgets/b1/payees", `{
		"payees": [{"id":"p1","name":"Starbucks"},{"id":"p2","name":"Netflix"}]
	}`)
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	require.NoError(t, err)

	payees, err := client.GetPayees(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, payees, 2)
	assert.Equal(t, "p1", payees[0].ID)
}

func TestGetCategorizedPayees(t *testing.T) {
	server := testServer(t, "/budgets/b1/payees/categorized", `{
		"payees": [
			{"payee_id":"p1","payee_name":"Starbucks","category_id":"c1","category_name":"Coffee Shops","transaction_count":12}
		]
	}`)
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	require.NoError(t, err)

	payees, err := client.GetCategorizedPayees(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, payees, 1)
	assert.Equal(t, 12, payees[0].TransactionCount)
}

func TestServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "test-token")
	require.NoError(t, err)

	_, err = client.GetPayees(context.Background(), "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
