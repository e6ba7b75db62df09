package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledgerleaf/payeewise/internal/budget"
	"github.com/ledgerleaf/payeewise/internal/llm"
	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// expandPath resolves a leading ~ and any $VAR environment references in a
// user-supplied path.
func expandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// initStorage opens the SQLite database with proper path expansion and runs
// migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	// Get database path from config
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/payeewise/payeewise.db"
	}

	// Expand tilde and environment variables
	dbPath = expandPath(dbPath)

	// Initialize storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// resolveBudgetID returns the budget to operate on: the --budget flag when
// given, otherwise budget.id from config.
func resolveBudgetID(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("budget")
	if id == "" {
		id = viper.GetString("budget.id")
	}
	if id == "" {
		return "", fmt.Errorf("budget ID is required (--budget or budget.id in config)")
	}
	return id, nil
}

// createBudgetClient builds the budget provider from configuration. The
// access token can come from config or the PAYEEWISE_BUDGET_TOKEN
// environment variable.
func createBudgetClient() (*budget.Client, error) {
	baseURL := viper.GetString("budget.url")
	if baseURL == "" {
		return nil, fmt.Errorf("budget.url is not configured")
	}

	token := viper.GetString("budget.token")
	if token == "" {
		token = os.Getenv("PAYEEWISE_BUDGET_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("budget token not found in config or PAYEEWISE_BUDGET_TOKEN environment variable")
	}

	return budget.NewClient(baseURL, token)
}

// createOracle builds the oracle client from configuration. It returns a nil
// client when no provider is configured; callers treat that as running
// without oracle assistance.
func createOracle() (llm.Client, error) {
	provider := viper.GetString("oracle.provider")
	if provider == "" {
		return nil, nil
	}

	cfg := llm.Config{
		Provider:    provider,
		Model:       viper.GetString("oracle.model"),
		Temperature: viper.GetFloat64("oracle.temperature"),
		MaxTokens:   viper.GetInt("oracle.max_tokens"),
		MaxRetries:  viper.GetInt("oracle.max_retries"),
		RetryDelay:  viper.GetDuration("oracle.retry_delay"),
		RateLimit:   viper.GetInt("oracle.rate_limit"),
	}

	// Set defaults if not specified
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 30 // requests per minute
	}

	// Get API key based on provider
	switch provider {
	case "openai":
		apiKey := viper.GetString("oracle.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		cfg.APIKey = apiKey

	case "anthropic":
		apiKey := viper.GetString("oracle.anthropic_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}
		cfg.APIKey = apiKey

	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", provider)
	}

	oracle, err := llm.NewOracle(cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle: %w", err)
	}
	return oracle, nil
}

// loadAliasTable loads the user's alias overrides when configured, falling
// back to the built-in table.
func loadAliasTable() (*match.AliasTable, error) {
	path := viper.GetString("matching.alias_file")
	if path == "" {
		return match.NewAliasTable(), nil
	}

	aliases, err := match.LoadAliasTable(expandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load alias table %s: %w", path, err)
	}
	return aliases, nil
}
