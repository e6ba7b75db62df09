package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ledgerleaf/payeewise/internal/cli"
	"github.com/ledgerleaf/payeewise/internal/engine"
	"github.com/ledgerleaf/payeewise/internal/match"
	"github.com/ledgerleaf/payeewise/internal/model"
	"github.com/spf13/cobra"
)

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Resolve payees and suggest categories",
		Long: `Run the resolution waterfall over every uncategorized transaction
in the budget. Cheap strategies (cache lookups, fuzzy matching against
already-categorized payees) run first; the oracle is consulted only when
they cannot decide.

Examples:
  payeewise suggest                      # Resolve with oracle assistance
  payeewise suggest --no-oracle          # Deterministic matching only
  payeewise suggest list                 # Show pending suggestions
  payeewise suggest approve <id>         # Approve a suggestion
  payeewise suggest reject <id>          # Reject a suggestion
  payeewise suggest reset <id>           # Return a suggestion to pending`,
		RunE: runSuggest,
	}

	// Flags
	cmd.PersistentFlags().StringP("budget", "b", "", "Budget ID (defaults to budget.id from config)")
	cmd.Flags().Bool("no-oracle", false, "Skip oracle calls; unresolved payees become retryable placeholders")

	cmd.AddCommand(suggestListCmd())
	cmd.AddCommand(suggestApproveCmd())
	cmd.AddCommand(suggestRejectCmd())
	cmd.AddCommand(suggestResetCmd())

	return cmd
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	noOracle, _ := cmd.Flags().GetBool("no-oracle")

	budgetID, err := resolveBudgetID(cmd)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	provider, err := createBudgetClient()
	if err != nil {
		return err
	}

	oracle, err := createOracle()
	if err != nil {
		return err
	}

	aliases, err := loadAliasTable()
	if err != nil {
		return err
	}

	resolver := engine.NewResolver(store, provider,
		match.NewRanker(match.NewScorer(), aliases), oracle, slog.Default())

	transactions, err := provider.GetTransactions(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	var uncategorized []model.Transaction
	for _, txn := range transactions {
		if txn.Uncategorized() {
			uncategorized = append(uncategorized, txn)
		}
	}
	if len(uncategorized) == 0 {
		fmt.Println(cli.SuccessStyle.Render("Everything is already categorized."))
		return nil
	}

	categories, err := provider.GetCategories(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}

	bar := cli.NewProgressBar(len(uncategorized), "Resolving payees...", os.Stderr)
	resolver.Progress = func(done, total int) {
		// The bar tracks unique payees, not transactions.
		bar.ChangeMax(total)
		_ = bar.Set(done)
	}

	suggestions, err := resolver.ResolveSuggestions(ctx, budgetID, uncategorized, categories, !noOracle)
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	fmt.Println(cli.RenderSuggestions(suggestions))
	fmt.Println(cli.SubtleStyle.Render("Review with: payeewise suggest list"))
	return nil
}

func suggestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored suggestions for the budget",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			budgetID, err := resolveBudgetID(cmd)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			suggestions, err := store.GetSuggestionsByBudget(ctx, budgetID)
			if err != nil {
				return fmt.Errorf("failed to load suggestions: %w", err)
			}
			if len(suggestions) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No suggestions stored. Run: payeewise suggest"))
				return nil
			}

			for i := range suggestions {
				s := &suggestions[i]
				fmt.Printf("%s  %s  %s → %s · %s\n",
					cli.SubtleStyle.Render(s.ID),
					renderStatus(s.CombinedStatus()),
					cli.BoldStyle.Render(s.RawPayeeName),
					s.Payee.ProposedName,
					s.Category.ProposedName)
			}
			return nil
		},
	}
}

func suggestApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <suggestion-id>",
		Short: "Approve a pending suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, func(resolver *engine.Resolver) error {
				s, err := resolver.ApproveSuggestion(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s %s → %s · %s\n",
					cli.SuccessStyle.Render("Approved:"),
					s.RawPayeeName, s.Payee.ProposedName, s.Category.ProposedName)
				return nil
			})
		},
	}
}

func suggestRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <suggestion-id>",
		Short: "Reject a suggestion, optionally recording the correct answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payeeName, _ := cmd.Flags().GetString("payee")
			payeeID, _ := cmd.Flags().GetString("payee-id")
			categoryName, _ := cmd.Flags().GetString("category")
			categoryID, _ := cmd.Flags().GetString("category-id")

			var correction *model.Correction
			if payeeName != "" || categoryName != "" {
				correction = &model.Correction{
					PayeeID:      payeeID,
					PayeeName:    payeeName,
					CategoryID:   categoryID,
					CategoryName: categoryName,
				}
			}

			return withResolver(cmd, func(resolver *engine.Resolver) error {
				s, err := resolver.RejectSuggestion(cmd.Context(), args[0], correction)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", cli.WarningStyle.Render("Rejected:"), s.RawPayeeName)
				return nil
			})
		},
	}

	cmd.Flags().String("payee", "", "Correct canonical payee name")
	cmd.Flags().String("payee-id", "", "Correct payee ID")
	cmd.Flags().String("category", "", "Correct category name")
	cmd.Flags().String("category-id", "", "Correct category ID")

	return cmd
}

func suggestResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <suggestion-id>",
		Short: "Return a reviewed suggestion to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, func(resolver *engine.Resolver) error {
				s, err := resolver.ResetSuggestion(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", cli.SubtleStyle.Render("Reset to pending:"), s.RawPayeeName)
				return nil
			})
		},
	}
}

// withResolver wires up a storage-only resolver for the suggestion lifecycle
// commands, which never touch the budget provider or oracle.
func withResolver(cmd *cobra.Command, fn func(*engine.Resolver) error) error {
	store, err := initStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	resolver := engine.NewResolver(store, nil,
		match.NewRanker(match.NewScorer(), match.NewAliasTable()), nil, slog.Default())
	return fn(resolver)
}

func renderStatus(status model.SuggestionStatus) string {
	switch status {
	case model.StatusApproved, model.StatusApplied:
		return cli.SuccessStyle.Render(string(status))
	case model.StatusRejected:
		return cli.ErrorStyle.Render(string(status))
	case model.StatusSkipped:
		return cli.SubtleStyle.Render(string(status))
	default:
		return cli.WarningStyle.Render(string(status))
	}
}
