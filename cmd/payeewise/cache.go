package main

import (
	"fmt"
	"sort"

	"github.com/ledgerleaf/payeewise/internal/cli"
	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the resolution caches",
	}

	cmd.PersistentFlags().StringP("budget", "b", "", "Budget ID (defaults to budget.id from config)")

	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheClearCmd())

	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show match and category cache statistics",
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

			stats, err := store.GetCacheStats(ctx, budgetID)
			if err != nil {
				return err
			}

			fmt.Println(cli.TitleStyle.Render("Cache statistics"))
			fmt.Printf("%s %d entries, %d hits\n",
				cli.BoldStyle.Render("Match cache:"), stats.MatchEntries, stats.MatchHits)
			printBySource(stats.MatchBySource)
			fmt.Printf("%s %d entries, %d hits\n",
				cli.BoldStyle.Render("Category cache:"), stats.CategoryEntries, stats.CategoryHits)
			printBySource(stats.CategoryBySource)
			return nil
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries for the budget",
		Long: `Remove every match and category cache entry for the budget.
Stored suggestions and merge clusters are untouched. The next suggest run
rebuilds the caches from scratch.`,
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

			if err := store.ClearCaches(ctx, budgetID); err != nil {
				return fmt.Errorf("failed to clear caches: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("Caches cleared."))
			return nil
		},
	}
}

func printBySource(bySource map[string]int) {
	sources := make([]string, 0, len(bySource))
	for source := range bySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		fmt.Printf("  %s\n", cli.SubtleStyle.Render(fmt.Sprintf("%s: %d", source, bySource[source])))
	}
}
