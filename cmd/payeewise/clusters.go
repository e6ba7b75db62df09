package main

import (
	"fmt"
	"log/slog"

	"github.com/ledgerleaf/payeewise/internal/cli"
	"github.com/ledgerleaf/payeewise/internal/cluster"
	"github.com/spf13/cobra"
)

func clustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Find duplicate payees worth merging",
		Long: `Group the budget's payee list into clusters of names that almost
certainly refer to the same merchant. Results are cached against a hash of
the payee list and reused until the list changes.

Examples:
  payeewise clusters                  # Build (or reuse cached) clusters
  payeewise clusters --cached         # Show cached clusters without rebuilding
  payeewise clusters --oracle         # Let the oracle split oversized clusters
  payeewise clusters --min-score 80   # Cast a wider net
  payeewise clusters --force          # Rebuild even when the cache is fresh`,
		RunE: runClusters,
	}

	// Flags
	cmd.Flags().StringP("budget", "b", "", "Budget ID (defaults to budget.id from config)")
	cmd.Flags().Int("min-score", 0, "Similarity threshold override (0 = default)")
	cmd.Flags().Bool("oracle", false, "Use the oracle to refine large clusters")
	cmd.Flags().Bool("force", false, "Rebuild clusters even when the cached set is fresh")
	cmd.Flags().Bool("cached", false, "Show the cached clusters without rebuilding")

	return cmd
}

func runClusters(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	minScore, _ := cmd.Flags().GetInt("min-score")
	useOracle, _ := cmd.Flags().GetBool("oracle")
	force, _ := cmd.Flags().GetBool("force")
	cachedOnly, _ := cmd.Flags().GetBool("cached")

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

	logger := slog.Default()
	var refiner *cluster.Refiner
	if useOracle {
		oracle, oracleErr := createOracle()
		if oracleErr != nil {
			return oracleErr
		}
		if oracle != nil {
			refiner = cluster.NewRefiner(oracle, logger)
		}
	}

	svc := cluster.NewService(cluster.NewEngine(logger), refiner, provider, store, logger)

	if cachedOnly {
		clusters, status, cacheErr := svc.GetCachedClusters(ctx, budgetID)
		if cacheErr != nil {
			return fmt.Errorf("failed to load cached clusters: %w", cacheErr)
		}
		if clusters == nil && status.Stale {
			fmt.Println(cli.SubtleStyle.Render("No cached clusters. Run: payeewise clusters"))
			return nil
		}
		fmt.Println(cli.RenderStaleClusters(clusters, status))
		return nil
	}

	clusters, err := svc.BuildClusters(ctx, budgetID, cluster.BuildOptions{
		MinScore:     minScore,
		UseOracle:    useOracle,
		ForceRebuild: force,
	})
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	fmt.Println(cli.RenderClusters(clusters))
	return nil
}
