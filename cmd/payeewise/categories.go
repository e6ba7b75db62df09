package main

import (
	"fmt"

	"github.com/ledgerleaf/payeewise/internal/cli"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the budget's categories",
		Long: `List the categories the budget provider exposes. These are the
targets the resolution engine suggests from; hidden categories are marked
and never suggested.`,
		RunE: runCategories,
	}

	cmd.Flags().StringP("budget", "b", "", "Budget ID (defaults to budget.id from config)")
	cmd.Flags().Bool("all", false, "Include hidden categories")

	return cmd
}

func runCategories(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	showAll, _ := cmd.Flags().GetBool("all")

	budgetID, err := resolveBudgetID(cmd)
	if err != nil {
		return err
	}

	provider, err := createBudgetClient()
	if err != nil {
		return err
	}

	categories, err := provider.GetCategories(ctx, budgetID)
	if err != nil {
		return fmt.Errorf("failed to fetch categories: %w", err)
	}

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("%d categories", len(categories))))
	for _, category := range categories {
		if category.Hidden && !showAll {
			continue
		}
		line := fmt.Sprintf("%s %s", cli.BoldStyle.Render(category.Name), cli.SubtleStyle.Render(category.ID))
		if category.Hidden {
			line += " " + cli.WarningStyle.Render("(hidden)")
		}
		fmt.Println("  " + line)
	}
	return nil
}
