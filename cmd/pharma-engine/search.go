package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

func searchCmd() *cobra.Command {
	var (
		limit int
		mode  string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a one-shot search and print the grouped results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, _, cleanup, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			page, err := eng.Search(ctx, args[0], types.Filters{}, limit, 0, types.SearchMode(mode))
			if err != nil {
				return err
			}

			fmt.Printf("\nQuery: %q  (%d groups, %d total)\n\n", args[0], len(page.Groups), page.Total)
			fmt.Printf("%-4s | %-49s | %8s | %7s | %s\n", "Rank", "Group", "Low", "Vendors", "Savings")
			fmt.Println(strings.Repeat("-", 90))
			for _, g := range page.Groups {
				fmt.Printf("%-4d | %-49s | %8.2f | %7d | %.2f\n",
					g.RelevanceRank, trim(g.DisplayName, 49), g.PriceStats.Min, g.VendorCount, g.Insight.SavingsPotential)
				for _, p := range g.Products {
					marker := " "
					if p.Analysis.IsBestDeal {
						marker = "*"
					}
					fmt.Printf("     %s %-47s | %8.2f | %s\n", marker, trim(p.Title, 47), p.Price, p.VendorName)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of groups")
	cmd.Flags().StringVar(&mode, "mode", "auto", "search mode: auto, exact or fuzzy")
	return cmd
}

func trim(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
