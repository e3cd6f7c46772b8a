package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/RMahshie/hearcheck/internal/repository"
	"github.com/RMahshie/hearcheck/internal/repository/backend"
	"github.com/RMahshie/hearcheck/internal/scoring"
	"github.com/RMahshie/hearcheck/internal/tui"
	"github.com/RMahshie/hearcheck/pkg/models"
)

var showAudiogram bool

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage stored results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResults(cmd, func(ctx context.Context, repo repository.ResultRepository) error {
			records, err := repo.ListAll(ctx)
			if err != nil {
				return err
			}
			printResults(records)
			return nil
		})
	},
}

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete the result at index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		return withResults(cmd, func(ctx context.Context, repo repository.ResultRepository) error {
			if err := repo.DeleteAt(ctx, index); err != nil {
				return err
			}
			fmt.Printf("Deleted result %d\n", index)
			return nil
		})
	},
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResults(cmd, func(ctx context.Context, repo repository.ResultRepository) error {
			if err := repo.DeleteAll(ctx); err != nil {
				return err
			}
			fmt.Println("All results deleted")
			return nil
		})
	},
}

func init() {
	resultsListCmd.Flags().BoolVar(&showAudiogram, "audiogram", false, "print the audiogram of each result")
	resultsCmd.AddCommand(resultsListCmd, resultsDeleteCmd, resultsClearCmd)
	rootCmd.AddCommand(resultsCmd)
}

func withResults(cmd *cobra.Command, fn func(context.Context, repository.ResultRepository) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, store, err := backend.OpenResults(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening result store: %w", err)
	}
	defer store.Close()
	return fn(ctx, repo)
}

func printResults(records []models.TestResultRecord) {
	if len(records) == 0 {
		fmt.Println("No results stored.")
		return
	}
	fmt.Printf("%-5s  %-20s  %-10s  %-32s  %-10s  %s\n", "INDEX", "DATE", "LEFT", "", "RIGHT", "")
	for i, r := range records {
		fmt.Printf("%-5d  %-20s  %-10s  %-32s  %-10s  %s\n",
			i, r.Date,
			fmt.Sprintf("%.1f dB", r.LeftAvg), r.LeftCondition,
			fmt.Sprintf("%.1f dB", r.RightAvg), r.RightCondition)
		if scoring.Asymmetry(r.LeftAvg, r.RightAvg) {
			fmt.Printf("       %s\n", scoring.AsymmetryWarning)
		}
		if showAudiogram && len(r.Thresholds) > 0 {
			fmt.Println(tui.RenderAudiogram(scoring.Audiogram(r.Thresholds)))
		}
	}
}
