package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "review-harvester",
	Short: "Collect public reviews for places on a map portal",
	Long: `review-harvester drives a real browser through a list of place pages,
reveals the full review history for each one, and appends every review it has
not seen before to a JSONL file. Re-running never duplicates a review.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
