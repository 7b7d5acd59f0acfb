// =============================================================================
// COVID Scenes - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// and parses the dataset without rendering anything.
//
// COMMAND USAGE:
//   scenes validate [--max-issues N]
//
// EXIT STATUS:
//   Non-zero when the configuration is invalid, the source cannot be read,
//   a required column is missing, or the reject policy met a malformed row.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/covid-scenes/internal/aggregate"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/types"
)

var maxIssues int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the dataset",
	Long: `The validate command loads the configuration, fetches and parses the
dataset with the configured malformed-row policy and prints a report of every
row that was skipped or zero-filled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().IntVar(&maxIssues, "max-issues", 20, "Number of malformed rows to list (0 lists all)")
}

func runValidate(cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	fmt.Println("Configuration OK")
	fmt.Printf("Source:   %s\n", mainConfig.Source)
	fmt.Printf("Policy:   %s\n", mainConfig.MalformedPolicy)

	l, closeCache, err := newLoader(mainConfig)
	if err != nil {
		return err
	}
	defer closeCache()

	ds, err := l.Load(ctx, mainConfig.Source)
	if err != nil && !errors.Is(err, records.ErrEmptyDataset) {
		return fmt.Errorf("validation failed: %w", err)
	}

	report := ds.Report
	summary := aggregate.Summary(ds.Records)

	fmt.Println("\n=== Dataset ===")
	if ds.Stale {
		fmt.Println("Warning: source unavailable, validated the cached copy")
	}
	fmt.Printf("Rows:         %d\n", report.Rows)
	fmt.Printf("Records:      %d\n", report.Accepted)
	fmt.Printf("Skipped:      %d\n", report.Skipped())
	fmt.Printf("Zero-filled:  %d\n", report.ZeroFilled())
	fmt.Printf("States:       %d\n", summary.States)
	fmt.Printf("Dates:        %d", summary.Dates)
	if summary.Dates > 0 {
		fmt.Printf(" (%s to %s)", summary.First.Format(types.DateLayout), summary.Last.Format(types.DateLayout))
	}
	fmt.Println()

	if len(report.Issues) > 0 {
		fmt.Println("\n=== Malformed Rows ===")
		for i, issue := range report.Issues {
			if maxIssues > 0 && i == maxIssues {
				fmt.Printf("  ... %d more\n", len(report.Issues)-maxIssues)
				break
			}
			fmt.Printf("  [%s] %v\n", issue.Action, issue.Err)
		}
	}

	if errors.Is(err, records.ErrEmptyDataset) {
		fmt.Println("\nWarning: the dataset has no usable rows")
	}
	return nil
}
