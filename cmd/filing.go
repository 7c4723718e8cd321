package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// filingCmd represents the filing command
var filingCmd = &cobra.Command{
	Use:   "filing",
	Short: "SEC EDGAR Form 4 operations",
}

// filingCollectCmd stores recent Form 4 filings
var filingCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect recent Form 4 filings",
	Long: `Scan the EDGAR current filings feed for Form 4 filings of the last days,
parse their ownership documents and store the ones not stored yet.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		factory, cleanup, err := loadFactory(ctx, true)
		if err != nil {
			return err
		}
		defer cleanup()

		daysBack, _ := cmd.Flags().GetInt("days-back")
		if daysBack <= 0 {
			daysBack = factory.cfg.EDGAR.DaysBack
		}

		filingService, err := factory.FilingService()
		if err != nil {
			return err
		}

		batch, err := filingService.CollectFilings(ctx, daysBack)
		if err != nil {
			return fmt.Errorf("failed to collect filings: %w", err)
		}
		return printResult(batch)
	},
}

// filingCIKCmd resolves a ticker symbol
var filingCIKCmd = &cobra.Command{
	Use:   "cik [TICKER]",
	Short: "Look up the CIK of a ticker",
	Long:  `Resolve a ticker symbol to its zero padded 10 digit SEC Central Index Key.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		factory, cleanup, err := loadFactory(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()

		filingService, err := factory.FilingService()
		if err != nil {
			return err
		}

		cik, err := filingService.LookupCIK(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to look up CIK: %w", err)
		}
		fmt.Println(cik)
		return nil
	},
}

// filingSearchCmd lists a company's recent filings
var filingSearchCmd = &cobra.Command{
	Use:   "search [CIK|TICKER]",
	Short: "Search a company's recent filings",
	Long: `List the recent filings of a company from the EDGAR submissions API.
Filter by form type and by an inclusive filing date range (YYYY-MM-DD).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		form, _ := cmd.Flags().GetString("form")
		from, err := parseDayFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := parseDayFlag(cmd, "to")
		if err != nil {
			return err
		}

		factory, cleanup, err := loadFactory(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()

		filingService, err := factory.FilingService()
		if err != nil {
			return err
		}

		result, err := filingService.SearchFilings(ctx, args[0], form, from, to)
		if err != nil {
			return fmt.Errorf("failed to search filings: %w", err)
		}
		return printResult(result)
	},
}

// parseDayFlag reads an optional YYYY-MM-DD flag. Unset yields the zero time.
func parseDayFlag(cmd *cobra.Command, name string) (time.Time, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (expected YYYY-MM-DD)", name, value)
	}
	return day, nil
}

func init() {
	filingCollectCmd.Flags().Int("days-back", 0, "Number of days to look back (defaults to edgar.days_back)")
	filingSearchCmd.Flags().String("form", "", "Only list filings of this form type, e.g. 4 or 10-K")
	filingSearchCmd.Flags().String("from", "", "Earliest filing date (YYYY-MM-DD)")
	filingSearchCmd.Flags().String("to", "", "Latest filing date (YYYY-MM-DD)")

	filingCmd.AddCommand(filingCollectCmd)
	filingCmd.AddCommand(filingCIKCmd)
	filingCmd.AddCommand(filingSearchCmd)
	rootCmd.AddCommand(filingCmd)
}
