package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// collectCmd runs every acquisition flow
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run all collection flows",
	Long: `Discover new videos and collect their transcripts while collecting Form 4 filings.
The YouTube and EDGAR flows run concurrently as independent sessions. A failing
flow does not stop the other one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		daysBack, _ := cmd.Flags().GetInt("days-back")

		factory, cleanup, err := loadFactory(ctx, true)
		if err != nil {
			return err
		}
		defer cleanup()

		if daysBack <= 0 {
			daysBack = factory.cfg.EDGAR.DaysBack
		}

		report, err := runCollect(ctx, factory, limit, daysBack)
		if printErr := printResult(report); printErr != nil {
			return printErr
		}
		return err
	},
}

// runCollect runs the YouTube and EDGAR flows side by side. Each flow builds its
// own sources so clients, limiters and session stats are never shared.
func runCollect(ctx context.Context, factory *ServiceFactory, limit, daysBack int) (*CollectReport, error) {
	report := &CollectReport{Errors: map[string]string{}}
	var mu sync.Mutex
	fail := func(flow string, err error) error {
		mu.Lock()
		report.Errors[flow] = err.Error()
		mu.Unlock()
		logger.Error("Collection flow failed", zap.String("flow", flow), zap.Error(err))
		return fmt.Errorf("%s: %w", flow, err)
	}

	var g errgroup.Group

	g.Go(func() error {
		youtubeService, err := factory.YouTubeService(true, true)
		if err != nil {
			return fail("youtube", err)
		}

		discovery, err := youtubeService.DiscoverNewVideos(ctx)
		mu.Lock()
		report.Discovery = discovery
		mu.Unlock()
		if err != nil {
			return fail("youtube", err)
		}

		transcripts, err := youtubeService.CollectTranscripts(ctx, limit, "")
		mu.Lock()
		report.Transcripts = transcripts
		mu.Unlock()
		if err != nil {
			return fail("transcripts", err)
		}
		return nil
	})

	g.Go(func() error {
		filingService, err := factory.FilingService()
		if err != nil {
			return fail("edgar", err)
		}

		batch, err := filingService.CollectFilings(ctx, daysBack)
		mu.Lock()
		report.Filings = batch
		mu.Unlock()
		if err != nil {
			return fail("edgar", err)
		}
		return nil
	})

	return report, g.Wait()
}

func init() {
	collectCmd.Flags().Int("limit", 0, "Maximum number of transcripts to collect (0 means all)")
	collectCmd.Flags().Int("days-back", 0, "Number of days of filings to scan (defaults to edgar.days_back)")

	rootCmd.AddCommand(collectCmd)
}
