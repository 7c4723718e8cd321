package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// transcriptCmd represents the transcript command
var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Transcript operations for videos",
}

// transcriptCollectCmd fetches transcripts of videos without a processing record
var transcriptCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect transcripts of stored videos",
	Long: `Fetch transcripts for stored videos that have not been processed yet,
write them to the transcript directory and record the extract step.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")
		language, _ := cmd.Flags().GetString("language")

		factory, cleanup, err := loadFactory(ctx, true)
		if err != nil {
			return err
		}
		defer cleanup()

		youtubeService, err := factory.YouTubeService(false, true)
		if err != nil {
			return err
		}

		result, err := youtubeService.CollectTranscripts(ctx, limit, language)
		if err != nil {
			return fmt.Errorf("failed to collect transcripts: %w", err)
		}
		return printResult(result)
	},
}

func init() {
	transcriptCollectCmd.Flags().Int("limit", 0, "Maximum number of videos to process (0 means all)")
	transcriptCollectCmd.Flags().String("language", "", "Transcript language code (defaults to youtube.language)")

	transcriptCmd.AddCommand(transcriptCollectCmd)
	rootCmd.AddCommand(transcriptCmd)
}
