package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// channelCmd represents the channel command
var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "YouTube channel operations",
	Long:  `Operations for managing YouTube channels.`,
}

// channelInitCmd stores the upload backlog of a channel
var channelInitCmd = &cobra.Command{
	Use:   "init [HANDLE]",
	Short: "Initialize a channel from its upload backlog",
	Long:  `Store a channel and its most recent uploads using yt-dlp, then mark it initialized.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handle := strings.TrimPrefix(args[0], "@")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		factory, cleanup, err := loadFactory(ctx, true)
		if err != nil {
			return err
		}
		defer cleanup()

		youtubeService, err := factory.YouTubeService(false, false)
		if err != nil {
			return err
		}

		result, err := youtubeService.InitializeChannel(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to initialize channel: %w", err)
		}
		return printResult(result)
	},
}

// channelDiscoverCmd stores new uploads of initialized channels
var channelDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover new videos of initialized channels",
	Long:  `Query the YouTube Data API for the newest uploads of every initialized channel and store the new ones.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		factory, cleanup, err := loadFactory(ctx, true)
		if err != nil {
			return err
		}
		defer cleanup()

		youtubeService, err := factory.YouTubeService(true, false)
		if err != nil {
			return err
		}

		result, err := youtubeService.DiscoverNewVideos(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover videos: %w", err)
		}
		return printResult(result)
	},
}

func init() {
	channelCmd.AddCommand(channelInitCmd)
	channelCmd.AddCommand(channelDiscoverCmd)
	rootCmd.AddCommand(channelCmd)
}
