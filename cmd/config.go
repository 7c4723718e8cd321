package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/ingest/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage configuration settings for ingest.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with database, HTTP and source settings.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}
		userAgent, _ := cmd.Flags().GetString("user-agent")

		if err := config.InitConfig(databaseURL, userAgent); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Printf("Created configuration file: %s\n", configPath)
		fmt.Println("Please edit the database_url, user_agent and youtube.api_key in this file.")

		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration file path and the effective settings. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration file: %s\n\n", configPath)

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Print(formatConfig(cfg))
		return nil
	},
}

// formatConfig renders the effective settings with secrets masked
func formatConfig(cfg *config.Config) string {
	var output strings.Builder

	databaseURL := cfg.DatabaseURL
	if dbConfig, err := cfg.ParseDatabaseConfig(); err == nil {
		masked := *dbConfig
		masked.Password = maskSecret(dbConfig.Password)
		databaseURL = masked.URL()
	}

	output.WriteString(fmt.Sprintf("DATABASE_URL: %s\n", databaseURL))
	output.WriteString(fmt.Sprintf("User-Agent: %s\n", cfg.UserAgent))
	backoff := 0.0
	if cfg.HTTP.BackoffFactor != nil {
		backoff = *cfg.HTTP.BackoffFactor
	}
	output.WriteString(fmt.Sprintf("HTTP: max_retries=%d backoff_factor=%.1f timeout=%s rate_limit=%s-%s\n",
		cfg.HTTP.MaxRetries, backoff, cfg.HTTP.Timeout, cfg.HTTP.RateLimit.Min, cfg.HTTP.RateLimit.Max))
	output.WriteString(fmt.Sprintf("Proxy: %s:%d user=%s password=%s\n",
		cfg.Proxy.Host, cfg.Proxy.Port, cfg.Proxy.Username, maskSecret(cfg.Proxy.Password)))
	output.WriteString(fmt.Sprintf("YouTube: api=%s site=%s api_key=%s language=%s transcript_dir=%s\n",
		cfg.YouTube.APIBaseURL, cfg.YouTube.SiteBaseURL, maskSecret(cfg.YouTube.APIKey),
		cfg.YouTube.Language, cfg.YouTube.TranscriptDir))
	output.WriteString(fmt.Sprintf("EDGAR: base=%s page_size=%d days_back=%d\n",
		cfg.EDGAR.BaseURL, cfg.EDGAR.PageSize, cfg.EDGAR.DaysBack))

	return output.String()
}

// maskSecret keeps the last four characters of long secrets
func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

func init() {
	configInitCmd.Flags().String("user-agent", "", "User-Agent with a contact e-mail (required by SEC EDGAR)")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
