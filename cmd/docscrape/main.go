package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/DocScrape/internal/ai"
	"github.com/IshaanNene/DocScrape/internal/config"
)

var (
	cfgFile string
	verbose bool

	baseURL     string
	pages       int
	jsonFile    string
	csvFile     string
	jsonlFile   string
	noJSON      bool
	noCSV       bool
	delay       string
	timeout     string
	fetcherType string
	headed      bool
	debugHTML   string

	llmProvider string
	llmModel    string
	llmAPIKey   string
	llmEndpoint string
	saveSchema  string
	loadSchema  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docscrape",
		Short: "DocScrape: Doctolib doctor listing scraper",
		Long: `DocScrape walks the pages of a Doctolib search, extracts one record per
doctor listing and writes them to JSON and CSV.

Extraction uses hand-written rules by default. The llm-scrape command asks a
language model for an extraction schema once, caches it to a file and reuses
it on later runs with --load-schema.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(llmScrapeCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env, the config file and the environment, then applies
// the flags the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := applyCLIOverrides(cmd, cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, setupLogger(cfg.Logging), nil
}

// setupLogger creates a structured logger.
func setupLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(lc.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides copies the flags that were set on the command line into
// cfg. Flags left at their defaults do not override the file or env.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("url") {
		cfg.BaseURL = strings.TrimSpace(baseURL)
	}
	if changed("pages") {
		cfg.MaxPages = pages
	}
	if changed("json") {
		cfg.Output.JSONFile = jsonFile
	}
	if changed("csv") {
		cfg.Output.CSVFile = csvFile
	}
	if changed("jsonl") {
		cfg.Output.JSONLFile = jsonlFile
	}
	if changed("no-json") {
		cfg.Output.NoJSON = noJSON
	}
	if changed("no-csv") {
		cfg.Output.NoCSV = noCSV
	}
	if changed("debug-html") {
		cfg.Output.DebugHTML = debugHTML
	}
	if changed("delay") {
		d, err := parseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid --delay: %w", err)
		}
		cfg.Scraping.DelayBetweenPages = d
	}
	if changed("timeout") {
		d, err := parseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}
		cfg.Scraping.PageTimeout = d
	}
	if changed("fetcher") {
		cfg.Scraping.Fetcher = strings.ToLower(fetcherType)
	}
	if changed("headed") {
		cfg.Scraping.Headless = !headed
	}

	if changed("llm-provider") {
		cfg.AI.Provider = strings.ToLower(llmProvider)
		if !changed("llm-model") && cfg.AI.Model == config.DefaultConfig().AI.Model {
			cfg.AI.Model = ai.DefaultModel(ai.LLMProvider(cfg.AI.Provider))
		}
	}
	if changed("llm-model") {
		cfg.AI.Model = llmModel
	}
	if changed("llm-api-key") {
		cfg.AI.APIKey = llmAPIKey
	}
	if changed("llm-endpoint") {
		cfg.AI.Endpoint = llmEndpoint
	}
	if changed("save-schema") {
		cfg.AI.SaveSchema = saveSchema
	}
	if changed("load-schema") {
		cfg.AI.LoadSchema = loadSchema
	}
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("DocScrape %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if ai.ResolveAPIKey(cfg.AI) != "" {
				fmt.Printf("\nAPI key for %s: set\n", cfg.AI.Provider)
			} else {
				fmt.Printf("\nAPI key for %s: not set\n", cfg.AI.Provider)
			}
			return nil
		},
	}
}
