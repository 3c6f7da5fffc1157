package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DocScrape/internal/fetcher"
)

// schemaCmd creates the "schema" subcommand, which generates and saves a
// schema without scraping.
func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate an extraction schema from the first results page",
		Example: `  docscrape schema --url "..." --save-schema doctolib_schema.json
  docscrape llm-scrape --url "..." --load-schema doctolib_schema.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			warnAboutRun(cfg, logger)
			if cfg.AI.SaveSchema == "" {
				return fmt.Errorf("--save-schema must name a file")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f, err := fetcher.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create fetcher: %w", err)
			}
			defer f.Close()

			s, err := generateSchema(ctx, cfg, f, newSchemaOracle, logger)
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			if err := s.Save(cfg.AI.SaveSchema); err != nil {
				return err
			}

			fmt.Printf("✅ Schema with %d fields saved to %s\n", len(s.Fields), cfg.AI.SaveSchema)
			fmt.Printf("   Base selector: %s (%s)\n", s.BaseSelector, s.Language())
			for _, fd := range s.Fields {
				fmt.Printf("   - %-12s %s\n", fd.Name, fd.Selector)
			}
			return nil
		},
	}
	addScrapeFlags(cmd)
	addLLMFlags(cmd)
	return cmd
}
