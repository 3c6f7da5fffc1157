package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/engine"
	"github.com/IshaanNene/DocScrape/internal/fetcher"
	"github.com/IshaanNene/DocScrape/internal/parser"
	"github.com/IshaanNene/DocScrape/internal/pipeline"
	"github.com/IshaanNene/DocScrape/internal/report"
	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/storage"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// pageWarnThreshold is the page count above which a run is flagged as
// heavy on the site.
const pageWarnThreshold = 20

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape doctor listings with the built-in rules",
		Example: `  docscrape scrape --url "` + config.DefaultBaseURL + `"
  docscrape scrape --url "..." --pages 5 --delay 3s --json doctors.json --no-csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, false)
		},
	}
	addScrapeFlags(cmd)
	return cmd
}

// llmScrapeCmd creates the "llm-scrape" subcommand.
func llmScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm-scrape",
		Short: "Scrape doctor listings with a model-generated extraction schema",
		Long: `Ask a language model for an extraction schema built from the first results
page, save it, and use it for every page. With --load-schema an existing
schema file is reused and the model is not contacted. If schema generation
fails the built-in rules are used instead.`,
		Example: `  GROQ_API_KEY=... docscrape llm-scrape --url "..." --pages 3
  docscrape llm-scrape --url "..." --llm-provider ollama --llm-model llama3.2
  docscrape llm-scrape --url "..." --load-schema doctolib_schema.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, true)
		},
	}
	addScrapeFlags(cmd)
	addLLMFlags(cmd)
	cmd.Flags().StringVar(&loadSchema, "load-schema", "", `schema file to reuse ("builtin" for the bundled schema)`)
	return cmd
}

func addScrapeFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringVar(&baseURL, "url", "", "Doctolib search URL (required), e.g. "+config.DefaultBaseURL)
	cmd.Flags().IntVar(&pages, "pages", d.MaxPages, "number of results pages to scrape")
	cmd.Flags().StringVar(&jsonFile, "json", d.Output.JSONFile, "JSON output file")
	cmd.Flags().StringVar(&csvFile, "csv", d.Output.CSVFile, "CSV output file")
	cmd.Flags().StringVar(&jsonlFile, "jsonl", "", "also write newline-delimited JSON to this file")
	cmd.Flags().BoolVar(&noJSON, "no-json", false, "skip JSON output")
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "skip CSV output")
	cmd.Flags().StringVar(&delay, "delay", d.Scraping.DelayBetweenPages.String(), "delay between page fetches (e.g. 2s, 500ms)")
	cmd.Flags().StringVar(&timeout, "timeout", d.Scraping.PageTimeout.String(), "page load timeout")
	cmd.Flags().StringVar(&fetcherType, "fetcher", d.Scraping.Fetcher, "page fetcher: browser or http")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	cmd.Flags().StringVar(&debugHTML, "debug-html", "", "write the cleaned HTML of page 1 to this file")
}

func addLLMFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringVar(&llmProvider, "llm-provider", d.AI.Provider, "LLM provider: groq, openai, ollama or custom")
	cmd.Flags().StringVar(&llmModel, "llm-model", d.AI.Model, "LLM model name")
	cmd.Flags().StringVar(&llmAPIKey, "llm-api-key", "", "API key (default: DOCSCRAPE_AI_API_KEY, GROQ_API_KEY or OPENAI_API_KEY)")
	cmd.Flags().StringVar(&llmEndpoint, "llm-endpoint", "", "provider endpoint (default: the provider's public API)")
	cmd.Flags().StringVar(&saveSchema, "save-schema", d.AI.SaveSchema, "where to save a generated schema")
}

// parseDuration accepts Go durations and bare seconds ("2", "1.5").
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a duration", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func runScrape(cmd *cobra.Command, useLLM bool) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	warnAboutRun(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	fmt.Printf("🩺 DocScrape %s\n", config.Version)
	fmt.Printf("   URL:     %s\n", config.CleanBaseURL(cfg.BaseURL))
	fmt.Printf("   Pages:   %d (delay %s, fetcher %s)\n", cfg.MaxPages, cfg.Scraping.DelayBetweenPages, f.Type())

	var s *schema.Schema
	if useLLM {
		fmt.Printf("   LLM:     %s/%s\n", cfg.AI.Provider, cfg.AI.Model)
		sampler := &sampleFetcher{Fetcher: f}
		s = resolveSchema(ctx, cfg, sampler, newSchemaOracle, logger)
		if sampler.used {
			if err := sleepCtx(ctx, cfg.Scraping.DelayBetweenPages); err != nil {
				return err
			}
		}
	}

	extractor, err := parser.NewCompositeExtractor(s, logger)
	if err != nil {
		logger.Warn("schema cannot be applied, using built-in rules", "error", err)
		extractor, _ = parser.NewCompositeExtractor(nil, logger)
	}
	fmt.Printf("   Rules:   %s\n\n", extractor.Mode())

	store, err := storage.New(cfg.Output, logger)
	if err != nil {
		return err
	}

	eng := engine.New(cfg, logger)
	eng.SetFetcher(f)
	eng.SetExtractor(extractor)
	eng.SetNormalizer(pipeline.NewDefault(logger))
	eng.OnPage(printPageResult(cfg.MaxPages))
	if cfg.Output.DebugHTML != "" {
		eng.OnResponse(debugHTMLWriter(cfg.Output.DebugHTML, logger))
	}

	start := time.Now()
	res, runErr := eng.Run(ctx)
	if res == nil {
		store.Close()
		return runErr
	}
	if runErr != nil {
		logger.Warn("run interrupted, writing records gathered so far", "error", runErr)
	}

	if err := writeResults(store, res.Doctors); err != nil {
		return err
	}

	stats := eng.Stats().Snapshot()
	fmt.Printf("\n✅ Scrape complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Pages:   %v fetched, %v failed (stopped: %s)\n", stats["pages_fetched"], stats["pages_failed"], res.Stopped)
	fmt.Printf("   Records: %v extracted, %v dropped\n", stats["records_extracted"], stats["records_dropped"])
	for _, path := range outputPaths(cfg.Output) {
		fmt.Printf("   Output:  %s\n", path)
	}
	fmt.Println()
	report.Summarize(res.Doctors, 3).Render(os.Stdout)

	if isCancelled(runErr) {
		return fmt.Errorf("interrupted after %d pages: %w", len(res.Pages), runErr)
	}
	return runErr
}

// warnAboutRun logs the non-fatal concerns about a configuration.
func warnAboutRun(cfg *config.Config, logger *slog.Logger) {
	if !config.IsDoctolibURL(cfg.BaseURL) {
		logger.Warn("URL is not a Doctolib address, the built-in rules may not match", "url", cfg.BaseURL)
	}
	if cfg.MaxPages > pageWarnThreshold {
		logger.Warn("scraping many pages puts load on the site; consider fewer pages or a longer delay",
			"pages", cfg.MaxPages, "delay", cfg.Scraping.DelayBetweenPages)
	}
}

// writeResults stores and flushes every record. Any failure is fatal.
func writeResults(store *storage.MultiStorage, doctors []*types.Doctor) error {
	if err := store.Store(doctors); err != nil {
		store.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func outputPaths(oc config.OutputConfig) []string {
	var paths []string
	if !oc.NoJSON && oc.JSONFile != "" {
		paths = append(paths, oc.JSONFile)
	}
	if !oc.NoCSV && oc.CSVFile != "" {
		paths = append(paths, oc.CSVFile)
	}
	if oc.JSONLFile != "" {
		paths = append(paths, oc.JSONLFile)
	}
	return paths
}

func printPageResult(maxPages int) engine.PageCallback {
	return func(pr engine.PageResult) {
		switch {
		case pr.State == engine.StateFailedPage:
			fmt.Printf("   ⚠️  page %d/%d failed: %v\n", pr.Page, maxPages, pr.Err)
		case pr.Empty():
			fmt.Printf("   ⏹  page %d/%d: no doctors found, stopping\n", pr.Page, maxPages)
		default:
			fmt.Printf("   📄 page %d/%d: %d doctors (%s)\n", pr.Page, maxPages, len(pr.Doctors), pr.Duration.Round(time.Millisecond))
		}
	}
}

// debugHTMLWriter saves the cleaned HTML of the first fetched page.
func debugHTMLWriter(path string, logger *slog.Logger) engine.ResponseCallback {
	written := false
	return func(resp *types.Response) {
		if written {
			return
		}
		written = true
		if err := writeCleanedHTML(path, resp.Body); err != nil {
			logger.Warn("debug HTML not written", "path", path, "error", err)
			return
		}
		logger.Info("debug HTML written", "path", path, "page", resp.Request.Page)
	}
}

func writeCleanedHTML(path string, body []byte) error {
	cleaned, err := parser.Clean(body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(cleaned), 0o644)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isCancelled reports whether err came from an interrupted run.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, types.ErrRunStopped)
}
