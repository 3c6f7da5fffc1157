package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/DocScrape/internal/ai"
	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/engine"
	"github.com/IshaanNene/DocScrape/internal/parser"
	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// schemaGenerator produces an extraction schema from sample HTML.
type schemaGenerator interface {
	GenerateSchema(ctx context.Context, sampleHTML string) (*schema.Schema, error)
}

// oracleFactory builds the schema generator. It is only called when a
// schema actually has to be generated.
type oracleFactory func(cfg config.AIConfig, logger *slog.Logger) (schemaGenerator, error)

func newSchemaOracle(cfg config.AIConfig, logger *slog.Logger) (schemaGenerator, error) {
	cfg.APIKey = ai.ResolveAPIKey(cfg)
	client, err := ai.NewLLMClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return ai.NewSchemaOracle(client, cfg.Provider, cfg.MaxSampleChars, logger), nil
}

// sampleFetcher records whether the sample page was fetched, so the run
// can wait the page delay before fetching it again.
type sampleFetcher struct {
	engine.Fetcher
	used bool
}

func (f *sampleFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.used = true
	return f.Fetcher.Fetch(ctx, req)
}

// resolveSchema returns the schema for an llm-scrape run, or nil when the
// manual rules should be used. A schema file given with --load-schema wins
// and the model is never contacted for it. A file that cannot be read is
// regenerated; one that reads but does not validate is not.
func resolveSchema(ctx context.Context, cfg *config.Config, f engine.Fetcher, newOracle oracleFactory, logger *slog.Logger) *schema.Schema {
	if path := cfg.AI.LoadSchema; path != "" {
		s, err := schema.Load(path)
		if err == nil {
			logger.Info("schema loaded", "path", path, "fields", len(s.Fields))
			return s
		}
		if errors.Is(err, types.ErrInvalidSchema) {
			logger.Warn("schema file invalid, using built-in rules", "path", path, "error", err)
			return nil
		}
		logger.Warn("schema file unreadable, generating a new one", "path", path, "error", err)
	}

	s, err := generateSchema(ctx, cfg, f, newOracle, logger)
	if err != nil {
		logger.Warn("schema generation failed, using built-in rules", "error", err)
		return nil
	}

	if path := cfg.AI.SaveSchema; path != "" {
		if err := s.Save(path); err != nil {
			logger.Warn("schema not saved", "path", path, "error", err)
		} else {
			logger.Info("schema saved", "path", path)
		}
	}
	return s
}

// generateSchema fetches page 1, asks the model for a schema built from its
// cleaned HTML and checks that the schema finds at least one listing on
// that same page.
func generateSchema(ctx context.Context, cfg *config.Config, f engine.Fetcher, newOracle oracleFactory, logger *slog.Logger) (*schema.Schema, error) {
	oracle, err := newOracle(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("create schema oracle: %w", err)
	}

	req, err := types.NewRequest(config.PageURL(config.CleanBaseURL(cfg.BaseURL), 1), 1)
	if err != nil {
		return nil, err
	}
	req.Timeout = cfg.Scraping.PageTimeout

	logger.Info("fetching sample page", "url", req.URLString())
	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	cleaned, err := parser.Clean(resp.Body)
	if err != nil {
		return nil, &types.ParseError{URL: req.URLString(), Err: err}
	}

	start := time.Now()
	s, err := oracle.GenerateSchema(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	logger.Info("schema generated",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"fields", len(s.Fields),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	ext, err := parser.NewSchemaExtractor(s, logger)
	if err != nil {
		return nil, err
	}
	listings, err := ext.Extract(resp)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, &types.SchemaError{Source: cfg.AI.Provider, Err: types.ErrNoListings}
	}
	return s, nil
}
