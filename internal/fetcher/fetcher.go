// Package fetcher retrieves search results pages, either rendered in a
// headless browser or as raw HTML over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// Fetcher is the interface for all page fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the page at the request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher selected by cfg.Scraping.Fetcher.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Scraping.Fetcher {
	case "http":
		return NewHTTPFetcher(&cfg.Scraping, logger)
	case "browser", "":
		var opts []BrowserOption
		if cfg.Scraping.Stealth {
			opts = append(opts, WithStealth(DefaultStealthConfig()))
		}
		return NewBrowserFetcher(&cfg.Scraping, logger, opts...)
	default:
		return nil, fmt.Errorf("unknown fetcher %q", cfg.Scraping.Fetcher)
	}
}
