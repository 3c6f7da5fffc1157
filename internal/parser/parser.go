package parser

import (
	"github.com/IshaanNene/DocScrape/internal/types"
)

// Extractor turns one fetched results page into raw listings.
type Extractor interface {
	// Extract returns one listing per detected listing block, in page
	// order. Per-block failures are logged and skipped, never returned.
	Extract(resp *types.Response) ([]*types.Listing, error)
}
