package parser

import (
	"log/slog"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// Extraction modes reported by CompositeExtractor.Mode.
const (
	ModeManual = "manual"
	ModeSchema = "schema"
)

// NewSchemaExtractor validates s and returns the extractor for its
// selector language.
func NewSchemaExtractor(s *schema.Schema, logger *slog.Logger) (Extractor, error) {
	if err := s.Validate(); err != nil {
		return nil, &types.SchemaError{Source: s.Name, Err: err}
	}
	if s.Language() == schema.SelectorXPath {
		x, err := NewXPathExtractor(s, logger)
		if err != nil {
			return nil, err
		}
		return x, nil
	}
	c, err := NewCSSExtractor(s, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CompositeExtractor uses a schema when one is configured and the manual
// rules otherwise. The two are never mixed on a page.
type CompositeExtractor struct {
	manual *RegexExtractor
	schema Extractor
	logger *slog.Logger
}

// NewCompositeExtractor creates an extractor. A nil schema selects the
// manual rules.
func NewCompositeExtractor(s *schema.Schema, logger *slog.Logger) (*CompositeExtractor, error) {
	c := &CompositeExtractor{
		manual: NewRegexExtractor(logger),
		logger: logger.With("component", "composite_extractor"),
	}
	if s != nil {
		ext, err := NewSchemaExtractor(s, logger)
		if err != nil {
			return nil, err
		}
		c.schema = ext
	}
	return c, nil
}

// Mode reports which rule set is in use.
func (c *CompositeExtractor) Mode() string {
	if c.schema != nil {
		return ModeSchema
	}
	return ModeManual
}

// Extract implements Extractor.
func (c *CompositeExtractor) Extract(resp *types.Response) ([]*types.Listing, error) {
	if c.schema != nil {
		return c.schema.Extract(resp)
	}
	return c.manual.Extract(resp)
}
