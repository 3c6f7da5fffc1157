package parser

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// CSSExtractor applies a CSS extraction schema via goquery.
type CSSExtractor struct {
	schema   *schema.Schema
	patterns []*regexp.Regexp
	logger   *slog.Logger
}

// NewCSSExtractor checks every selector of s and returns an extractor for it.
func NewCSSExtractor(s *schema.Schema, logger *slog.Logger) (*CSSExtractor, error) {
	if _, err := cascadia.ParseGroup(s.BaseSelector); err != nil {
		return nil, &types.ParseError{Selector: s.BaseSelector, Err: err}
	}
	for _, f := range s.Fields {
		if f.Selector == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(f.Selector); err != nil {
			return nil, &types.ParseError{Selector: f.Selector, Err: err}
		}
	}
	patterns, err := compilePatterns(s)
	if err != nil {
		return nil, err
	}

	return &CSSExtractor{
		schema:   s,
		patterns: patterns,
		logger:   logger.With("component", "css_extractor"),
	}, nil
}

// Extract implements Extractor.
func (e *CSSExtractor) Extract(resp *types.Response) ([]*types.Listing, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{
			URL: resp.PageURL(),
			Err: err,
		}
	}

	matches := doc.Find(e.schema.BaseSelector)
	nodes := innermost(matches.Nodes)
	e.logger.Debug("base selector matched",
		"selector", e.schema.BaseSelector,
		"matches", matches.Length(),
		"listings", len(nodes),
	)

	pageURL := resp.PageURL()
	listings := make([]*types.Listing, 0, len(nodes))
	for _, n := range nodes {
		sel := matches.FilterNodes(n)
		l := types.NewListing(pageURL, resp.Page())
		for i, f := range e.schema.Fields {
			if l.Has(f.Name) {
				continue
			}
			l.SetField(f.Name, e.extractField(sel, f, e.patterns[i]))
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// extractField applies one field rule inside a listing element.
func (e *CSSExtractor) extractField(sel *goquery.Selection, f schema.Field, re *regexp.Regexp) types.Field {
	target := sel
	if f.Selector != "" {
		target = sel.Find(f.Selector).First()
	}
	if target.Length() == 0 {
		return types.Absent()
	}

	switch f.Type {
	case schema.TypeAttribute:
		val, ok := target.Attr(f.Attribute)
		val = strings.TrimSpace(val)
		if !ok || val == "" {
			return types.Absent()
		}
		return types.Matched(val)
	case schema.TypeHTML:
		val, err := target.Html()
		if err != nil || strings.TrimSpace(val) == "" {
			return types.Absent()
		}
		return types.Matched(strings.TrimSpace(val))
	case schema.TypeRegex:
		val, err := goquery.OuterHtml(target)
		if err != nil {
			return types.Absent()
		}
		return matchPattern(re, val)
	default:
		return textField(target.Text())
	}
}
