package parser

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// XPathExtractor applies an XPath extraction schema via htmlquery.
type XPathExtractor struct {
	schema   *schema.Schema
	base     *xpath.Expr
	fields   []*xpath.Expr
	patterns []*regexp.Regexp
	logger   *slog.Logger
}

// NewXPathExtractor compiles every expression of s.
func NewXPathExtractor(s *schema.Schema, logger *slog.Logger) (*XPathExtractor, error) {
	base, err := xpath.Compile(s.BaseSelector)
	if err != nil {
		return nil, &types.ParseError{Selector: s.BaseSelector, Err: err}
	}
	fields := make([]*xpath.Expr, len(s.Fields))
	for i, f := range s.Fields {
		if f.Selector == "" {
			continue
		}
		expr, err := xpath.Compile(f.Selector)
		if err != nil {
			return nil, &types.ParseError{Selector: f.Selector, Err: err}
		}
		fields[i] = expr
	}
	patterns, err := compilePatterns(s)
	if err != nil {
		return nil, err
	}

	return &XPathExtractor{
		schema:   s,
		base:     base,
		fields:   fields,
		patterns: patterns,
		logger:   logger.With("component", "xpath_extractor"),
	}, nil
}

// Extract implements Extractor.
func (e *XPathExtractor) Extract(resp *types.Response) ([]*types.Listing, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{
			URL: resp.PageURL(),
			Err: err,
		}
	}

	matches := htmlquery.QuerySelectorAll(doc, e.base)
	nodes := innermost(matches)
	e.logger.Debug("base expression matched",
		"selector", e.schema.BaseSelector,
		"matches", len(matches),
		"listings", len(nodes),
	)

	pageURL := resp.PageURL()
	listings := make([]*types.Listing, 0, len(nodes))
	for _, n := range nodes {
		l := types.NewListing(pageURL, resp.Page())
		for i, f := range e.schema.Fields {
			if l.Has(f.Name) {
				continue
			}
			l.SetField(f.Name, e.extractField(n, f, e.fields[i], e.patterns[i]))
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func (e *XPathExtractor) extractField(node *html.Node, f schema.Field, expr *xpath.Expr, re *regexp.Regexp) types.Field {
	target := node
	if expr != nil {
		target = htmlquery.QuerySelector(node, expr)
	}
	if target == nil {
		return types.Absent()
	}

	switch f.Type {
	case schema.TypeAttribute:
		val := strings.TrimSpace(htmlquery.SelectAttr(target, f.Attribute))
		if val == "" {
			return types.Absent()
		}
		return types.Matched(val)
	case schema.TypeHTML:
		val := strings.TrimSpace(htmlquery.OutputHTML(target, false))
		if val == "" {
			return types.Absent()
		}
		return types.Matched(val)
	case schema.TypeRegex:
		return matchPattern(re, htmlquery.OutputHTML(target, true))
	default:
		return textField(htmlquery.InnerText(target))
	}
}
