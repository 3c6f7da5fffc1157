package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// schemaInstruction describes the listing fields the schema must extract.
const schemaInstruction = `Analyze this Doctolib search results page and create a CSS extraction schema to extract doctor information.
Each doctor entry should include:
- name: Doctor's full name
- specialty: Medical specialty
- address: Full address including street and city
- distance: Distance from search location (if available)
- sector_info: Insurance sector information (if available)
- profile_url: Link to doctor's profile (if available)

Focus on the main doctor listings, ignore navigation, ads, and footer content.`

// schemaFormat tells the model which JSON layout to answer with.
const schemaFormat = `Answer with a single JSON object and nothing else, using this layout:
{
  "name": "doctors",
  "baseSelector": "<CSS selector matching one element per doctor listing>",
  "fields": [
    {"name": "name", "selector": "<CSS selector relative to baseSelector>", "type": "text"},
    {"name": "profile_url", "selector": "a", "type": "attribute", "attribute": "href"}
  ]
}
Allowed field types are "text", "attribute", "html" and "regex" (with a "pattern").`

// SchemaOracle asks a language model to infer an extraction schema from a
// sample results page.
type SchemaOracle struct {
	client         Generator
	source         string
	maxSampleChars int
	logger         *slog.Logger
}

// NewSchemaOracle creates an oracle. source names the provider in errors.
func NewSchemaOracle(client Generator, source string, maxSampleChars int, logger *slog.Logger) *SchemaOracle {
	return &SchemaOracle{
		client:         client,
		source:         source,
		maxSampleChars: maxSampleChars,
		logger:         logger.With("component", "schema_oracle"),
	}
}

// GenerateSchema sends the cleaned sample HTML to the model and parses its
// answer. Failures come back as *types.SchemaError.
func (o *SchemaOracle) GenerateSchema(ctx context.Context, sampleHTML string) (*schema.Schema, error) {
	if strings.TrimSpace(sampleHTML) == "" {
		return nil, &types.SchemaError{Source: o.source, Err: types.ErrEmptyResponse}
	}

	sample, truncated := Truncate(sampleHTML, o.maxSampleChars)
	if truncated {
		o.logger.Debug("sample truncated", "from", len(sampleHTML), "to", len(sample))
	}

	start := time.Now()
	o.logger.Info("requesting extraction schema", "source", o.source, "sample_chars", len(sample))

	answer, err := o.client.Generate(ctx, buildPrompt(sample))
	if err != nil {
		return nil, &types.SchemaError{Source: o.source, Err: err}
	}

	raw := extractJSON(answer)
	if raw == "" {
		return nil, &types.SchemaError{
			Source: o.source,
			Err:    fmt.Errorf("%w: no JSON object in response", types.ErrInvalidSchema),
		}
	}

	s, err := schema.Parse([]byte(raw))
	if err != nil {
		return nil, &types.SchemaError{Source: o.source, Err: err}
	}

	o.logger.Info("extraction schema generated",
		"base_selector", s.BaseSelector,
		"fields", len(s.Fields),
		"duration", time.Since(start),
	)
	return s, nil
}

func buildPrompt(sample string) string {
	var b strings.Builder
	b.WriteString(schemaInstruction)
	b.WriteString("\n\n")
	b.WriteString(schemaFormat)
	b.WriteString("\n\nHTML:\n")
	b.WriteString(sample)
	return b.String()
}

// Truncate cuts s to at most limit bytes without splitting a UTF-8
// sequence. A limit <= 0 disables truncation.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

// extractJSON returns the first balanced JSON object in an LLM response,
// skipping braces inside strings. It returns "" when there is none.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
