// Package schema defines the extraction schema: a base selector that picks
// out one element per listing plus a selector rule per field. Schemas are
// produced by the schema oracle or written by hand, saved as JSON and
// reused across runs without further oracle calls.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"

	"github.com/IshaanNene/DocScrape/internal/types"
)

// Selector languages.
const (
	SelectorCSS   = "css"
	SelectorXPath = "xpath"
)

// Field value types.
const (
	TypeText      = "text"
	TypeAttribute = "attribute"
	TypeHTML      = "html"
	TypeRegex     = "regex"
)

// BuiltinName selects Fallback() in place of a schema file path.
const BuiltinName = "builtin"

// Field is the extraction rule for one record field, evaluated relative to
// the element matched by the schema's base selector.
type Field struct {
	Name      string `json:"name"`
	Selector  string `json:"selector,omitempty"`
	Type      string `json:"type"`
	Attribute string `json:"attribute,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// Schema is a persisted set of extraction rules.
type Schema struct {
	Name         string  `json:"name"`
	BaseSelector string  `json:"baseSelector"`
	SelectorType string  `json:"selectorType,omitempty"`
	Fields       []Field `json:"fields"`
}

// Language returns the selector language, defaulting to CSS.
func (s *Schema) Language() string {
	if s.SelectorType == "" {
		return SelectorCSS
	}
	return s.SelectorType
}

// Rules maps field names to their rules. The first rule wins when a name
// repeats.
func (s *Schema) Rules() map[string]Field {
	rules := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		if _, ok := rules[f.Name]; !ok {
			rules[f.Name] = f
		}
	}
	return rules
}

// Validate checks that the schema can be applied.
func (s *Schema) Validate() error {
	if s.BaseSelector == "" {
		return fmt.Errorf("%w: missing baseSelector", types.ErrInvalidSchema)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: no fields", types.ErrInvalidSchema)
	}
	switch s.Language() {
	case SelectorCSS, SelectorXPath:
	default:
		return fmt.Errorf("%w: unknown selectorType %q", types.ErrInvalidSchema, s.SelectorType)
	}
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d has no name", types.ErrInvalidSchema, i)
		}
		switch f.Type {
		case "", TypeText, TypeHTML:
		case TypeAttribute:
			if f.Attribute == "" {
				return fmt.Errorf("%w: field %q needs an attribute", types.ErrInvalidSchema, f.Name)
			}
		case TypeRegex:
			if f.Pattern == "" {
				return fmt.Errorf("%w: field %q needs a pattern", types.ErrInvalidSchema, f.Name)
			}
		default:
			return fmt.Errorf("%w: field %q has unknown type %q", types.ErrInvalidSchema, f.Name, f.Type)
		}
	}
	return nil
}

// Parse decodes and validates a schema. Strict JSON is tried first; JSON5
// covers the trailing commas and comments model output tends to contain.
func Parse(data []byte) (*Schema, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", types.ErrInvalidSchema)
	}

	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		s = Schema{}
		if err5 := json5.Unmarshal(data, &s); err5 != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidSchema, err5)
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a schema file. The name "builtin" returns Fallback().
func Load(path string) (*Schema, error) {
	if path == BuiltinName {
		return Fallback(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.SchemaError{Source: path, Err: err}
	}
	s, err := Parse(data)
	if err != nil {
		return nil, &types.SchemaError{Source: path, Err: err}
	}
	return s, nil
}

// Save writes the schema as indented JSON.
func (s *Schema) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &types.SchemaError{Source: path, Err: err}
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &types.SchemaError{Source: path, Err: err}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return &types.SchemaError{Source: path, Err: err}
	}
	return nil
}

// Fallback is a hand-written CSS schema for Doctolib search results. It is
// what the oracle is expected to produce for the current markup.
func Fallback() *Schema {
	return &Schema{
		Name:         "Doctolib Doctors",
		BaseSelector: "div:has(h2 button)",
		SelectorType: SelectorCSS,
		Fields: []Field{
			{Name: types.FieldName, Selector: "h2 button", Type: TypeText},
			{Name: types.FieldSpecialty, Selector: "p", Type: TypeText},
			{Name: types.FieldAddress, Selector: "p:contains('Rue'), p:contains('Boulevard'), p:contains('Avenue')", Type: TypeText},
			{Name: types.FieldDistance, Selector: "span:contains('km')", Type: TypeText},
			{Name: types.FieldSectorInfo, Selector: "p:contains('Conventionné')", Type: TypeText},
			{Name: types.FieldProfileURL, Selector: "a[href]", Type: TypeAttribute, Attribute: "href"},
		},
	}
}
