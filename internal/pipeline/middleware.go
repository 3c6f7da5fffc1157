package pipeline

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/DocScrape/internal/types"
)

// DefaultAliases maps field names seen in oracle-generated and older
// hand-written schemas onto the record fields.
var DefaultAliases = map[string]string{
	"insurance":    types.FieldSectorInfo,
	"sector":       types.FieldSectorInfo,
	"convention":   types.FieldSectorInfo,
	"speciality":   types.FieldSpecialty,
	"specialite":   types.FieldSpecialty,
	"location":     types.FieldAddress,
	"url":          types.FieldProfileURL,
	"link":         types.FieldProfileURL,
	"profile":      types.FieldProfileURL,
	"profile_link": types.FieldProfileURL,
	"doctor_name":  types.FieldName,
}

// HTMLSanitizeMiddleware strips tags, decodes entities and collapses
// whitespace in every matched field.
type HTMLSanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(l *types.Listing) (*types.Listing, error) {
	for _, key := range l.Keys() {
		f := l.Get(key)
		if f.Status != types.FieldMatched {
			continue
		}
		cleaned := m.stripRe.ReplaceAllString(f.Value, " ")
		cleaned = html.UnescapeString(cleaned)
		cleaned = strings.ReplaceAll(cleaned, "\u00a0", " ")
		cleaned = strings.Join(strings.Fields(cleaned), " ")
		if cleaned == "" {
			l.SetField(key, types.Absent())
			continue
		}
		l.Set(key, cleaned)
	}
	return l, nil
}

// FieldRenameMiddleware renames fields. An existing target that already
// matched is kept.
type FieldRenameMiddleware struct {
	Mapping map[string]string // old name -> new name
}

func NewFieldRenameMiddleware(mapping map[string]string) *FieldRenameMiddleware {
	return &FieldRenameMiddleware{Mapping: mapping}
}

func (m *FieldRenameMiddleware) Name() string { return "field_rename" }

func (m *FieldRenameMiddleware) Process(l *types.Listing) (*types.Listing, error) {
	for _, oldKey := range l.Keys() {
		newKey, ok := m.Mapping[oldKey]
		if !ok {
			continue
		}
		if !l.Has(newKey) {
			l.SetField(newKey, l.Get(oldKey))
		}
		l.Delete(oldKey)
	}
	return l, nil
}

// FieldFilterMiddleware keeps only the listed fields.
type FieldFilterMiddleware struct {
	Fields []string
}

func (m *FieldFilterMiddleware) Name() string { return "field_filter" }

func (m *FieldFilterMiddleware) Process(l *types.Listing) (*types.Listing, error) {
	if len(m.Fields) == 0 {
		return l, nil
	}
	keep := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		keep[f] = true
	}
	for _, key := range l.Keys() {
		if !keep[key] {
			l.Delete(key)
		}
	}
	return l, nil
}

// ResolveURLMiddleware makes a link field absolute against the listing's
// page URL. Values that are not http(s) links once resolved are dropped.
type ResolveURLMiddleware struct {
	Field string
}

func (m *ResolveURLMiddleware) Name() string { return "resolve_url" }

func (m *ResolveURLMiddleware) Process(l *types.Listing) (*types.Listing, error) {
	if !l.Has(m.Field) {
		return l, nil
	}
	href, err := url.Parse(l.GetString(m.Field))
	if err != nil {
		l.SetField(m.Field, types.Absent())
		return l, nil
	}
	if base, err := url.Parse(l.URL); err == nil && l.URL != "" {
		href = base.ResolveReference(href)
	}
	if href.Scheme != "http" && href.Scheme != "https" {
		l.SetField(m.Field, types.Absent())
		return l, nil
	}
	href.Fragment = ""
	l.Set(m.Field, href.String())
	return l, nil
}

// RequiredFieldsMiddleware drops listings missing required fields.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(l *types.Listing) (*types.Listing, error) {
	for _, field := range m.Fields {
		if !l.Has(field) {
			return nil, nil // Drop listing
		}
	}
	return l, nil
}
