package types

import "sort"

// FieldStatus tags whether an extraction rule produced a value.
type FieldStatus int

const (
	FieldAbsent FieldStatus = iota
	FieldMatched
)

func (s FieldStatus) String() string {
	if s == FieldMatched {
		return "matched"
	}
	return "absent"
}

// Field is the tagged result of one extraction rule.
type Field struct {
	Value  string
	Status FieldStatus
}

// Matched builds a matched field.
func Matched(v string) Field { return Field{Value: v, Status: FieldMatched} }

// Absent builds an absent field.
func Absent() Field { return Field{Status: FieldAbsent} }

// Present reports whether the field matched with a non-empty value.
func (f Field) Present() bool { return f.Status == FieldMatched && f.Value != "" }

// Outcome summarizes how much of a listing was extracted.
type Outcome int

const (
	OutcomeEmpty Outcome = iota
	OutcomePartial
	OutcomeComplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomePartial:
		return "partial"
	default:
		return "empty"
	}
}

// Listing is the raw field mapping pulled out of one listing block, before
// normalization.
type Listing struct {
	// Fields maps a field name to its tagged extraction result.
	Fields map[string]Field

	// URL is the page the listing was found on.
	URL string

	// Page is the 1-based search results page.
	Page int
}

// NewListing creates an empty listing for a page.
func NewListing(pageURL string, page int) *Listing {
	return &Listing{
		Fields: make(map[string]Field),
		URL:    pageURL,
		Page:   page,
	}
}

// Set records a matched value.
func (l *Listing) Set(key, value string) {
	l.Fields[key] = Matched(value)
}

// SetField records a tagged result as is.
func (l *Listing) SetField(key string, f Field) {
	l.Fields[key] = f
}

// Get returns the tagged result for key. Missing keys read as absent.
func (l *Listing) Get(key string) Field {
	f, ok := l.Fields[key]
	if !ok {
		return Absent()
	}
	return f
}

// GetString returns the value of key, or "" when absent.
func (l *Listing) GetString(key string) string {
	f := l.Get(key)
	if f.Status != FieldMatched {
		return ""
	}
	return f.Value
}

// Has reports whether key matched with a non-empty value.
func (l *Listing) Has(key string) bool {
	return l.Get(key).Present()
}

// Delete removes a field.
func (l *Listing) Delete(key string) {
	delete(l.Fields, key)
}

// Keys returns the field names in sorted order.
func (l *Listing) Keys() []string {
	keys := make([]string, 0, len(l.Fields))
	for k := range l.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Outcome reports complete when every record field is present, empty when
// none is, and partial otherwise.
func (l *Listing) Outcome() Outcome {
	n := 0
	for _, f := range DoctorFields {
		if l.Has(f) {
			n++
		}
	}
	switch n {
	case 0:
		return OutcomeEmpty
	case len(DoctorFields):
		return OutcomeComplete
	default:
		return OutcomePartial
	}
}
