package parser

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const testPageURL = "https://www.doctolib.fr/search?location=75012-paris&speciality=gastro-enterologue&page=1"

const testHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Gastro-entérologues Paris 12</title>
    <script>window.__STATE__ = "<h2><button>Not a doctor</button></h2>";</script>
    <style>.card { color: red }</style>
</head>
<body>
<div class="results">
  <div class="card" data-testid="result">
    <h2 class="dl-name"><button type="button" class="dl-btn">Dr Jean&nbsp;Martin</button></h2>
    <p class="dl-text">Gastro-entérologue et hépatologue</p>
    <p class="dl-text">12 Rue de Charenton</p>
    <p class="dl-text">75012 Paris</p>
    <span class="dl-distance">1,2 km</span>
    <p class="dl-text">Conventionné secteur 1</p>
    <a href="/gastro-enterologue/paris/jean-martin">Prendre rendez-vous</a>
  </div>
  <div class="card" data-testid="result">
    <h2><button>Centre de santé Bercy</button></h2>
    <!-- sponsored -->
    <p>Centre de santé</p>
    <p>Boulevard de Bercy</p>
    <p>75012 Paris</p>
    <span>2.5 km</span>
    <p>Établissement de santé</p>
    <a href="https://www.doctolib.fr/centre-de-sante/paris/bercy">Voir</a>
  </div>
  <div class="card" data-testid="result">
    <h2><button>Dr Sophie Durand</button></h2>
    <p>Gastro-entérologue</p>
    <span>3 km</span>
    <a href="/gastro-enterologue/paris/sophie-durand">Prendre rendez-vous</a>
  </div>
  <div class="card">
    <h2><button>   </button></h2>
    <p>Annonce</p>
  </div>
</div>
<footer><p>Doctolib SAS</p></footer>
</body>
</html>`

func makeResp(url, body string, page int) *types.Response {
	req, _ := types.NewRequest(url, page)
	return &types.Response{
		Request:    req,
		StatusCode: 200,
		Body:       []byte(body),
	}
}

func fieldValue(t *testing.T, l *types.Listing, key string) string {
	t.Helper()
	f := l.Get(key)
	if f.Status != types.FieldMatched {
		t.Fatalf("%s: expected matched field, got %s", key, f.Status)
	}
	return f.Value
}

// --- Cleaner Tests ---

func TestClean(t *testing.T) {
	out, err := Clean([]byte(testHTML))
	if err != nil {
		t.Fatalf("clean: %v", err)
	}

	for _, gone := range []string{"<script", "<style", "<title", "sponsored", `class="`, `type="button"`} {
		if strings.Contains(out, gone) {
			t.Errorf("cleaned html still contains %q", gone)
		}
	}
	for _, kept := range []string{`href="/gastro-enterologue/paris/jean-martin"`, `data-testid="result"`, "Dr Sophie Durand"} {
		if !strings.Contains(out, kept) {
			t.Errorf("cleaned html lost %q", kept)
		}
	}
}

func TestCleanKeepsHrefOnLinksOnly(t *testing.T) {
	out, err := Clean([]byte(`<div href="/card" title="Dr A"><a href="/dr-a" class="x">Dr A</a><link href="/style.css"></div>`))
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if strings.Contains(out, `href="/card"`) {
		t.Errorf("href kept on a div: %s", out)
	}
	if !strings.Contains(out, `<a href="/dr-a">`) {
		t.Errorf("link href lost: %s", out)
	}
	if !strings.Contains(out, `title="Dr A"`) {
		t.Errorf("title lost: %s", out)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Dr <b>Jean</b>\n\tMartin ", "Dr Jean Martin"},
		{"Conventionn&eacute; secteur&nbsp;1", "Conventionné secteur 1"},
		{"<span></span>", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- Manual Rule Tests ---

func TestRegexExtractorCountsBlocks(t *testing.T) {
	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// Three named blocks; the empty heading is skipped.
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
	for _, l := range listings {
		if l.Page != 1 {
			t.Errorf("page = %d, want 1", l.Page)
		}
	}
}

func TestRegexExtractorFields(t *testing.T) {
	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	first := listings[0]
	want := map[string]string{
		types.FieldName:       "Dr Jean Martin",
		types.FieldSpecialty:  "Gastro-entérologue et hépatologue",
		types.FieldAddress:    "12 Rue de Charenton, 75012 Paris",
		types.FieldDistance:   "1,2 km",
		types.FieldSectorInfo: "Conventionné secteur 1",
		types.FieldProfileURL: "https://www.doctolib.fr/gastro-enterologue/paris/jean-martin",
	}
	for k, v := range want {
		if got := fieldValue(t, first, k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if first.Outcome() != types.OutcomeComplete {
		t.Errorf("outcome = %s, want complete", first.Outcome())
	}

	second := listings[1]
	if got := fieldValue(t, second, types.FieldAddress); got != "Boulevard de Bercy, 75012 Paris" {
		t.Errorf("address = %q", got)
	}
	if got := fieldValue(t, second, types.FieldSectorInfo); got != "Établissement de santé" {
		t.Errorf("sector_info = %q", got)
	}
	if got := fieldValue(t, second, types.FieldSpecialty); got != "Centre de santé" {
		t.Errorf("specialty = %q", got)
	}
}

func TestRegexExtractorMissingAddress(t *testing.T) {
	ext := NewRegexExtractor(testLogger)
	listings, _ := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	third := listings[2]
	if got := fieldValue(t, third, types.FieldName); got != "Dr Sophie Durand" {
		t.Errorf("name = %q", got)
	}
	if third.Get(types.FieldAddress).Status != types.FieldAbsent {
		t.Errorf("address should be absent, got %+v", third.Get(types.FieldAddress))
	}
	if third.Get(types.FieldSectorInfo).Status != types.FieldAbsent {
		t.Errorf("sector_info should be absent")
	}
	if third.Outcome() != types.OutcomePartial {
		t.Errorf("outcome = %s, want partial", third.Outcome())
	}
}

func TestRegexExtractorSpecialtySkipsAddressLines(t *testing.T) {
	page := `<html><body>
<div><h2><button>Dr Paul Leroy</button></h2><p>8 Avenue Daumesnil</p><p>75012 Paris</p><p>Conventionné secteur 2</p><p>Hépato-gastro-entérologue</p></div>
<div><h2><button>Dr Anne Petit</button></h2><p>3,4 km</p><p>Proctologue</p></div>
</body></html>`

	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, page, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	for i, want := range []string{"Hépato-gastro-entérologue", "Proctologue"} {
		if got := fieldValue(t, listings[i], types.FieldSpecialty); got != want {
			t.Errorf("listing %d specialty = %q, want %q", i, got, want)
		}
	}
}

func TestRegexExtractorFallbackHeading(t *testing.T) {
	page := `<html><body>
<h2>Dr Alice Petit</h2><p>Cardiologue</p><p>5 Avenue Daumesnil</p>
<h2>Dr Bob Leroy</h2><p>Cardiologue</p>
</body></html>`

	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, page, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings from fallback headings, got %d", len(listings))
	}
	if got := fieldValue(t, listings[0], types.FieldAddress); got != "5 Avenue Daumesnil" {
		t.Errorf("address = %q", got)
	}
}

func TestRegexExtractorFallbackSkipsSectionTitles(t *testing.T) {
	page := `<html><body>
<h2>Résultats</h2>
<div><h2>Dr A</h2><p>Cardiologue</p></div>
<h2>Autres praticiens</h2><div></div>
</body></html>`

	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, page, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if got := fieldValue(t, listings[0], types.FieldName); got != "Dr A" {
		t.Errorf("name = %q", got)
	}
}

func TestRegexExtractorNoListings(t *testing.T) {
	ext := NewRegexExtractor(testLogger)
	listings, err := ext.Extract(makeResp(testPageURL, `<html><body><p>Aucun résultat</p></body></html>`, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 0 {
		t.Errorf("expected no listings, got %d", len(listings))
	}
}

// --- Schema Extractor Tests ---

func TestCSSExtractorFallbackSchema(t *testing.T) {
	ext, err := NewSchemaExtractor(schema.Fallback(), testLogger)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	listings, err := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// Every card matches; the wrapping results div does not.
	if len(listings) != 4 {
		t.Fatalf("expected 4 listings, got %d", len(listings))
	}
	if got := fieldValue(t, listings[0], types.FieldName); got != "Dr Jean Martin" {
		t.Errorf("name = %q", got)
	}
	if got := fieldValue(t, listings[0], types.FieldAddress); got != "12 Rue de Charenton" {
		t.Errorf("address = %q", got)
	}
	if got := fieldValue(t, listings[0], types.FieldProfileURL); got != "/gastro-enterologue/paris/jean-martin" {
		t.Errorf("profile_url = %q", got)
	}
	if listings[2].Get(types.FieldAddress).Status != types.FieldAbsent {
		t.Error("third card should have no address")
	}
	if listings[3].Has(types.FieldName) {
		t.Error("blank heading should not yield a name")
	}
}

func TestCSSExtractorRegexField(t *testing.T) {
	s := &schema.Schema{
		Name:         "distances",
		BaseSelector: "div.card",
		Fields: []schema.Field{
			{Name: types.FieldName, Selector: "h2", Type: schema.TypeText},
			{Name: types.FieldDistance, Type: schema.TypeRegex, Pattern: `(\d+(?:[.,]\d+)?)\s*km`},
		},
	}
	ext, err := NewSchemaExtractor(s, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	listings, err := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 4 {
		t.Fatalf("expected 4 listings, got %d", len(listings))
	}
	if got := fieldValue(t, listings[1], types.FieldDistance); got != "2.5" {
		t.Errorf("distance = %q, want 2.5", got)
	}
}

func TestXPathExtractor(t *testing.T) {
	s := &schema.Schema{
		Name:         "xpath doctors",
		BaseSelector: "//div[h2/button]",
		SelectorType: schema.SelectorXPath,
		Fields: []schema.Field{
			{Name: types.FieldName, Selector: ".//h2/button", Type: schema.TypeText},
			{Name: types.FieldDistance, Selector: ".//span[contains(., 'km')]", Type: schema.TypeText},
			{Name: types.FieldProfileURL, Selector: ".//a", Type: schema.TypeAttribute, Attribute: "href"},
		},
	}
	ext, err := NewSchemaExtractor(s, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	listings, err := ext.Extract(makeResp(testPageURL, testHTML, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 4 {
		t.Fatalf("expected 4 listings, got %d", len(listings))
	}
	if got := fieldValue(t, listings[2], types.FieldDistance); got != "3 km" {
		t.Errorf("distance = %q", got)
	}
	if got := fieldValue(t, listings[1], types.FieldProfileURL); got != "https://www.doctolib.fr/centre-de-sante/paris/bercy" {
		t.Errorf("profile_url = %q", got)
	}
}

func TestSchemaExtractorRejectsBadSelectors(t *testing.T) {
	bad := []*schema.Schema{
		{BaseSelector: "div[", Fields: []schema.Field{{Name: "name", Selector: "h2"}}},
		{BaseSelector: "div", Fields: []schema.Field{{Name: "name", Selector: "p:nth-child("}}},
		{BaseSelector: "//div[", SelectorType: schema.SelectorXPath, Fields: []schema.Field{{Name: "name"}}},
		{BaseSelector: "div", Fields: []schema.Field{{Name: "d", Type: schema.TypeRegex, Pattern: "(["}}},
	}
	for i, s := range bad {
		if _, err := NewSchemaExtractor(s, testLogger); err == nil {
			t.Errorf("schema %d: expected error", i)
		}
	}

	var se *types.SchemaError
	_, err := NewSchemaExtractor(&schema.Schema{}, testLogger)
	if !errors.As(err, &se) {
		t.Errorf("empty schema: expected SchemaError, got %v", err)
	}
}

// --- Composite Tests ---

func TestCompositeExtractorModes(t *testing.T) {
	manual, err := NewCompositeExtractor(nil, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if manual.Mode() != ModeManual {
		t.Errorf("mode = %s, want manual", manual.Mode())
	}
	ml, _ := manual.Extract(makeResp(testPageURL, testHTML, 1))

	withSchema, err := NewCompositeExtractor(schema.Fallback(), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if withSchema.Mode() != ModeSchema {
		t.Errorf("mode = %s, want schema", withSchema.Mode())
	}
	sl, _ := withSchema.Extract(makeResp(testPageURL, testHTML, 1))

	// Manual rules skip the blank heading; the schema keeps the card and
	// leaves the name to the normalizer.
	if len(ml) != 3 || len(sl) != 4 {
		t.Errorf("manual=%d schema=%d, want 3 and 4", len(ml), len(sl))
	}
}

// --- Benchmarks ---

func BenchmarkRegexExtract(b *testing.B) {
	ext := NewRegexExtractor(testLogger)
	resp := makeResp(testPageURL, testHTML, 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ext.Extract(resp)
	}
}

func BenchmarkCSSExtract(b *testing.B) {
	ext, _ := NewSchemaExtractor(schema.Fallback(), testLogger)
	body := []byte(testHTML)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := types.NewRequest(testPageURL, 1)
		ext.Extract(&types.Response{Request: req, Body: body})
	}
}
