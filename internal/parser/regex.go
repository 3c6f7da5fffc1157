package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/DocScrape/internal/types"
)

// Listing headings. Doctolib renders each result's name as a button inside
// an h2; any h2 is accepted when that structure is missing.
var (
	primaryHeadingRe  = regexp.MustCompile(`(?is)<h2[^>]*>\s*<button[^>]*>(.*?)</button>\s*</h2>`)
	fallbackHeadingRe = regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`)
)

// Field rules, applied to a single listing block.
var (
	paragraphRe = regexp.MustCompile(`(?is)<p(?:\s[^>]*)?>(.*?)</p>`)
	distanceRe  = regexp.MustCompile(`(?is)<span[^>]*>([^<]*\d[^<]*km\b[^<]*)</span>`)
	hrefRe      = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']+)["']`)
	contentRe   = regexp.MustCompile(`(?i)<(?:p|span)[\s>]`)

	streetRe = regexp.MustCompile(`(?i)(?:^|[\s,\d])(?:rue|boulevard|bd|avenue|av\.|place|square|all[ée]e|quai|impasse|chemin|cours|route)\s`)
	postalRe = regexp.MustCompile(`^\d{5}\s+\S`)
	sectorRe = regexp.MustCompile(`(?i)^(?:conventionn[ée]|non conventionn[ée]|[ée]tablissement|secteur\s)`)
	numberRe = regexp.MustCompile(`^\d`)
)

// block is the slice of cleaned HTML belonging to one listing.
type block struct {
	heading string // raw heading inner HTML
	region  string // heading markup itself
	body    string // from the end of the heading to the next heading
}

// RegexExtractor is the hand-written rule set for Doctolib result pages.
type RegexExtractor struct {
	logger *slog.Logger
}

// NewRegexExtractor creates the manual-rule extractor.
func NewRegexExtractor(logger *slog.Logger) *RegexExtractor {
	return &RegexExtractor{
		logger: logger.With("component", "regex_extractor"),
	}
}

// Extract implements Extractor.
func (e *RegexExtractor) Extract(resp *types.Response) ([]*types.Listing, error) {
	cleaned, err := Clean(resp.Body)
	if err != nil {
		return nil, &types.ParseError{URL: resp.PageURL(), Err: err}
	}
	return e.ExtractHTML(cleaned, resp.PageURL(), resp.Page()), nil
}

// ExtractHTML applies the rules to already-cleaned HTML.
func (e *RegexExtractor) ExtractHTML(cleaned, pageURL string, page int) []*types.Listing {
	blocks := splitBlocks(cleaned, primaryHeadingRe)
	if len(blocks) == 0 {
		blocks = withContent(splitBlocks(cleaned, fallbackHeadingRe))
		if len(blocks) > 0 {
			e.logger.Debug("using fallback heading pattern", "url", pageURL, "blocks", len(blocks))
		}
	}

	base, _ := url.Parse(pageURL)

	listings := make([]*types.Listing, 0, len(blocks))
	for i, b := range blocks {
		l, err := e.extractBlock(b, base, pageURL, page)
		if err != nil {
			e.logger.Warn("skipping listing block", "url", pageURL, "block", i, "error", err)
			continue
		}
		e.logger.Debug("listing extracted",
			"name", l.GetString(types.FieldName),
			"outcome", l.Outcome().String(),
		)
		listings = append(listings, l)
	}
	return listings
}

// splitBlocks cuts the page at every heading match. A block runs from the
// end of its heading to the start of the next one, or the end of input.
func splitBlocks(doc string, heading *regexp.Regexp) []block {
	idx := heading.FindAllStringSubmatchIndex(doc, -1)
	blocks := make([]block, 0, len(idx))
	for i, m := range idx {
		end := len(doc)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, block{
			heading: doc[m[2]:m[3]],
			region:  doc[m[0]:m[1]],
			body:    doc[m[1]:end],
		})
	}
	return blocks
}

// withContent drops blocks with no paragraph or span after the heading.
// A bare h2 is a section title, not a listing.
func withContent(blocks []block) []block {
	kept := blocks[:0]
	for _, b := range blocks {
		if contentRe.MatchString(b.body) {
			kept = append(kept, b)
		}
	}
	return kept
}

func (e *RegexExtractor) extractBlock(b block, base *url.URL, pageURL string, page int) (l *types.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			l, err = nil, fmt.Errorf("malformed block: %v", r)
		}
	}()

	name := CleanText(b.heading)
	if name == "" {
		return nil, fmt.Errorf("empty heading")
	}

	l = types.NewListing(pageURL, page)
	l.Set(types.FieldName, name)

	var paragraphs []string
	for _, m := range paragraphRe.FindAllStringSubmatch(b.body, -1) {
		if text := CleanText(m[1]); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	l.SetField(types.FieldAddress, matchAddress(paragraphs))
	l.SetField(types.FieldSectorInfo, firstMatching(paragraphs, sectorRe))
	l.SetField(types.FieldSpecialty, matchSpecialty(paragraphs, name))
	l.SetField(types.FieldDistance, submatch(distanceRe, b.body))
	l.SetField(types.FieldProfileURL, matchProfileURL(b, base))

	return l, nil
}

// matchAddress joins street lines (numbered ones first) and postal lines.
func matchAddress(paragraphs []string) types.Field {
	var numbered, streets, postal []string
	seen := make(map[string]bool)
	for _, p := range paragraphs {
		if seen[p] {
			continue
		}
		switch {
		case postalRe.MatchString(p):
			postal = append(postal, p)
		case streetRe.MatchString(p) && !sectorRe.MatchString(p):
			if numberRe.MatchString(p) {
				numbered = append(numbered, p)
			} else {
				streets = append(streets, p)
			}
		default:
			continue
		}
		seen[p] = true
	}

	parts := append(append(numbered, streets...), postal...)
	if len(parts) == 0 {
		return types.Absent()
	}
	return types.Matched(strings.Join(parts, ", "))
}

// matchSpecialty takes the first paragraph that is not part of the address,
// the sector note or the distance.
func matchSpecialty(paragraphs []string, name string) types.Field {
	for _, p := range paragraphs {
		if p == name ||
			postalRe.MatchString(p) ||
			streetRe.MatchString(p) ||
			sectorRe.MatchString(p) ||
			strings.HasSuffix(strings.ToLower(p), " km") {
			continue
		}
		return types.Matched(p)
	}
	return types.Absent()
}

func matchProfileURL(b block, base *url.URL) types.Field {
	for _, src := range []string{b.region, b.body} {
		for _, m := range hrefRe.FindAllStringSubmatch(src, -1) {
			href := strings.TrimSpace(m[1])
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				continue
			}
			return types.Matched(resolveURL(base, href))
		}
	}
	return types.Absent()
}

func firstMatching(paragraphs []string, re *regexp.Regexp) types.Field {
	for _, p := range paragraphs {
		if re.MatchString(p) {
			return types.Matched(p)
		}
	}
	return types.Absent()
}

func submatch(re *regexp.Regexp, s string) types.Field {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return types.Absent()
	}
	if v := CleanText(m[1]); v != "" {
		return types.Matched(v)
	}
	return types.Absent()
}

// resolveURL makes href absolute against base, returning href unchanged
// when either side does not parse.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
