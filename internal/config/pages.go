package config

import (
	"strconv"
	"strings"
)

// CleanBaseURL removes any page query parameter (and the fragment) from a
// search URL, keeping the other parameters in their original order.
func CleanBaseURL(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	q := strings.IndexByte(rawURL, '?')
	if q < 0 {
		return rawURL
	}

	params := strings.Split(rawURL[q+1:], "&")
	kept := params[:0]
	for _, p := range params {
		if p == "" {
			continue
		}
		key := p
		if eq := strings.IndexByte(p, '='); eq >= 0 {
			key = p[:eq]
		}
		if key == "page" {
			continue
		}
		kept = append(kept, p)
	}

	if len(kept) == 0 {
		return rawURL[:q]
	}
	return rawURL[:q] + "?" + strings.Join(kept, "&")
}

// PageURL builds the URL of the given 1-based results page.
func PageURL(baseURL string, page int) string {
	clean := CleanBaseURL(baseURL)
	sep := "?"
	if strings.Contains(clean, "?") {
		sep = "&"
	}
	return clean + sep + "page=" + strconv.Itoa(page)
}
