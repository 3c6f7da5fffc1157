package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request is one search results page to fetch.
type Request struct {
	URL  *url.URL
	Page int // 1-based

	// Headers are sent by the HTTP fetcher only.
	Headers http.Header

	// Timeout overrides the fetcher's page timeout when non-zero.
	Timeout time.Duration

	// WaitSelector overrides scraping.wait_selector for the browser
	// fetcher.
	WaitSelector string
}

// NewRequest parses rawURL, which must be absolute.
func NewRequest(rawURL string, page int) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return &Request{URL: u, Page: page, Headers: make(http.Header)}, nil
}

// URLString returns the request URL, or "" when unset.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
