package types

import (
	"bytes"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Response is one fetched results page.
type Response struct {
	Request *Request

	// StatusCode is always 200 for browser fetches; rod does not report
	// the document status.
	StatusCode int
	Header     http.Header
	Body       []byte

	// FinalURL is where the page ended up after redirects. Relative
	// profile links resolve against it.
	FinalURL string
	Duration time.Duration

	doc *goquery.Document
}

// NewResponse wraps the result of a plain HTTP fetch.
func NewResponse(req *Request, httpResp *http.Response, body []byte, duration time.Duration) *Response {
	resp := NewBrowserResponse(req, httpResp.StatusCode, body, "", duration)
	resp.Header = httpResp.Header
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		resp.FinalURL = httpResp.Request.URL.String()
	}
	return resp
}

// NewBrowserResponse wraps HTML read from a rendered page.
func NewBrowserResponse(req *Request, statusCode int, body []byte, finalURL string, duration time.Duration) *Response {
	return &Response{
		Request:    req,
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       body,
		FinalURL:   finalURL,
		Duration:   duration,
	}
}

// Document parses the body once and caches the result.
func (r *Response) Document() (*goquery.Document, error) {
	if r.doc == nil {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			return nil, err
		}
		r.doc = doc
	}
	return r.doc, nil
}

// PageURL is FinalURL, or the requested URL when no redirect was seen.
func (r *Response) PageURL() string {
	switch {
	case r.FinalURL != "":
		return r.FinalURL
	case r.Request != nil:
		return r.Request.URLString()
	}
	return ""
}

// Page is the 1-based results page number, or 0 when unknown.
func (r *Response) Page() int {
	if r.Request == nil {
		return 0
	}
	return r.Request.Page
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode/100 == 2
}
