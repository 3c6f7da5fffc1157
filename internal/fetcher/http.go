package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// HTTPFetcher implements Fetcher using net/http. It sees the server HTML
// only, so it suits saved or server-rendered pages.
type HTTPFetcher struct {
	client         *http.Client
	cfg            *config.ScrapingConfig
	logger         *slog.Logger
	acceptLanguage string
	uaIndex        atomic.Int64
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.ScrapingConfig, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression, including brotli, is done in Fetch
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.PageTimeout,
	}

	return &HTTPFetcher{
		client:         client,
		cfg:            cfg,
		logger:         logger.With("component", "http_fetcher"),
		acceptLanguage: DefaultStealthConfig().AcceptLanguage(),
	}, nil
}

// Fetch GETs one results page. Non-2xx statuses and empty bodies are
// reported as *types.FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	pageURL := req.URLString()
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, Err: err}
	}
	httpReq.Header = req.Headers.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.nextUserAgent())
	}
	setBrowserHeaders(httpReq.Header, f.acceptLanguage)

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := f.readBody(pageURL, httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, StatusCode: httpResp.StatusCode, Err: err}
	}
	elapsed := time.Since(start)

	f.logger.Debug("page fetched",
		"url", pageURL,
		"page", req.Page,
		"status", httpResp.StatusCode,
		"bytes", len(body),
		"duration", elapsed,
	)
	return types.NewResponse(req, httpResp, body, elapsed), nil
}

// readBody checks the status and returns the decoded body, capped at
// MaxBodySize compressed bytes. A capped body is kept but logged.
func (f *HTTPFetcher) readBody(pageURL string, httpResp *http.Response) ([]byte, error) {
	if httpResp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var r io.Reader = httpResp.Body
	var capped *cappedReader
	if f.cfg.MaxBodySize > 0 {
		capped = &cappedReader{r: r, n: f.cfg.MaxBodySize}
		r = capped
	}
	r, err := decompressReader(httpResp.Header.Get("Content-Encoding"), r)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if capped != nil && capped.truncated {
		f.logger.Warn("response body truncated",
			"url", pageURL,
			"max_body_size", f.cfg.MaxBodySize,
			"bytes", len(body),
		)
	}
	if len(body) == 0 {
		return nil, types.ErrEmptyResponse
	}
	return body, nil
}

// cappedReader reads at most n bytes and records whether r had more.
type cappedReader struct {
	r         io.Reader
	n         int64
	truncated bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.n <= 0 {
		var one [1]byte
		if m, _ := io.ReadFull(c.r, one[:]); m > 0 {
			c.truncated = true
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.n {
		p = p[:c.n]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	return n, err
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// nextUserAgent returns the next User-Agent in rotation.
func (f *HTTPFetcher) nextUserAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return "DocScrape/" + config.Version
	}
	idx := (f.uaIndex.Add(1) - 1) % int64(len(f.cfg.UserAgents))
	return f.cfg.UserAgents[idx]
}

// decompressReader undoes a Content-Encoding. Unknown encodings pass
// through untouched.
func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "br":
		return brotli.NewReader(r), nil
	case "gzip", "x-gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	}
	return r, nil
}
