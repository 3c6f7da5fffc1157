// Package engine drives a scrape across consecutive results pages.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// State represents the driver's current lifecycle state.
type State int32

const (
	StateIdle       State = 0
	StateFetching   State = 1
	StateDone       State = 2
	StateFailedPage State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDone:
		return "done"
	case StateFailedPage:
		return "failed-page"
	default:
		return "unknown"
	}
}

// Stats tracks run statistics.
type Stats struct {
	PagesFetched     atomic.Int64
	PagesFailed      atomic.Int64
	PagesEmpty       atomic.Int64
	RecordsExtracted atomic.Int64
	RecordsDropped   atomic.Int64
	BytesDownloaded  atomic.Int64
	StartTime        time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"pages_fetched":     s.PagesFetched.Load(),
		"pages_failed":      s.PagesFailed.Load(),
		"pages_empty":       s.PagesEmpty.Load(),
		"records_extracted": s.RecordsExtracted.Load(),
		"records_dropped":   s.RecordsDropped.Load(),
		"bytes_downloaded":  s.BytesDownloaded.Load(),
		"elapsed":           time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Fetcher retrieves one results page.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Extractor turns a fetched page into raw listings.
type Extractor interface {
	Extract(resp *types.Response) ([]*types.Listing, error)
}

// Normalizer turns raw listings into records, reporting how many it dropped.
type Normalizer interface {
	Normalize(listings []*types.Listing) ([]*types.Doctor, int)
}

// PageResult is the outcome of one page.
type PageResult struct {
	Page     int
	URL      string
	Doctors  []*types.Doctor
	Dropped  int
	State    State // StateDone or StateFailedPage
	Err      error
	Duration time.Duration
}

// Empty reports whether a successfully fetched page produced no records.
func (r PageResult) Empty() bool {
	return r.State == StateDone && len(r.Doctors) == 0
}

// Result is the outcome of a run. Doctors holds every page's records in
// page order.
type Result struct {
	Doctors []*types.Doctor
	Pages   []PageResult
	Stopped string // "max_pages", "empty_page" or "cancelled"
}

// PageCallback is called after every page, including failed ones.
type PageCallback func(PageResult)

// ResponseCallback is called with every successfully fetched page before
// extraction.
type ResponseCallback func(resp *types.Response)

// Engine is the sequential pagination driver.
type Engine struct {
	cfg        *config.Config
	baseURL    string
	logger     *slog.Logger
	fetcher    Fetcher
	extractor  Extractor
	normalizer Normalizer
	limiter    *rate.Limiter

	onPage     PageCallback
	onResponse ResponseCallback

	state atomic.Int32
	stats *Stats

	cancel context.CancelCauseFunc
	mu     sync.Mutex
}

// New creates a new Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		baseURL: config.CleanBaseURL(cfg.BaseURL),
		logger:  logger.With("component", "engine"),
		limiter: newLimiter(cfg.Scraping.DelayBetweenPages),
		stats:   &Stats{},
	}
}

// newLimiter allows one fetch immediately and then one per delay.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// rest restarts the delay window once a page is done, so the next Wait
// blocks a full delay measured from the end of that page.
func (e *Engine) rest() {
	e.limiter = newLimiter(e.cfg.Scraping.DelayBetweenPages)
	e.limiter.Allow()
}

// SetFetcher sets the page fetcher.
func (e *Engine) SetFetcher(f Fetcher) { e.fetcher = f }

// SetExtractor sets the listing extractor.
func (e *Engine) SetExtractor(x Extractor) { e.extractor = x }

// SetNormalizer sets the record normalizer.
func (e *Engine) SetNormalizer(n Normalizer) { e.normalizer = n }

// OnPage registers a callback invoked after every page.
func (e *Engine) OnPage(cb PageCallback) { e.onPage = cb }

// OnResponse registers a callback invoked with every fetched page.
func (e *Engine) OnResponse(cb ResponseCallback) { e.onResponse = cb }

// PageURL returns the URL of the given 1-based page.
func (e *Engine) PageURL(page int) string {
	return config.PageURL(e.baseURL, page)
}

// Run fetches pages 1..max_pages in order, stopping early after the first
// page that was fetched successfully but yielded no records. A failed page
// is logged and skipped. Run returns the records gathered so far together
// with an error only when ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.fetcher == nil || e.extractor == nil || e.normalizer == nil {
		return nil, errors.New("engine needs a fetcher, an extractor and a normalizer")
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateFetching)) {
		return nil, fmt.Errorf("engine is in state %s, cannot start", State(e.state.Load()))
	}

	ctx, cancel := context.WithCancelCause(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel(nil)

	e.stats.StartTime = time.Now()
	e.logger.Info("run starting",
		"base_url", e.baseURL,
		"max_pages", e.cfg.MaxPages,
		"delay", e.cfg.Scraping.DelayBetweenPages,
	)

	result := &Result{Stopped: "max_pages"}

	for page := 1; page <= e.cfg.MaxPages; page++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.finish(result, e.stopErr(ctx, err))
		}

		e.state.Store(int32(StateFetching))
		pr := e.runPage(ctx, page)
		e.rest()

		if pr.Err != nil && ctx.Err() != nil {
			return e.finish(result, e.stopErr(ctx, pr.Err))
		}

		result.Pages = append(result.Pages, pr)
		result.Doctors = append(result.Doctors, pr.Doctors...)
		if e.onPage != nil {
			e.onPage(pr)
		}

		if pr.Empty() {
			e.logger.Info("no records on page, stopping early", "page", page)
			result.Stopped = "empty_page"
			break
		}
	}

	return e.finish(result, nil)
}

// runPage fetches, extracts and normalizes one page. Failures are reported
// in the result, never returned.
func (e *Engine) runPage(ctx context.Context, page int) PageResult {
	start := time.Now()
	pageURL := e.PageURL(page)
	pr := PageResult{Page: page, URL: pageURL}

	fail := func(err error) PageResult {
		e.state.Store(int32(StateFailedPage))
		e.stats.PagesFailed.Add(1)
		pr.State = StateFailedPage
		pr.Err = err
		pr.Duration = time.Since(start)
		if ctx.Err() == nil {
			e.logger.Warn("page failed, continuing", "page", page, "url", pageURL, "error", err)
		}
		return pr
	}

	req, err := types.NewRequest(pageURL, page)
	if err != nil {
		return fail(err)
	}
	req.Timeout = e.cfg.Scraping.PageTimeout

	e.logger.Info("fetching page", "page", page, "of", e.cfg.MaxPages, "url", pageURL)
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return fail(err)
	}
	e.stats.PagesFetched.Add(1)
	e.stats.BytesDownloaded.Add(int64(len(resp.Body)))

	if e.onResponse != nil {
		e.onResponse(resp)
	}

	listings, err := e.extractor.Extract(resp)
	if err != nil {
		return fail(err)
	}

	doctors, dropped := e.normalizer.Normalize(listings)
	e.stats.RecordsExtracted.Add(int64(len(doctors)))
	e.stats.RecordsDropped.Add(int64(dropped))
	if len(doctors) == 0 {
		e.stats.PagesEmpty.Add(1)
	}

	pr.Doctors = doctors
	pr.Dropped = dropped
	pr.State = StateDone
	pr.Duration = time.Since(start)

	e.logger.Info("page done",
		"page", page,
		"listings", len(listings),
		"records", len(doctors),
		"dropped", dropped,
		"duration", pr.Duration,
	)
	return pr
}

// stopErr reports why the run ended early. A Limiter.Wait that would
// outlive the deadline fails before ctx is done, so err is the fallback.
func (e *Engine) stopErr(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), types.ErrRunStopped) {
		return types.ErrRunStopped
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *Engine) finish(result *Result, err error) (*Result, error) {
	e.state.Store(int32(StateDone))
	if err != nil {
		result.Stopped = "cancelled"
	}
	e.logger.Info("run finished",
		"records", len(result.Doctors),
		"pages", len(result.Pages),
		"stopped", result.Stopped,
		"stats", e.stats.Snapshot(),
	)
	return result, err
}

// Stop cancels a running Run. Run then returns types.ErrRunStopped with
// the records gathered so far.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.logger.Info("run stopping")
		e.cancel(types.ErrRunStopped)
	}
}

// Stats returns the current run statistics.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// GetState returns the current driver state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}
