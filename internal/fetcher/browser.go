package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/DocScrape/internal/automation"
	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// BrowserFetcher implements Fetcher using a headless browser via Rod. One
// tab is reused for every page so the consent cookie survives between
// pages.
type BrowserFetcher struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	page       *rod.Page
	cfg        *config.ScrapingConfig
	stealthCfg *StealthConfig
	logger     *slog.Logger
	mu         sync.Mutex
	uaIndex    int
}

// BrowserOption configures the BrowserFetcher.
type BrowserOption func(*BrowserFetcher)

// WithStealth enables stealth mode with the given configuration.
func WithStealth(cfg *StealthConfig) BrowserOption {
	return func(bf *BrowserFetcher) { bf.stealthCfg = cfg }
}

// NewBrowserFetcher launches Chromium and connects to it.
func NewBrowserFetcher(cfg *config.ScrapingConfig, logger *slog.Logger, opts ...BrowserOption) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "browser_fetcher"),
	}

	for _, opt := range opts {
		opt(bf)
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		bf.launcher.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready",
		"headless", cfg.Headless,
		"stealth", bf.stealthCfg != nil,
	)

	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(bf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if bf.stealthCfg != nil {
		l = bf.stealthCfg.apply(l)
	}
	bf.launcher = l

	return l.Launch()
}

// tab returns the shared page, creating it on first use.
func (bf *BrowserFetcher) tab() (*rod.Page, error) {
	if bf.page != nil {
		return bf.page, nil
	}

	var (
		page *rod.Page
		err  error
	)
	if bf.stealthCfg != nil {
		page, err = stealth.Page(bf.browser)
	} else {
		page, err = bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, err
	}

	if bf.stealthCfg != nil {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  bf.stealthCfg.ViewportWidth,
			Height: bf.stealthCfg.ViewportHeight,
		})
		if err != nil {
			bf.logger.Warn("failed to set viewport", "error", err)
		}
	}

	if len(bf.cfg.UserAgents) > 0 {
		ua := bf.cfg.UserAgents[bf.uaIndex%len(bf.cfg.UserAgents)]
		bf.uaIndex++
		override := &proto.NetworkSetUserAgentOverride{UserAgent: ua}
		if bf.stealthCfg != nil {
			override.AcceptLanguage = bf.stealthCfg.AcceptLanguage()
		}
		if err := page.SetUserAgent(override); err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	bf.page = page
	return page, nil
}

// Fetch navigates to a URL, lets the listings render and returns the page
// HTML.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	start := time.Now()

	page, err := bf.tab()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("open tab: %w", err)}
	}

	timeout := bf.cfg.PageTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	p := page.Context(ctx)

	if err := p.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err := p.Timeout(timeout).WaitLoad(); err != nil {
		bf.logger.Warn("page load timeout, continuing", "url", req.URLString(), "error", err)
	}

	auto := automation.NewBrowserAutomation(p, bf.logger)
	auto.DismissConsent(ctx, bf.cfg.ConsentSelectors)

	waitSel := req.WaitSelector
	if waitSel == "" {
		waitSel = bf.cfg.WaitSelector
	}
	if waitSel != "" {
		if err := auto.WaitForSelector(ctx, waitSel, timeout); err != nil {
			bf.logger.Warn("wait selector timeout", "selector", waitSel, "error", err)
		}
	}

	if _, err := auto.InfiniteScroll(ctx, 3, 500*time.Millisecond); err != nil {
		if ctx.Err() != nil {
			return nil, &types.FetchError{URL: req.URLString(), Err: ctx.Err()}
		}
		bf.logger.Debug("scroll failed", "error", err)
	}

	if err := auto.WaitStable(ctx, bf.cfg.RenderWait); err != nil {
		if ctx.Err() != nil {
			return nil, &types.FetchError{URL: req.URLString(), Err: ctx.Err()}
		}
		bf.logger.Debug("page still changing after render wait", "url", req.URLString())
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if len(html) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	// Rod does not expose the document status without network hooks.
	statusCode := 200

	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, statusCode, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return resp, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.page != nil {
		_ = bf.page.Close()
		bf.page = nil
	}
	var err error
	if bf.browser != nil {
		err = bf.browser.Close()
	}
	if bf.launcher != nil {
		bf.launcher.Kill()
	}
	return err
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
