// Package automation drives a rendered results page before it is read:
// dismissing the cookie banner, scrolling lazy listings into view and
// waiting for the listing container.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserAutomation handles browser interactions on a single page.
type BrowserAutomation struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewBrowserAutomation wraps a Rod page with automation helpers.
func NewBrowserAutomation(page *rod.Page, logger *slog.Logger) *BrowserAutomation {
	return &BrowserAutomation{
		page:   page,
		logger: logger.With("component", "browser_automation"),
	}
}

// --- Consent ---

// containsRe matches the jQuery-style `:contains("text")` pseudo-class,
// which CSS engines in the browser do not understand.
var containsRe = regexp.MustCompile(`^(.*?):contains\(\s*["']?(.*?)["']?\s*\)$`)

// SplitContains separates a `sel:contains("text")` selector into the plain
// CSS part and the text to match. Selectors without the pseudo-class come
// back unchanged with an empty text.
func SplitContains(selector string) (css, text string) {
	m := containsRe.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil {
		return strings.TrimSpace(selector), ""
	}
	css = strings.TrimSpace(m[1])
	if css == "" {
		css = "*"
	}
	return css, m[2]
}

// DismissConsent clicks the first visible element matching one of the
// selectors. It reports whether a banner was dismissed. A page without a
// banner is not an error.
func (ba *BrowserAutomation) DismissConsent(ctx context.Context, selectors []string) bool {
	page := ba.page.Context(ctx)
	for _, sel := range selectors {
		css, text := SplitContains(sel)

		var (
			found bool
			el    *rod.Element
			err   error
		)
		if text != "" {
			found, el, err = page.HasR(css, regexp.QuoteMeta(text))
		} else {
			found, el, err = page.Has(css)
		}
		if err != nil || !found {
			continue
		}
		if visible, _ := el.Visible(); !visible {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			ba.logger.Debug("consent click failed", "selector", sel, "error", err)
			continue
		}
		ba.logger.Debug("consent banner dismissed", "selector", sel)
		return true
	}
	return false
}

// --- Scrolling ---

// ScrollToBottom scrolls to the bottom of the page.
func (ba *BrowserAutomation) ScrollToBottom() error {
	_, err := ba.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

// InfiniteScroll scrolls until the page height stops growing or maxScrolls
// is reached. It returns the number of scrolls performed.
func (ba *BrowserAutomation) InfiniteScroll(ctx context.Context, maxScrolls int, waitBetween time.Duration) (int, error) {
	lastHeight := 0
	scrollCount := 0

	for scrollCount < maxScrolls {
		result, err := ba.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return scrollCount, err
		}
		currentHeight := result.Value.Int()
		if currentHeight == lastHeight {
			break
		}
		lastHeight = currentHeight

		if err := ba.ScrollToBottom(); err != nil {
			return scrollCount, err
		}
		scrollCount++

		if err := sleep(ctx, waitBetween); err != nil {
			return scrollCount, err
		}
	}

	return scrollCount, nil
}

// --- Waiting ---

// WaitForSelector blocks until an element matching selector is visible or
// the timeout elapses.
func (ba *BrowserAutomation) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := ba.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.WaitVisible()
}

// WaitStable waits for the DOM to settle.
func (ba *BrowserAutomation) WaitStable(ctx context.Context, timeout time.Duration) error {
	return ba.page.Context(ctx).Timeout(timeout).WaitStable(300 * time.Millisecond)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
