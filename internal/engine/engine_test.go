package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/DocScrape/internal/config"
	"github.com/IshaanNene/DocScrape/internal/parser"
	"github.com/IshaanNene/DocScrape/internal/pipeline"
	"github.com/IshaanNene/DocScrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// card renders one listing block the way the results page does.
func card(name string) string {
	return fmt.Sprintf(`<div><h2><button>%s</button></h2><p>Gastro-entérologue</p><p>12 Rue de Charenton</p><p>75012 Paris</p></div>`, name)
}

func pageHTML(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, n := range names {
		b.WriteString(card(n))
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fakeFetcher serves canned pages keyed by page number and records every
// request it sees.
type fakeFetcher struct {
	pages map[int]string
	fail  map[int]error

	// sleep is how long each fetch takes.
	sleep time.Duration

	mu    sync.Mutex
	urls  []string
	times []time.Time
	ends  []time.Time
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	f.urls = append(f.urls, req.URLString())
	f.times = append(f.times, time.Now())
	f.mu.Unlock()

	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	defer func() {
		f.mu.Lock()
		f.ends = append(f.ends, time.Now())
		f.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err, ok := f.fail[req.Page]; ok {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	body := f.pages[req.Page]
	return types.NewBrowserResponse(req, 200, []byte(body), req.URLString(), time.Millisecond), nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func newTestEngine(t *testing.T, maxPages int, delay time.Duration, f Fetcher) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = "https://www.doctolib.fr/search?location=75012-paris&speciality=gastro-enterologue&page=7"
	cfg.MaxPages = maxPages
	cfg.Scraping.DelayBetweenPages = delay

	e := New(cfg, testLogger)
	e.SetFetcher(f)
	e.SetExtractor(parser.NewRegexExtractor(testLogger))
	e.SetNormalizer(pipeline.NewDefault(testLogger))
	return e
}

func TestRunStopsAtMaxPages(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{
		1: pageHTML("Dr A", "Dr B"),
		2: pageHTML("Dr C", "Dr D"),
		3: pageHTML("Dr E"),
		4: pageHTML("Dr F"),
	}}
	e := newTestEngine(t, 3, 0, f)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.calls())
	require.Equal(t, "max_pages", res.Stopped)
	require.Len(t, res.Pages, 3)

	var names []string
	for _, d := range res.Doctors {
		names = append(names, d.Name)
	}
	require.Equal(t, []string{"Dr A", "Dr B", "Dr C", "Dr D", "Dr E"}, names)
	require.Equal(t, StateDone, e.GetState())
	require.EqualValues(t, 5, e.Stats().RecordsExtracted.Load())
}

func TestRunPageURLs(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{1: pageHTML("Dr A"), 2: pageHTML("Dr B")}}
	e := newTestEngine(t, 2, 0, f)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.doctolib.fr/search?location=75012-paris&speciality=gastro-enterologue&page=1",
		"https://www.doctolib.fr/search?location=75012-paris&speciality=gastro-enterologue&page=2",
	}, f.urls)
}

func TestRunStopsAtFirstEmptyPage(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{
		1: pageHTML("Dr A"),
		2: "<html><body><p>Aucun résultat</p></body></html>",
		3: pageHTML("Dr C"),
	}}
	e := newTestEngine(t, 5, 0, f)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, f.calls(), "no page after the empty one should be fetched")
	require.Equal(t, "empty_page", res.Stopped)
	require.Len(t, res.Doctors, 1)
	require.True(t, res.Pages[1].Empty())
	require.EqualValues(t, 1, e.Stats().PagesEmpty.Load())
}

func TestRunFailedPageContinues(t *testing.T) {
	f := &fakeFetcher{
		pages: map[int]string{1: pageHTML("Dr A"), 3: pageHTML("Dr C")},
		fail:  map[int]error{2: errors.New("navigation timeout")},
	}
	e := newTestEngine(t, 3, 0, f)

	var seen []PageResult
	e.OnPage(func(pr PageResult) { seen = append(seen, pr) })

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.calls())
	require.Len(t, res.Doctors, 2)
	require.Equal(t, "Dr C", res.Doctors[1].Name)

	require.Len(t, seen, 3)
	require.Equal(t, StateFailedPage, seen[1].State)
	require.False(t, seen[1].Empty(), "a failed page must not count as empty")
	var fe *types.FetchError
	require.ErrorAs(t, seen[1].Err, &fe)
	require.EqualValues(t, 1, e.Stats().PagesFailed.Load())
}

func TestRunDelayEnforced(t *testing.T) {
	const delay = 60 * time.Millisecond
	f := &fakeFetcher{pages: map[int]string{1: pageHTML("Dr A"), 2: pageHTML("Dr B"), 3: pageHTML("Dr C")}}
	e := newTestEngine(t, 3, delay, f)

	start := time.Now()
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.calls())

	require.Less(t, f.times[0].Sub(start), delay, "first fetch should be immediate")
	for i := 1; i < len(f.times); i++ {
		gap := f.times[i].Sub(f.times[i-1])
		// Allow a little timer slack.
		require.GreaterOrEqual(t, gap, delay-10*time.Millisecond, "gap before fetch %d", i+1)
	}
}

func TestRunDelayAfterSlowPage(t *testing.T) {
	const delay = 60 * time.Millisecond
	f := &fakeFetcher{
		pages: map[int]string{1: pageHTML("Dr A"), 2: pageHTML("Dr B"), 3: pageHTML("Dr C")},
		sleep: 80 * time.Millisecond,
	}
	e := newTestEngine(t, 3, delay, f)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.calls())
	require.Len(t, f.ends, 3)

	for i := 1; i < len(f.times); i++ {
		idle := f.times[i].Sub(f.ends[i-1])
		require.GreaterOrEqual(t, idle, delay-10*time.Millisecond, "idle time before fetch %d", i+1)
	}
}

func TestRunStop(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{1: pageHTML("Dr A"), 2: pageHTML("Dr B")}}
	e := newTestEngine(t, 5, 0, f)
	e.OnPage(func(pr PageResult) {
		if pr.Page == 1 {
			e.Stop()
		}
	})

	res, err := e.Run(context.Background())
	require.ErrorIs(t, err, types.ErrRunStopped)
	require.Equal(t, "cancelled", res.Stopped)
	require.Len(t, res.Doctors, 1, "records gathered before the stop are kept")
	require.Equal(t, 1, f.calls())
}

func TestRunContextCancelled(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{1: pageHTML("Dr A")}}
	e := newTestEngine(t, 3, 0, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, res.Doctors)
	require.Zero(t, f.calls())
}

func TestRunOnlyOnce(t *testing.T) {
	f := &fakeFetcher{pages: map[int]string{1: pageHTML("Dr A")}}
	e := newTestEngine(t, 1, 0, f)

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.Error(t, err)
}

func TestRunRequiresComponents(t *testing.T) {
	e := New(config.DefaultConfig(), testLogger)
	_, err := e.Run(context.Background())
	require.Error(t, err)
}

func TestOnResponseSeesEveryFetchedPage(t *testing.T) {
	f := &fakeFetcher{
		pages: map[int]string{1: pageHTML("Dr A"), 3: pageHTML("Dr C")},
		fail:  map[int]error{2: errors.New("boom")},
	}
	e := newTestEngine(t, 3, 0, f)

	var pages []int
	e.OnResponse(func(resp *types.Response) { pages = append(pages, resp.Request.Page) })

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, pages)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "fetching", StateFetching.String())
	require.Equal(t, "done", StateDone.String())
	require.Equal(t, "failed-page", StateFailedPage.String())
	require.Equal(t, "unknown", State(42).String())
}
