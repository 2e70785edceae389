package scroll

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pinmark/pkg/config"
	"pinmark/pkg/dom/htmldom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
	"pinmark/pkg/retry"
	"pinmark/pkg/site"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const listingPage = `<html><body>
<div id="image-list"><div class="image">1</div></div>
</body></html>`

// pagedFetcher serves numbered fragments up to last and fails the test if two
// requests ever overlap
type pagedFetcher struct {
	t        *testing.T
	last     int
	fail     error
	inFlight atomic.Int32

	mu    sync.Mutex
	pages []string
}

func (f *pagedFetcher) FetchFragment(ctx context.Context, pageURL string) (string, error) {
	if f.inFlight.Add(1) != 1 {
		f.t.Errorf("overlapping request for %s", pageURL)
	}
	defer f.inFlight.Add(-1)
	time.Sleep(time.Millisecond)

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	page := u.Query().Get("page")

	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	if f.fail != nil {
		return "", f.fail
	}
	var n int
	fmt.Sscanf(page, "%d", &n)
	if n > f.last {
		return "", nil
	}
	return fmt.Sprintf(`<div class="image">%d</div>`, n), nil
}

func (f *pagedFetcher) Pages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pages...)
}

type harness struct {
	loop   *eventloop.Loop
	win    *htmldom.Window
	loader *Loader
}

func startHarness(t *testing.T, fetcher Fetcher, opts Options, parseOpts ...htmldom.Option) *harness {
	t.Helper()
	loop := eventloop.Start(context.Background(), nil)
	t.Cleanup(loop.Close)

	win, err := htmldom.ParseString(listingPage, "http://site.test/images/?sort=new", parseOpts...)
	require.NoError(t, err)

	h := &harness{loop: loop, win: win}
	require.NoError(t, loop.Sync(func() {
		h.loader, err = Start(win, loop, fetcher, opts, logger.NewTestLogger())
	}))
	require.NoError(t, err)
	return h
}

func (h *harness) scroll(t *testing.T, y int) {
	t.Helper()
	require.NoError(t, h.loop.Quiesce(context.Background()))
	require.NoError(t, h.loop.Sync(func() { h.win.ScrollTo(y) }))
	require.NoError(t, h.loop.Quiesce(context.Background()))
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	var st State
	require.NoError(t, h.loop.Sync(func() { st = h.loader.State() }))
	return st
}

func (h *harness) items(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, h.loop.Sync(func() {
		items, err := h.win.Document().QuerySelectorAll("#image-list .image")
		require.NoError(t, err)
		n = len(items)
	}))
	return n
}

func defaultOptions() Options {
	return OptionsFromConfig(&config.DefaultConfig().Scroll)
}

func TestLoadsPagesUntilEmpty(t *testing.T) {
	fetcher := &pagedFetcher{t: t, last: 4}
	h := startHarness(t, fetcher, defaultOptions())

	for i := 0; i < 6; i++ {
		h.scroll(t, 10*i)
	}

	assert.Equal(t, []string{"2", "3", "4", "5"}, fetcher.Pages())
	assert.Equal(t, State{Page: 5, Exhausted: true, Appended: 3}, h.state(t))
	assert.Equal(t, 4, h.items(t))

	select {
	case <-h.loader.Done():
	default:
		t.Fatal("loader should be done once exhausted")
	}
}

func TestInitialCheckFetchesWithoutScrolling(t *testing.T) {
	fetcher := &pagedFetcher{t: t, last: 10}
	h := startHarness(t, fetcher, defaultOptions())
	require.NoError(t, h.loop.Quiesce(context.Background()))

	assert.Equal(t, []string{"2"}, fetcher.Pages())
	assert.Equal(t, 2, h.items(t))
}

func TestThresholdGatesFetching(t *testing.T) {
	fetcher := &pagedFetcher{t: t, last: 10}
	h := startHarness(t, fetcher, defaultOptions(), htmldom.WithViewport(800, 3000))

	// margin = 3000 - 800 - 200
	h.scroll(t, 1000)
	h.scroll(t, 2000)
	assert.Empty(t, fetcher.Pages())

	h.scroll(t, 2001)
	assert.Equal(t, []string{"2"}, fetcher.Pages())
}

func TestScrollWhileInFlightIsIgnored(t *testing.T) {
	fetcher := &pagedFetcher{t: t, last: 10}
	h := startHarness(t, fetcher, defaultOptions())

	require.NoError(t, h.loop.Sync(func() {
		assert.True(t, h.loader.State().InFlight)
		h.win.ScrollTo(50)
		h.win.ScrollTo(60)
	}))
	require.NoError(t, h.loop.Quiesce(context.Background()))

	assert.Equal(t, []string{"2"}, fetcher.Pages())
}

func TestFetchFailureStalls(t *testing.T) {
	boom := errs.Wrap(errs.ErrorTypeNetwork, "request failed", errors.New("refused"))
	fetcher := &pagedFetcher{t: t, last: 10, fail: boom}
	h := startHarness(t, fetcher, defaultOptions())

	h.scroll(t, 100)
	h.scroll(t, 200)

	assert.Equal(t, []string{"2"}, fetcher.Pages())
	st := h.state(t)
	assert.True(t, st.Stalled)
	assert.False(t, st.InFlight)
	assert.False(t, st.Exhausted)
	require.NoError(t, h.loop.Sync(func() {
		assert.ErrorIs(t, h.loader.LastErr(), boom)
	}))
	assert.Equal(t, 1, h.items(t))
}

func TestMaxPages(t *testing.T) {
	fetcher := &pagedFetcher{t: t, last: 10}
	opts := defaultOptions()
	opts.MaxPages = 3
	h := startHarness(t, fetcher, opts)

	for i := 0; i < 5; i++ {
		h.scroll(t, i)
	}

	assert.Equal(t, []string{"2", "3"}, fetcher.Pages())
	st := h.state(t)
	assert.Equal(t, 3, st.Page)
	assert.False(t, st.Exhausted)
	<-h.loader.Done()
}

func TestMissingContainer(t *testing.T) {
	loop := eventloop.Start(context.Background(), nil)
	defer loop.Close()

	win, err := htmldom.ParseString(`<html><body><p>nothing</p></body></html>`, "http://site.test/images/")
	require.NoError(t, err)

	var startErr error
	require.NoError(t, loop.Sync(func() {
		_, startErr = Start(win, loop, &pagedFetcher{t: t}, defaultOptions(), nil)
	}))
	assert.True(t, errs.Is(startErr, errs.ErrorTypeMissingElement))
	assert.Contains(t, startErr.Error(), "#image-list")
	assert.Zero(t, win.ListenerCount("scroll"))
}

func TestAgainstSiteClient(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/images/", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("images_only"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<div class="image">2a</div><div class="image">2b</div>`)
		}
	}))
	defer server.Close()

	cfg := config.DefaultConfig().Site
	cfg.Origin = server.URL
	client, err := site.NewClient(&cfg, logger.NewNopLogger())
	require.NoError(t, err)
	client.SetRetry(&retry.Config{MaxAttempts: 1, Backoff: &retry.ConstantBackoff{}, Logger: logger.NewNopLogger()})

	loop := eventloop.Start(context.Background(), nil)
	defer loop.Close()
	win, err := htmldom.ParseString(listingPage, server.URL+"/images/")
	require.NoError(t, err)

	var loader *Loader
	require.NoError(t, loop.Sync(func() {
		loader, err = Start(win, loop, client, defaultOptions(), nil)
	}))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, loop.Quiesce(context.Background()))
		require.NoError(t, loop.Sync(func() { win.ScrollTo(i + 1) }))
	}
	<-loader.Done()
	require.NoError(t, loop.Quiesce(context.Background()))

	assert.Equal(t, int32(2), hits.Load())
	require.NoError(t, loop.Sync(func() {
		items, err := win.Document().QuerySelectorAll(".image")
		require.NoError(t, err)
		assert.Len(t, items, 3)
		assert.True(t, loader.State().Exhausted)
	}))
}
