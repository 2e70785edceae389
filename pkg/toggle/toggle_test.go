package toggle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pinmark/pkg/config"
	"pinmark/pkg/dom"
	"pinmark/pkg/dom/htmldom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type postCall struct {
	Endpoint string
	CSRF     string
	ID       string
	Action   string
}

type fakePoster struct {
	mu     sync.Mutex
	calls  []postCall
	status string
	err    error
	gate   chan struct{}
}

func (f *fakePoster) PostAction(ctx context.Context, endpoint, csrf, id, action string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, postCall{endpoint, csrf, id, action})
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.status, f.err
}

func (f *fakePoster) Calls() []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postCall(nil), f.calls...)
}

func detailPage(verb, action, count string) string {
	return fmt.Sprintf(`<html><body>
<div class="template-data" data-url="/images/%[1]s/"></div>
<span class="count"><span class="total">%[3]s</span> total</span>
<a href="#" data-id="42" data-action="%[2]s" class="%[1]s button">%[2]s</a>
</body></html>`, verb, action, count)
}

type fixture struct {
	loop   *eventloop.Loop
	win    *htmldom.Window
	poster *fakePoster
	action *Action
	log    *logger.TestLogger
}

func bindFixture(t *testing.T, pair Pair, markup string, poster *fakePoster) *fixture {
	t.Helper()
	loop := eventloop.Start(context.Background(), nil)
	t.Cleanup(loop.Close)

	win, err := htmldom.ParseString(markup, "http://site.test/images/detail/42/")
	require.NoError(t, err)

	f := &fixture{loop: loop, win: win, poster: poster, log: logger.NewTestLogger()}
	opts := OptionsFromConfig(&config.DefaultConfig().Toggle, pair)
	require.NoError(t, loop.Sync(func() {
		f.action, err = Bind(win, loop, poster, pair, opts, "csrf-1", f.log)
	}))
	require.NoError(t, err)
	return f
}

func (f *fixture) click(t *testing.T) {
	t.Helper()
	require.NoError(t, f.loop.Sync(func() {
		button, err := f.win.Document().QuerySelector("a.button")
		require.NoError(t, err)
		require.NoError(t, button.Click())
	}))
}

func (f *fixture) settle(t *testing.T) State {
	t.Helper()
	require.NoError(t, f.loop.Quiesce(context.Background()))
	var st State
	require.NoError(t, f.loop.Sync(func() { st = f.action.State() }))
	return st
}

func (f *fixture) label(t *testing.T) string {
	var text string
	require.NoError(t, f.loop.Sync(func() {
		button, err := f.win.Document().QuerySelector("a.button")
		require.NoError(t, err)
		text = button.Text()
	}))
	return text
}

func TestLikeConfirmedIncrements(t *testing.T) {
	poster := &fakePoster{status: "ok"}
	f := bindFixture(t, Like, detailPage("like", "like", "10"), poster)

	f.click(t)
	st := f.settle(t)

	assert.Equal(t, State{Action: "unlike", Count: 11}, st)
	assert.Equal(t, "unlike", f.label(t))
	assert.Equal(t, []postCall{{Endpoint: "/images/like/", CSRF: "csrf-1", ID: "42", Action: "like"}}, poster.Calls())
}

func TestUnlikeConfirmedDecrements(t *testing.T) {
	f := bindFixture(t, Like, detailPage("like", "unlike", "10"), &fakePoster{status: "ok"})

	f.click(t)
	assert.Equal(t, State{Action: "like", Count: 9}, f.settle(t))
	assert.Equal(t, "like", f.label(t))
}

func TestFollowRoundTrip(t *testing.T) {
	poster := &fakePoster{status: "ok"}
	f := bindFixture(t, Follow, detailPage("follow", "follow", "3"), poster)

	f.click(t)
	assert.Equal(t, State{Action: "unfollow", Count: 4}, f.settle(t))

	f.click(t)
	assert.Equal(t, State{Action: "follow", Count: 3}, f.settle(t))

	calls := poster.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "follow", calls[0].Action)
	assert.Equal(t, "unfollow", calls[1].Action)
	assert.Equal(t, "/images/follow/", calls[0].Endpoint)
}

func TestRejectedStatusLeavesPageAlone(t *testing.T) {
	f := bindFixture(t, Like, detailPage("like", "like", "10"), &fakePoster{status: "error"})

	f.click(t)
	assert.Equal(t, State{Action: "like", Count: 10}, f.settle(t))
	assert.Equal(t, "like", f.label(t))
	require.NoError(t, f.loop.Sync(func() {
		assert.True(t, errs.Is(f.action.LastErr(), errs.ErrorTypeRejected))
	}))
}

func TestNetworkFailureLeavesPageAlone(t *testing.T) {
	poster := &fakePoster{err: errs.Wrap(errs.ErrorTypeNetwork, "request failed", errors.New("refused"))}
	f := bindFixture(t, Like, detailPage("like", "unlike", "5"), poster)

	f.click(t)
	assert.Equal(t, State{Action: "unlike", Count: 5}, f.settle(t))
	require.NoError(t, f.loop.Sync(func() {
		assert.True(t, errs.Is(f.action.LastErr(), errs.ErrorTypeNetwork))
	}))
	assert.True(t, f.log.HasMessage("Toggle request failed"))
}

func TestDoubleClickSubmitsOnce(t *testing.T) {
	poster := &fakePoster{status: "ok", gate: make(chan struct{})}
	f := bindFixture(t, Like, detailPage("like", "like", "10"), poster)

	f.click(t)
	f.click(t)

	require.NoError(t, f.loop.Sync(func() {
		assert.True(t, f.action.InFlight())
		button, _ := f.win.Document().QuerySelector("a.button")
		disabled, _ := button.Attr("aria-disabled")
		assert.Equal(t, "true", disabled)
	}))

	close(poster.gate)
	assert.Equal(t, State{Action: "unlike", Count: 11}, f.settle(t))
	assert.Len(t, poster.Calls(), 1)

	require.NoError(t, f.loop.Sync(func() {
		button, _ := f.win.Document().QuerySelector("a.button")
		_, disabled := button.Attr("aria-disabled")
		assert.False(t, disabled)
	}))
}

func TestClickPreventsDefault(t *testing.T) {
	f := bindFixture(t, Like, detailPage("like", "like", "1"), &fakePoster{status: "ok"})

	var prevented bool
	require.NoError(t, f.loop.Sync(func() {
		body, _ := f.win.Document().Body()
		body.AddEventListener(dom.Click, func(ev *dom.Event) { prevented = ev.DefaultPrevented() }, dom.ListenOptions{})
		button, _ := f.win.Document().QuerySelector("a.button")
		button.Click()
	}))
	f.settle(t)
	assert.True(t, prevented)
}

func TestUnparseableCounterStillFlipsAction(t *testing.T) {
	f := bindFixture(t, Like, detailPage("like", "like", "lots"), &fakePoster{status: "ok"})

	f.click(t)
	st := f.settle(t)
	assert.Equal(t, "unlike", st.Action)

	require.NoError(t, f.loop.Sync(func() {
		counter, _ := f.win.Document().QuerySelector("span.count .total")
		assert.Equal(t, "lots", counter.Text())
	}))
}

func TestBindMissingElements(t *testing.T) {
	loop := eventloop.Start(context.Background(), nil)
	defer loop.Close()

	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"no button", `<div class="template-data" data-url="/x/"></div><span class="count"><span class="total">1</span></span>`, "a.like"},
		{"no counter", `<div class="template-data" data-url="/x/"></div><a class="like" data-action="like">like</a>`, "span.count .total"},
		{"no endpoint", `<div class="template-data"></div><span class="count"><span class="total">1</span></span><a class="like">like</a>`, "data-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win, err := htmldom.ParseString(tt.markup, "http://site.test/")
			require.NoError(t, err)

			var bindErr error
			require.NoError(t, loop.Sync(func() {
				_, bindErr = Bind(win, loop, &fakePoster{}, Like, OptionsFromConfig(&config.DefaultConfig().Toggle, Like), "", nil)
			}))
			require.Error(t, bindErr)
			assert.True(t, errs.Is(bindErr, errs.ErrorTypeMissingElement))
			assert.Contains(t, bindErr.Error(), tt.want)
		})
	}
}

func TestUnbind(t *testing.T) {
	poster := &fakePoster{status: "ok"}
	f := bindFixture(t, Like, detailPage("like", "like", "10"), poster)

	require.NoError(t, f.loop.Sync(f.action.Unbind))
	f.click(t)
	assert.Equal(t, State{Action: "like", Count: 10}, f.settle(t))
	assert.Empty(t, poster.Calls())
}
