// Package scroll appends further listing pages to the page as the user nears
// the bottom.
package scroll

import (
	"context"
	"errors"
	"fmt"

	"pinmark/pkg/config"
	"pinmark/pkg/dom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
	"pinmark/pkg/site"
)

// Fetcher returns the body of a listing fragment. An empty body means there
// are no more pages.
type Fetcher interface {
	FetchFragment(ctx context.Context, pageURL string) (string, error)
}

// Options configure a Loader
type Options struct {
	// ContainerID is the id of the element fragments are appended to
	ContainerID string
	// Threshold is how close to the bottom, in pixels, a scroll must get
	Threshold int
	// MaxPages stops the loader after that many pages including the first.
	// Zero means no limit.
	MaxPages int
}

// OptionsFromConfig converts the scroll config section
func OptionsFromConfig(cfg *config.ScrollConfig) Options {
	return Options{
		ContainerID: cfg.ContainerID,
		Threshold:   cfg.Threshold,
		MaxPages:    cfg.MaxPages,
	}
}

// State is the pagination cursor
type State struct {
	Page      int  `json:"page"`
	Exhausted bool `json:"exhausted"`
	InFlight  bool `json:"in_flight"`
	Stalled   bool `json:"stalled"`
	Appended  int  `json:"appended"`
}

// Loader is a running infinite scroll
type Loader struct {
	win       dom.Window
	loop      *eventloop.Loop
	fetcher   Fetcher
	opts      Options
	container dom.Element
	body      dom.Element
	log       logger.Logger

	page      int
	exhausted bool
	inFlight  bool
	stalled   bool
	appended  int
	lastErr   error

	remove dom.RemoveFunc
	done   chan struct{}
}

// Start binds the scroll listener and runs one check right away, so a page
// shorter than the viewport starts loading without user input. It must be
// called on the loop.
func Start(win dom.Window, loop *eventloop.Loop, fetcher Fetcher, opts Options, log logger.Logger) (*Loader, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	doc := win.Document()

	container, err := doc.GetElementByID(opts.ContainerID)
	if errors.Is(err, dom.ErrNotFound) {
		return nil, errs.MissingElement("#" + opts.ContainerID)
	}
	if err != nil {
		return nil, err
	}
	body, err := doc.Body()
	if err != nil {
		return nil, errs.MissingElement("body")
	}

	l := &Loader{
		win:       win,
		loop:      loop,
		fetcher:   fetcher,
		opts:      opts,
		container: container,
		body:      body,
		log:       log.WithField("component", "scroll"),
		page:      1,
		done:      make(chan struct{}),
	}

	l.remove, err = win.AddEventListener(dom.Scroll, l.onScroll, dom.ListenOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to bind scroll listener: %w", err)
	}
	if err := win.DispatchEvent(dom.Scroll); err != nil {
		l.log.WithError(err).Warn("Initial scroll check failed")
	}
	return l, nil
}

// State returns the cursor
func (l *Loader) State() State {
	return State{
		Page:      l.page,
		Exhausted: l.exhausted,
		InFlight:  l.inFlight,
		Stalled:   l.stalled,
		Appended:  l.appended,
	}
}

// LastErr is the fetch error that stalled the loader, if any
func (l *Loader) LastErr() error {
	return l.lastErr
}

// Done is closed once the loader will make no further requests
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Stop detaches the scroll listener
func (l *Loader) Stop() {
	if l.remove != nil {
		l.remove()
	}
}

func (l *Loader) finished() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Loader) finish(reason string) {
	if l.finished() {
		return
	}
	l.Stop()
	close(l.done)
	l.log.DebugWithFields("Loader finished", map[string]interface{}{
		"reason": reason,
		"page":   l.page,
	})
}

func (l *Loader) onScroll(*dom.Event) {
	if l.inFlight || l.exhausted || l.stalled || l.finished() {
		return
	}
	margin := l.body.ClientHeight() - l.win.InnerHeight() - l.opts.Threshold
	if l.win.ScrollY() <= margin {
		return
	}
	if l.opts.MaxPages > 0 && l.page >= l.opts.MaxPages {
		l.finish("page limit")
		return
	}

	l.inFlight = true
	l.page++
	pageURL, err := site.PageURL(l.win.Document().URL(), l.page)
	if err != nil {
		l.stall(err)
		return
	}

	l.log.WithField("url", pageURL).Debug("Fetching next page")
	started := eventloop.Await(l.loop, func(ctx context.Context) (string, error) {
		return l.fetcher.FetchFragment(ctx, pageURL)
	}, l.settle)
	if !started {
		l.inFlight = false
	}
}

func (l *Loader) settle(body string, err error) {
	if err != nil {
		l.stall(err)
		return
	}
	if body == "" {
		l.inFlight = false
		l.exhausted = true
		l.finish("exhausted")
		return
	}

	if err := l.container.InsertAdjacentHTML(dom.BeforeEnd, body); err != nil {
		l.stall(err)
		return
	}
	l.appended++
	l.inFlight = false
}

// stall stops all further requests. The page stays usable with what it has.
func (l *Loader) stall(err error) {
	l.inFlight = false
	l.stalled = true
	l.lastErr = err
	l.log.WithError(err).WithField("page", l.page).Warn("Page fetch failed, loader stalled")
	l.finish("stalled")
}
