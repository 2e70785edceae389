// Package htmldom is an in-memory dom backend built on golang.org/x/net/html.
//
// It has no renderer. Natural image sizes come from a Sizer, scroll metrics
// are set by the caller, and window.open calls are recorded instead of
// opening anything.
package htmldom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"pinmark/pkg/dom"
	"pinmark/pkg/logger"
)

// Sizer reports the natural size of an image by its resolved URL
type Sizer interface {
	NaturalSize(src string) (width, height int, ok bool)
}

// SizerFunc adapts a function to Sizer
type SizerFunc func(src string) (int, int, bool)

func (f SizerFunc) NaturalSize(src string) (int, int, bool) {
	return f(src)
}

// Opened is one recorded window.open call
type Opened struct {
	URL    string
	Target string
}

// Option configures a Window
type Option func(*Window)

// WithCookies sets the cookies visible to document.cookie
func WithCookies(cookies map[string]string) Option {
	return func(w *Window) {
		for k, v := range cookies {
			w.doc.cookies[k] = v
		}
	}
}

// WithSizer sets where natural image sizes come from
func WithSizer(s Sizer) Option {
	return func(w *Window) { w.doc.sizer = s }
}

// WithOpenHandler is called for every window.open after it is recorded
func WithOpenHandler(fn func(url, target string)) Option {
	return func(w *Window) { w.onOpen = fn }
}

// WithViewport sets innerHeight and the body's clientHeight
func WithViewport(innerHeight, bodyHeight int) Option {
	return func(w *Window) {
		w.innerHeight = innerHeight
		w.doc.bodyHeight = bodyHeight
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(w *Window) { w.log = log }
}

// Window implements dom.Window
type Window struct {
	doc         *Document
	innerHeight int
	scrollY     int
	listeners   listenerSet
	opened      []Opened
	onOpen      func(url, target string)
	log         logger.Logger
}

var _ dom.Window = (*Window)(nil)

// Parse builds a window around the HTML read from r. The document starts in
// the loading state; call Load to fire DOMContentLoaded and load.
func Parse(r io.Reader, pageURL string, opts ...Option) (*Window, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	w := &Window{
		innerHeight: 800,
		log:         logger.NewNopLogger(),
	}
	w.doc = &Document{
		win:       w,
		root:      root,
		base:      base,
		state:     dom.Loading,
		cookies:   make(map[string]string),
		elements:  make(map[*html.Node]*Element),
		listeners: make(map[*html.Node]*listenerSet),
	}

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// ParseString is Parse for a string
func ParseString(markup, pageURL string, opts ...Option) (*Window, error) {
	return Parse(strings.NewReader(markup), pageURL, opts...)
}

// Load finishes parsing: the document becomes interactive and receives
// DOMContentLoaded, then completes and the window receives load.
func (w *Window) Load() {
	if w.doc.state != dom.Loading {
		return
	}
	w.doc.state = dom.Interactive
	w.doc.listeners[w.doc.root].fire(&dom.Event{Type: dom.DOMContentLoaded})
	w.doc.state = dom.Complete
	w.listeners.fire(&dom.Event{Type: dom.Load})
}

func (w *Window) Document() dom.Document {
	return w.doc
}

// HTMLDocument returns the concrete document
func (w *Window) HTMLDocument() *Document {
	return w.doc
}

func (w *Window) InnerHeight() int {
	return w.innerHeight
}

func (w *Window) ScrollY() int {
	return w.scrollY
}

// ScrollTo moves the viewport and fires scroll on the window
func (w *Window) ScrollTo(y int) {
	w.scrollY = y
	w.listeners.fire(&dom.Event{Type: dom.Scroll})
}

// SetBodyHeight changes the body's clientHeight, as content growth would
func (w *Window) SetBodyHeight(h int) {
	w.doc.bodyHeight = h
}

func (w *Window) Open(target, name string) error {
	w.opened = append(w.opened, Opened{URL: target, Target: name})
	w.log.DebugWithFields("window.open", map[string]interface{}{
		"url":    target,
		"target": name,
	})
	if w.onOpen != nil {
		w.onOpen(target, name)
	}
	return nil
}

// Opened returns every window.open call so far
func (w *Window) Opened() []Opened {
	out := make([]Opened, len(w.opened))
	copy(out, w.opened)
	return out
}

func (w *Window) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return w.listeners.add(t, fn, opts), nil
}

func (w *Window) DispatchEvent(t dom.EventType) error {
	w.listeners.fire(&dom.Event{Type: t, Synthetic: true})
	return nil
}

// ListenerCount reports how many window listeners are registered for t
func (w *Window) ListenerCount(t dom.EventType) int {
	return w.listeners.count(t)
}
