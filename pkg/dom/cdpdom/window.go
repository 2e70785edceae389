// Package cdpdom implements pkg/dom against a live Chromium tab.
//
// A small script (shim.js) keeps a registry of node handles in the page, and
// every DOM call is one Runtime.evaluate against it. Page events come back
// through a Runtime binding and are posted onto the event loop, so listeners
// run on the loop exactly as they do with htmldom, only later.
package cdpdom

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"pinmark/pkg/dom"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
)

//go:embed shim.js
var shimScript string

const bindingName = "__pinmarkEvent"

type targetKey = interface{}

const (
	windowTarget   = "window"
	documentTarget = "document"
)

type registration struct {
	fn     dom.Listener
	opts   dom.ListenOptions
	target targetKey
	typ    dom.EventType
}

// Opened is a window.open call made through Open
type Opened struct {
	URL    string
	Target string
}

// Window is a live tab
type Window struct {
	ctx  context.Context
	loop *eventloop.Loop
	log  logger.Logger

	// listeners is only touched on the loop
	listeners map[string]*registration

	mu     sync.Mutex
	opened []Opened
	onOpen func(url, target string)
}

// Option configures Attach
type Option func(*Window)

// WithOpenHandler is called after each Open
func WithOpenHandler(fn func(url, target string)) Option {
	return func(w *Window) { w.onOpen = fn }
}

// Attach prepares the tab behind ctx (a chromedp context) for use as a
// dom.Window: it installs the shim in the current and every future document
// and starts forwarding page events to loop.
func Attach(ctx context.Context, loop *eventloop.Loop, log logger.Logger, opts ...Option) (*Window, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	w := &Window{
		ctx:       ctx,
		loop:      loop,
		log:       log.WithField("component", "cdpdom"),
		listeners: make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(w)
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == bindingName {
			w.receive(e.Payload)
		}
	})

	err := chromedp.Run(ctx,
		runtime.Enable(),
		runtime.AddBinding(bindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(shimScript).Do(ctx)
			return err
		}),
		chromedp.Evaluate(shimScript, nil),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to page: %w", err)
	}
	return w, nil
}

// Navigate loads url in the tab and waits for its load event
func (w *Window) Navigate(url string) error {
	if err := chromedp.Run(w.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (w *Window) call(out interface{}, fn string, args ...interface{}) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s arguments: %w", fn, err)
	}
	expr := "window.__pinmark." + fn + "(..." + string(encoded) + ")"
	if err := chromedp.Run(w.ctx, chromedp.Evaluate(expr, out)); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

type pageState struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	ReadyState  string `json:"readyState"`
	InnerHeight int    `json:"innerHeight"`
	ScrollY     int    `json:"scrollY"`
}

func (w *Window) state() pageState {
	var st pageState
	if err := w.call(&st, "state"); err != nil {
		w.log.WithError(err).Debug("Failed to read page state")
	}
	return st
}

// Document returns the tab's current document
func (w *Window) Document() dom.Document {
	return &Document{w: w}
}

// InnerHeight is window.innerHeight
func (w *Window) InnerHeight() int {
	return w.state().InnerHeight
}

// ScrollY is window.scrollY, rounded
func (w *Window) ScrollY() int {
	return w.state().ScrollY
}

// Open calls window.open in the page
func (w *Window) Open(url, target string) error {
	if err := w.call(nil, "open", url, target); err != nil {
		return err
	}
	w.mu.Lock()
	w.opened = append(w.opened, Opened{URL: url, Target: target})
	w.mu.Unlock()
	if w.onOpen != nil {
		w.onOpen(url, target)
	}
	return nil
}

// Opened lists Open calls so far
func (w *Window) Opened() []Opened {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Opened(nil), w.opened...)
}

// AddEventListener listens on window
func (w *Window) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return w.listen(windowTarget, t, fn, opts)
}

// DispatchEvent dispatches a synthetic event on window
func (w *Window) DispatchEvent(t dom.EventType) error {
	return w.call(nil, "dispatch", windowTarget, string(t))
}

// ListenerCount is the number of listeners of type t registered on target
// through this window. Call it on the loop.
func (w *Window) ListenerCount(target interface{}, t dom.EventType) int {
	n := 0
	for _, reg := range w.listeners {
		if reg.typ == t && reg.target == target {
			n++
		}
	}
	return n
}

func (w *Window) listen(target targetKey, t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	id := uuid.NewString()
	w.listeners[id] = &registration{fn: fn, opts: opts, target: target, typ: t}

	if err := w.call(nil, "listen", target, string(t), id, opts.PreventDefault, opts.Once); err != nil {
		delete(w.listeners, id)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if _, ok := w.listeners[id]; !ok {
				return
			}
			delete(w.listeners, id)
			if err := w.call(nil, "unlisten", id); err != nil {
				w.log.WithError(err).Debug("Failed to remove page listener")
			}
		})
	}, nil
}

// receive runs on a chromedp goroutine and only hands the payload over
func (w *Window) receive(payload string) {
	if !gjson.Valid(payload) {
		w.log.WithField("payload", payload).Debug("Ignoring malformed page event")
		return
	}
	fields := gjson.GetMany(payload, "listener", "type", "target", "synthetic")
	id := fields[0].String()
	ev := &dom.Event{
		Type:      dom.EventType(fields[1].String()),
		Synthetic: fields[3].Bool(),
	}
	if fields[2].Type == gjson.Number {
		ev.Target = &Element{w: w, id: fields[2].Int()}
	}

	w.loop.Post(func() { w.fire(id, ev) })
}

func (w *Window) fire(id string, ev *dom.Event) {
	reg, ok := w.listeners[id]
	if !ok {
		return
	}
	if reg.opts.Once {
		delete(w.listeners, id)
	}
	if reg.opts.PreventDefault {
		ev.PreventDefault()
	}
	reg.fn(ev)
}
