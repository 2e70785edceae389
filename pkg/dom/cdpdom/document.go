package cdpdom

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"pinmark/pkg/dom"
)

// Document is the tab's current document
type Document struct {
	w *Window
}

func (d *Document) URL() string {
	return d.w.state().URL
}

func (d *Document) Title() string {
	return strings.Join(strings.Fields(d.w.state().Title), " ")
}

func (d *Document) ReadyState() dom.ReadyState {
	return dom.ReadyState(d.w.state().ReadyState)
}

// Cookie reads name from the browser's cookie store for the document URL,
// HttpOnly cookies included
func (d *Document) Cookie(name string) (string, bool) {
	pageURL := d.URL()
	var cookies []*network.Cookie
	err := chromedp.Run(d.w.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithUrls([]string{pageURL}).Do(ctx)
		return err
	}))
	if err != nil {
		d.w.log.WithError(err).Debug("Failed to read cookies")
		return "", false
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (d *Document) Head() (dom.Element, error) {
	return d.w.handle("head")
}

func (d *Document) Body() (dom.Element, error) {
	return d.w.handle("body")
}

func (d *Document) GetElementByID(id string) (dom.Element, error) {
	return d.w.handle("byId", id)
}

func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	return d.w.handle("query", nil, selector, false)
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return d.w.handles("query", nil, selector, true)
}

func (d *Document) CreateElement(tag string) (dom.Element, error) {
	return d.w.handle("create", tag)
}

func (d *Document) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return d.w.listen(documentTarget, t, fn, opts)
}

func (d *Document) DispatchEvent(t dom.EventType) error {
	return d.w.call(nil, "dispatch", documentTarget, string(t))
}

func (w *Window) handle(fn string, args ...interface{}) (dom.Element, error) {
	var id *int64
	if err := w.call(&id, fn, args...); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, dom.ErrNotFound
	}
	return &Element{w: w, id: *id}, nil
}

func (w *Window) handles(fn string, args ...interface{}) ([]dom.Element, error) {
	var ids []int64
	if err := w.call(&ids, fn, args...); err != nil {
		return nil, err
	}
	out := make([]dom.Element, len(ids))
	for i, id := range ids {
		out[i] = &Element{w: w, id: id}
	}
	return out, nil
}
