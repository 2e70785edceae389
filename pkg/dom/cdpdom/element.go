package cdpdom

import (
	"fmt"

	"pinmark/pkg/dom"
)

// Element is a handle to a node in the page. Handles stay valid for the
// lifetime of the document.
type Element struct {
	w  *Window
	id int64
}

type elementInfo struct {
	Tag string `json:"tag"`
	ID  string `json:"id"`
}

func (e *Element) info() elementInfo {
	var info elementInfo
	if err := e.w.call(&info, "info", e.id); err != nil {
		e.w.log.WithError(err).Debug("Failed to read element")
	}
	return info
}

func (e *Element) TagName() string {
	return e.info().Tag
}

func (e *Element) ID() string {
	return e.info().ID
}

func (e *Element) Attr(name string) (string, bool) {
	var attr struct {
		Value string `json:"value"`
		OK    bool   `json:"ok"`
	}
	if err := e.w.call(&attr, "attr", e.id, name); err != nil {
		return "", false
	}
	return attr.Value, attr.OK
}

func (e *Element) SetAttr(name, value string) error {
	return e.w.call(nil, "setAttr", e.id, name, value)
}

func (e *Element) RemoveAttr(name string) error {
	return e.w.call(nil, "removeAttr", e.id, name)
}

func (e *Element) Text() string {
	var text string
	if err := e.w.call(&text, "text", e.id); err != nil {
		return ""
	}
	return text
}

func (e *Element) SetText(text string) error {
	return e.w.call(nil, "setText", e.id, text)
}

func (e *Element) SetInnerHTML(markup string) error {
	return e.w.call(nil, "setHTML", e.id, markup)
}

func (e *Element) InsertAdjacentHTML(pos dom.Position, markup string) error {
	return e.w.call(nil, "insertHTML", e.id, string(pos), markup)
}

func (e *Element) AppendChild(child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c.w != e.w {
		return fmt.Errorf("cannot append a node from another page")
	}
	return e.w.call(nil, "append", e.id, c.id)
}

func (e *Element) QuerySelector(selector string) (dom.Element, error) {
	return e.w.handle("query", e.id, selector, false)
}

func (e *Element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return e.w.handles("query", e.id, selector, true)
}

func (e *Element) Style(property string) string {
	var value string
	if err := e.w.call(&value, "style", e.id, property); err != nil {
		return ""
	}
	return value
}

func (e *Element) SetStyle(property, value string) error {
	return e.w.call(nil, "setStyle", e.id, property, value)
}

func (e *Element) Src() string {
	var src string
	if err := e.w.call(&src, "src", e.id); err != nil {
		return ""
	}
	return src
}

func (e *Element) NaturalSize() (int, int) {
	var size [2]int
	if err := e.w.call(&size, "natural", e.id); err != nil {
		return 0, 0
	}
	return size[0], size[1]
}

func (e *Element) ClientHeight() int {
	var h int
	if err := e.w.call(&h, "clientHeight", e.id); err != nil {
		return 0
	}
	return h
}

func (e *Element) Click() error {
	return e.w.call(nil, "click", e.id)
}

func (e *Element) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return e.w.listen(e.id, t, fn, opts)
}

func (e *Element) DispatchEvent(t dom.EventType) error {
	return e.w.call(nil, "dispatch", e.id, string(t))
}
