// Package dom is the page surface the widgets are written against.
//
// Two backends implement it: htmldom keeps a parsed document in memory and
// cdpdom drives a live Chromium tab. Neither is safe for concurrent use;
// callers touch a page only from its event loop.
//
// Queries and mutations return errors. Plain getters (Title, Text, Attr and
// friends) return the zero value when the backend cannot answer, which
// matches what a script sees for a missing property.
package dom

import "errors"

// ErrNotFound is returned when a query matches nothing
var ErrNotFound = errors.New("element not found")

// EventType names a DOM event
type EventType string

const (
	DOMContentLoaded EventType = "DOMContentLoaded"
	Scroll           EventType = "scroll"
	Click            EventType = "click"
	Load             EventType = "load"
)

// ReadyState mirrors document.readyState
type ReadyState string

const (
	Loading     ReadyState = "loading"
	Interactive ReadyState = "interactive"
	Complete    ReadyState = "complete"
)

// Position is an insertAdjacentHTML position
type Position string

const (
	BeforeBegin Position = "beforebegin"
	AfterBegin  Position = "afterbegin"
	BeforeEnd   Position = "beforeend"
	AfterEnd    Position = "afterend"
)

// Event is delivered to listeners
type Event struct {
	Type EventType
	// Target is the element the event was dispatched on, nil for the
	// window and the document.
	Target Element
	// Synthetic is set for events raised by Go code rather than the page
	Synthetic bool

	defaultPrevented bool
}

// PreventDefault marks the event handled. Live pages decide this before Go
// sees the event, so listeners that need it must also pass
// ListenOptions.PreventDefault.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Listener handles one event
type Listener func(ev *Event)

// ListenOptions tune a listener registration
type ListenOptions struct {
	// PreventDefault cancels the browser's default action before the
	// listener runs.
	PreventDefault bool
	// Once removes the listener after its first call
	Once bool
}

// RemoveFunc detaches a listener. Calling it twice is harmless.
type RemoveFunc func()

// EventTarget can receive events
type EventTarget interface {
	AddEventListener(t EventType, fn Listener, opts ListenOptions) (RemoveFunc, error)
	DispatchEvent(t EventType) error
}

// Element is a node in the page
type Element interface {
	EventTarget

	TagName() string
	ID() string
	Attr(name string) (string, bool)
	SetAttr(name, value string) error
	RemoveAttr(name string) error

	Text() string
	SetText(text string) error
	SetInnerHTML(markup string) error
	InsertAdjacentHTML(pos Position, markup string) error
	AppendChild(child Element) error

	QuerySelector(selector string) (Element, error)
	QuerySelectorAll(selector string) ([]Element, error)

	Style(property string) string
	SetStyle(property, value string) error

	// Src is the resolved src property, as HTMLImageElement.src
	Src() string
	NaturalSize() (width, height int)
	ClientHeight() int

	Click() error
}

// Document is the page's document
type Document interface {
	EventTarget

	URL() string
	Title() string
	ReadyState() ReadyState
	Cookie(name string) (string, bool)

	Head() (Element, error)
	Body() (Element, error)
	GetElementByID(id string) (Element, error)
	QuerySelector(selector string) (Element, error)
	QuerySelectorAll(selector string) ([]Element, error)
	CreateElement(tag string) (Element, error)
}

// Window is the page's global object
type Window interface {
	EventTarget

	Document() Document
	InnerHeight() int
	ScrollY() int
	Open(url, target string) error
}
