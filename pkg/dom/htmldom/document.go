package htmldom

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"pinmark/pkg/dom"
)

// Document implements dom.Document
type Document struct {
	win        *Window
	root       *html.Node
	base       *url.URL
	state      dom.ReadyState
	cookies    map[string]string
	sizer      Sizer
	bodyHeight int

	elements  map[*html.Node]*Element
	listeners map[*html.Node]*listenerSet
}

var _ dom.Document = (*Document)(nil)

func (d *Document) URL() string {
	return d.base.String()
}

// Title is the trimmed text of the first <title>, like document.title
func (d *Document) Title() string {
	n := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Title
	})
	if n == nil {
		return ""
	}
	return strings.Join(strings.Fields(textContent(n)), " ")
}

func (d *Document) ReadyState() dom.ReadyState {
	return d.state
}

func (d *Document) Cookie(name string) (string, bool) {
	v, ok := d.cookies[name]
	return v, ok
}

func (d *Document) Head() (dom.Element, error) {
	return d.byAtom(atom.Head)
}

func (d *Document) Body() (dom.Element, error) {
	return d.byAtom(atom.Body)
}

func (d *Document) byAtom(a atom.Atom) (dom.Element, error) {
	n := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	})
	if n == nil {
		return nil, fmt.Errorf("%w: <%s>", dom.ErrNotFound, a)
	}
	return d.wrap(n), nil
}

func (d *Document) GetElementByID(id string) (dom.Element, error) {
	n := findFirst(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := getAttr(n, "id")
		return ok && v == id
	})
	if n == nil {
		return nil, fmt.Errorf("%w: #%s", dom.ErrNotFound, id)
	}
	return d.wrap(n), nil
}

func (d *Document) QuerySelector(selector string) (dom.Element, error) {
	return d.querySelector(d.root, selector)
}

func (d *Document) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return d.querySelectorAll(d.root, selector)
}

func (d *Document) CreateElement(tag string) (dom.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("invalid tag name %q", tag)
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(n), nil
}

func (d *Document) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return d.listenersFor(d.root).add(t, fn, opts), nil
}

func (d *Document) DispatchEvent(t dom.EventType) error {
	d.listeners[d.root].fire(&dom.Event{Type: t, Synthetic: true})
	return nil
}

// ListenerCount reports how many document listeners are registered for t
func (d *Document) ListenerCount(t dom.EventType) int {
	set := d.listeners[d.root]
	if set == nil {
		return 0
	}
	return set.count(t)
}

// Render serializes the current tree
func (d *Document) Render() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		d.win.log.WithError(err).Warn("Failed to render document")
	}
	return buf.String()
}

func (d *Document) wrap(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elements[n] = el
	return el
}

func (d *Document) listenersFor(n *html.Node) *listenerSet {
	set, ok := d.listeners[n]
	if !ok {
		set = &listenerSet{}
		d.listeners[n] = set
	}
	return set
}

func (d *Document) querySelector(scope *html.Node, selector string) (dom.Element, error) {
	matches, err := d.querySelectorAll(scope, selector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", dom.ErrNotFound, selector)
	}
	return matches[0], nil
}

// querySelectorAll returns the descendants of scope matching selector in
// document order
func (d *Document) querySelectorAll(scope *html.Node, selector string) ([]dom.Element, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	nodes := cascadia.QueryAll(scope, sel)
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

func (d *Document) resolve(ref string) string {
	u, err := d.base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return u.String()
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}
