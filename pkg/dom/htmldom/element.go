package htmldom

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"pinmark/pkg/dom"
)

// Element implements dom.Element over an html.Node
type Element struct {
	doc  *Document
	node *html.Node
}

var _ dom.Element = (*Element)(nil)

// Node returns the underlying node
func (e *Element) Node() *html.Node {
	return e.node
}

func (e *Element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

func (e *Element) ID() string {
	v, _ := getAttr(e.node, "id")
	return v
}

func (e *Element) Attr(name string) (string, bool) {
	return getAttr(e.node, strings.ToLower(name))
}

func (e *Element) SetAttr(name, value string) error {
	setAttr(e.node, strings.ToLower(name), value)
	return nil
}

func (e *Element) RemoveAttr(name string) error {
	removeAttr(e.node, strings.ToLower(name))
	return nil
}

func (e *Element) Text() string {
	return textContent(e.node)
}

func (e *Element) SetText(text string) error {
	e.removeChildren()
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.node)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	e.removeChildren()
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
	return nil
}

func (e *Element) InsertAdjacentHTML(pos dom.Position, markup string) error {
	context := e.node
	if pos == dom.BeforeBegin || pos == dom.AfterEnd {
		if e.node.Parent == nil || e.node.Parent.Type != html.ElementNode {
			return fmt.Errorf("insertAdjacentHTML %s: element has no parent", pos)
		}
		context = e.node.Parent
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}

	switch pos {
	case dom.BeforeBegin:
		for _, n := range nodes {
			e.node.Parent.InsertBefore(n, e.node)
		}
	case dom.AfterBegin:
		first := e.node.FirstChild
		for _, n := range nodes {
			e.node.InsertBefore(n, first)
		}
	case dom.BeforeEnd:
		for _, n := range nodes {
			e.node.AppendChild(n)
		}
	case dom.AfterEnd:
		next := e.node.NextSibling
		for _, n := range nodes {
			e.node.Parent.InsertBefore(n, next)
		}
	default:
		return fmt.Errorf("invalid insertAdjacentHTML position %q", pos)
	}
	return nil
}

// AppendChild moves child under e, detaching it from any previous parent
func (e *Element) AppendChild(child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c.doc != e.doc {
		return fmt.Errorf("appendChild: element belongs to another document")
	}
	for p := e.node; p != nil; p = p.Parent {
		if p == c.node {
			return fmt.Errorf("appendChild: cannot append an ancestor")
		}
	}
	if c.node.Parent != nil {
		c.node.Parent.RemoveChild(c.node)
	}
	e.node.AppendChild(c.node)
	return nil
}

func (e *Element) QuerySelector(selector string) (dom.Element, error) {
	return e.doc.querySelector(e.node, selector)
}

func (e *Element) QuerySelectorAll(selector string) ([]dom.Element, error) {
	return e.doc.querySelectorAll(e.node, selector)
}

// Style returns the inline value of property
func (e *Element) Style(property string) string {
	property = strings.ToLower(property)
	for _, decl := range e.declarations() {
		if strings.ToLower(decl.Property) == property {
			return decl.Value
		}
	}
	return ""
}

// SetStyle edits the inline style attribute, replacing property if present
// and removing it when value is empty
func (e *Element) SetStyle(property, value string) error {
	property = strings.ToLower(strings.TrimSpace(property))
	decls := e.declarations()

	kept := decls[:0]
	replaced := false
	for _, decl := range decls {
		if strings.ToLower(decl.Property) != property {
			kept = append(kept, decl)
			continue
		}
		if value != "" && !replaced {
			decl.Value = value
			decl.Important = false
			kept = append(kept, decl)
			replaced = true
		}
	}
	if value != "" && !replaced {
		kept = append(kept, &css.Declaration{Property: property, Value: value})
	}

	if len(kept) == 0 {
		removeAttr(e.node, "style")
		return nil
	}
	setAttr(e.node, "style", serializeDeclarations(kept))
	return nil
}

func (e *Element) declarations() []*css.Declaration {
	inline, ok := getAttr(e.node, "style")
	if !ok || strings.TrimSpace(inline) == "" {
		return nil
	}
	// douceur drops the value of a final declaration with no ";"
	if !strings.HasSuffix(strings.TrimSpace(inline), ";") {
		inline += ";"
	}
	decls, err := parser.ParseDeclarations(inline)
	if err != nil {
		e.doc.win.log.WithError(err).WithField("style", inline).Debug("Ignoring unparseable inline style")
		return nil
	}
	return decls
}

func serializeDeclarations(decls []*css.Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		part := d.Property + ": " + d.Value
		if d.Important {
			part += " !important"
		}
		parts = append(parts, part+";")
	}
	return strings.Join(parts, " ")
}

// Src resolves the src attribute against the document URL
func (e *Element) Src() string {
	src, ok := getAttr(e.node, "src")
	if !ok {
		return ""
	}
	return e.doc.resolve(src)
}

// NaturalSize asks the document's Sizer. Images the Sizer cannot measure
// report 0x0, as an image that failed to load does.
func (e *Element) NaturalSize() (int, int) {
	if e.node.DataAtom != atom.Img || e.doc.sizer == nil {
		return 0, 0
	}
	src := e.Src()
	if src == "" {
		return 0, 0
	}
	w, h, ok := e.doc.sizer.NaturalSize(src)
	if !ok {
		return 0, 0
	}
	return w, h
}

// ClientHeight is the configured body height for <body> and the height
// attribute, if numeric, for anything else
func (e *Element) ClientHeight() int {
	if e.node.DataAtom == atom.Body {
		return e.doc.bodyHeight
	}
	if v, ok := getAttr(e.node, "height"); ok {
		if h, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return h
		}
	}
	return 0
}

func (e *Element) AddEventListener(t dom.EventType, fn dom.Listener, opts dom.ListenOptions) (dom.RemoveFunc, error) {
	return e.doc.listenersFor(e.node).add(t, fn, opts), nil
}

// DispatchEvent fires t on e. Clicks bubble through the ancestors to the
// document, other events stay on e.
func (e *Element) DispatchEvent(t dom.EventType) error {
	ev := &dom.Event{Type: t, Target: e, Synthetic: true}
	if t == dom.Click {
		e.bubble(ev)
		return nil
	}
	e.doc.listeners[e.node].fire(ev)
	return nil
}

// Click fires a click at e
func (e *Element) Click() error {
	e.bubble(&dom.Event{Type: dom.Click, Target: e})
	return nil
}

func (e *Element) bubble(ev *dom.Event) {
	for n := e.node; n != nil; n = n.Parent {
		e.doc.listeners[n].fire(ev)
	}
}

// ListenerCount reports how many listeners e has for t
func (e *Element) ListenerCount(t dom.EventType) int {
	set := e.doc.listeners[e.node]
	if set == nil {
		return 0
	}
	return set.count(t)
}

func (e *Element) removeChildren() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
}
