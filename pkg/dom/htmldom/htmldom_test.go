package htmldom

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinmark/pkg/dom"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>
  Sunset  over   the bay
</title></head>
<body>
  <div id="image-list">
    <img src="/media/a.jpg" alt="a">
    <img src="https://cdn.example.net/b.png?w=800" alt="b">
    <a class="like" data-action="like" href="#">Like</a>
  </div>
</body>
</html>`

func mustParse(t *testing.T, opts ...Option) *Window {
	t.Helper()
	w, err := ParseString(samplePage, "http://photos.example.com/images/detail/7/", opts...)
	require.NoError(t, err)
	return w
}

func TestDocumentBasics(t *testing.T) {
	w := mustParse(t, WithCookies(map[string]string{"csrftoken": "tok"}))
	doc := w.Document()

	assert.Equal(t, "Sunset over the bay", doc.Title())
	assert.Equal(t, dom.Loading, doc.ReadyState())

	token, ok := doc.Cookie("csrftoken")
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	_, ok = doc.Cookie("missing")
	assert.False(t, ok)

	body, err := doc.Body()
	require.NoError(t, err)
	assert.Equal(t, "BODY", body.TagName())

	list, err := doc.GetElementByID("image-list")
	require.NoError(t, err)
	assert.Equal(t, "image-list", list.ID())

	_, err = doc.GetElementByID("nope")
	assert.True(t, errors.Is(err, dom.ErrNotFound))
}

func TestQuerySelectorAllKeepsDocumentOrder(t *testing.T) {
	w := mustParse(t)

	imgs, err := w.Document().QuerySelectorAll(`img[src*=".png"], img[src*=".jpg"]`)
	require.NoError(t, err)
	require.Len(t, imgs, 2)

	alt0, _ := imgs[0].Attr("alt")
	alt1, _ := imgs[1].Attr("alt")
	assert.Equal(t, "a", alt0)
	assert.Equal(t, "b", alt1)

	_, err = w.Document().QuerySelectorAll("img[")
	assert.Error(t, err)

	_, err = w.Document().QuerySelector("video")
	assert.True(t, errors.Is(err, dom.ErrNotFound))
}

func TestSrcResolvesAgainstDocumentURL(t *testing.T) {
	w := mustParse(t)
	imgs, err := w.Document().QuerySelectorAll("img")
	require.NoError(t, err)

	assert.Equal(t, "http://photos.example.com/media/a.jpg", imgs[0].Src())
	assert.Equal(t, "https://cdn.example.net/b.png?w=800", imgs[1].Src())
}

func TestNaturalSizeComesFromSizer(t *testing.T) {
	sizes := map[string][2]int{
		"http://photos.example.com/media/a.jpg": {640, 480},
	}
	w := mustParse(t, WithSizer(SizerFunc(func(src string) (int, int, bool) {
		s, ok := sizes[src]
		return s[0], s[1], ok
	})))

	imgs, err := w.Document().QuerySelectorAll("img")
	require.NoError(t, err)

	width, height := imgs[0].NaturalSize()
	assert.Equal(t, 640, width)
	assert.Equal(t, 480, height)

	width, height = imgs[1].NaturalSize()
	assert.Zero(t, width)
	assert.Zero(t, height)
}

func TestInlineStyleEditing(t *testing.T) {
	w := mustParse(t)
	div, err := w.Document().CreateElement("div")
	require.NoError(t, err)

	require.NoError(t, div.SetAttr("style", "color: red; display: block !important"))
	assert.Equal(t, "block", div.Style("display"))

	require.NoError(t, div.SetStyle("display", "none"))
	assert.Equal(t, "none", div.Style("display"))
	assert.Equal(t, "red", div.Style("color"))

	require.NoError(t, div.SetStyle("color", ""))
	style, _ := div.Attr("style")
	assert.Equal(t, "display: none;", style)
}

func TestInlineStyleWithoutTrailingSemicolon(t *testing.T) {
	w := mustParse(t)
	div, err := w.Document().CreateElement("div")
	require.NoError(t, err)

	require.NoError(t, div.SetAttr("style", "width: 300px"))
	assert.Equal(t, "300px", div.Style("width"))

	require.NoError(t, div.SetStyle("display", "none"))
	style, _ := div.Attr("style")
	assert.Equal(t, "width: 300px; display: none;", style)
	assert.Equal(t, "300px", div.Style("width"))
}

func TestMutations(t *testing.T) {
	w := mustParse(t)
	doc := w.Document()
	list, err := doc.GetElementByID("image-list")
	require.NoError(t, err)

	require.NoError(t, list.InsertAdjacentHTML(dom.BeforeEnd, `<img src="/media/c.jpeg" alt="c"><p>tail</p>`))
	imgs, err := list.QuerySelectorAll("img")
	require.NoError(t, err)
	require.Len(t, imgs, 3)
	alt, _ := imgs[2].Attr("alt")
	assert.Equal(t, "c", alt)

	require.NoError(t, list.InsertAdjacentHTML(dom.AfterBegin, `<h2>Latest</h2>`))
	first, err := list.QuerySelector("h2")
	require.NoError(t, err)
	assert.Equal(t, "Latest", first.Text())

	p, err := doc.CreateElement("p")
	require.NoError(t, err)
	require.NoError(t, p.SetText("<b>not markup</b>"))
	body, _ := doc.Body()
	require.NoError(t, body.AppendChild(p))
	assert.Contains(t, doc.(*Document).Render(), "&lt;b&gt;not markup&lt;/b&gt;")

	require.NoError(t, list.SetInnerHTML(""))
	imgs, err = list.QuerySelectorAll("img")
	require.NoError(t, err)
	assert.Empty(t, imgs)

	assert.Error(t, p.AppendChild(body))
}

func TestClickBubblesAndRemoveDetaches(t *testing.T) {
	w := mustParse(t)
	doc := w.Document()
	anchor, err := doc.QuerySelector("a.like")
	require.NoError(t, err)
	list, err := doc.GetElementByID("image-list")
	require.NoError(t, err)

	var order []string
	var prevented []bool
	remove, err := anchor.AddEventListener(dom.Click, func(ev *dom.Event) {
		order = append(order, "anchor")
	}, dom.ListenOptions{PreventDefault: true})
	require.NoError(t, err)
	_, err = list.AddEventListener(dom.Click, func(ev *dom.Event) {
		prevented = append(prevented, ev.DefaultPrevented())
		assert.Same(t, anchor, ev.Target)
		order = append(order, "list")
	}, dom.ListenOptions{})
	require.NoError(t, err)

	require.NoError(t, anchor.Click())
	assert.Equal(t, []string{"anchor", "list"}, order)

	remove()
	remove()
	order = nil
	require.NoError(t, anchor.Click())
	assert.Equal(t, []string{"list"}, order)
	// the removed listener no longer prevents the default
	assert.Equal(t, []bool{true, false}, prevented)
}

func TestOnceListener(t *testing.T) {
	w := mustParse(t)
	calls := 0
	_, err := w.AddEventListener(dom.Scroll, func(*dom.Event) { calls++ }, dom.ListenOptions{Once: true})
	require.NoError(t, err)

	w.ScrollTo(100)
	w.ScrollTo(200)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 200, w.ScrollY())
	assert.Zero(t, w.ListenerCount(dom.Scroll))
}

func TestLoadFiresReadyEventsOnce(t *testing.T) {
	w := mustParse(t)
	doc := w.HTMLDocument()

	var seen []dom.ReadyState
	_, err := doc.AddEventListener(dom.DOMContentLoaded, func(*dom.Event) {
		seen = append(seen, doc.ReadyState())
	}, dom.ListenOptions{})
	require.NoError(t, err)
	_, err = w.AddEventListener(dom.Load, func(*dom.Event) {
		seen = append(seen, doc.ReadyState())
	}, dom.ListenOptions{})
	require.NoError(t, err)

	w.Load()
	w.Load()
	assert.Equal(t, []dom.ReadyState{dom.Interactive, dom.Complete}, seen)
}

func TestOpenIsRecorded(t *testing.T) {
	var forwarded string
	w := mustParse(t, WithOpenHandler(func(url, target string) { forwarded = url }))

	require.NoError(t, w.Open("http://photos.example.com/images/create/?url=x", "_blank"))
	assert.Equal(t, []Opened{{URL: "http://photos.example.com/images/create/?url=x", Target: "_blank"}}, w.Opened())
	assert.Equal(t, "http://photos.example.com/images/create/?url=x", forwarded)
}

func TestBodyClientHeight(t *testing.T) {
	w := mustParse(t, WithViewport(600, 2400))
	body, err := w.Document().Body()
	require.NoError(t, err)

	assert.Equal(t, 600, w.InnerHeight())
	assert.Equal(t, 2400, body.ClientHeight())

	w.SetBodyHeight(3000)
	assert.Equal(t, 3000, body.ClientHeight())
}
