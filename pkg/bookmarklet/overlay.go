package bookmarklet

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"pinmark/pkg/config"
	"pinmark/pkg/dom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/logger"
	"pinmark/pkg/site"
)

const (
	// ContainerID is the id of the overlay root element
	ContainerID = "bookmarklet"

	// MarkerAttr is set on the overlay's own container
	MarkerAttr = "data-pinmark-overlay"

	// ImageSelector finds candidate images by substring match on src
	ImageSelector = `img[src*=".jpg"], img[src*=".jpeg"], img[src*=".png"]`

	containerMarkup = `<a id="close">&times;</a><h1>Select an image to bookmark:</h1><div class="images"></div>`
)

// ErrInstalled is returned when the page already has an overlay
var ErrInstalled = errors.New("overlay already installed")

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// Options configure the overlay and its launcher
type Options struct {
	// Origin is the bookmarking site, e.g. "https://mysite.com:8000/"
	Origin    string
	MinWidth  int
	MinHeight int
	// Rand returns cache-busting values. Defaults to site.CacheBust.
	Rand func() int64
}

// OptionsFromConfig builds Options from the site and bookmarklet sections
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Origin:    cfg.Site.Origin,
		MinWidth:  cfg.Bookmarklet.MinWidth,
		MinHeight: cfg.Bookmarklet.MinHeight,
	}
}

func (o Options) cacheBust() int64 {
	if o.Rand != nil {
		return o.Rand()
	}
	return site.CacheBust()
}

// Candidate is an image on the host page large enough to bookmark
type Candidate struct {
	SourceURL     string `json:"source_url"`
	NaturalWidth  int    `json:"natural_width"`
	NaturalHeight int    `json:"natural_height"`
}

// Overlay is the image picker attached to a host page. It is installed once
// per page and relaunched any number of times.
type Overlay struct {
	win       dom.Window
	opts      Options
	origin    string
	container dom.Element
	results   dom.Element
	log       logger.Logger

	visible    bool
	candidates []Candidate
	thumbs     []dom.Element
	unbind     []dom.RemoveFunc
	handoff    string
}

// Install adds the stylesheet link to the head and the hidden overlay
// container to the body, and binds the close control.
func Install(win dom.Window, opts Options, log logger.Logger) (*Overlay, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	doc := win.Document()

	// the host page may use the id itself, so only our marked container counts
	if _, err := doc.QuerySelector("#" + ContainerID + "[" + MarkerAttr + "]"); err == nil {
		return nil, ErrInstalled
	}

	head, err := doc.Head()
	if err != nil {
		return nil, errs.MissingElement("head")
	}
	body, err := doc.Body()
	if err != nil {
		return nil, errs.MissingElement("body")
	}

	link, err := doc.CreateElement("link")
	if err != nil {
		return nil, err
	}
	origin := site.ResolveOrigin(opts.Origin, doc.URL())
	for _, attr := range [][2]string{
		{"rel", "stylesheet"},
		{"type", "text/css"},
		{"href", site.StylesheetURL(origin, opts.cacheBust())},
	} {
		if err := link.SetAttr(attr[0], attr[1]); err != nil {
			return nil, err
		}
	}
	if err := head.AppendChild(link); err != nil {
		return nil, fmt.Errorf("failed to attach stylesheet: %w", err)
	}

	container, err := doc.CreateElement("div")
	if err != nil {
		return nil, err
	}
	if err := container.SetAttr("id", ContainerID); err != nil {
		return nil, err
	}
	if err := container.SetAttr(MarkerAttr, ""); err != nil {
		return nil, err
	}
	if err := container.SetInnerHTML(containerMarkup); err != nil {
		return nil, err
	}
	if err := container.SetStyle("display", "none"); err != nil {
		return nil, err
	}
	if err := body.AppendChild(container); err != nil {
		return nil, fmt.Errorf("failed to attach overlay: %w", err)
	}

	results, err := container.QuerySelector(".images")
	if err != nil {
		return nil, errs.MissingElement("#bookmarklet .images")
	}
	closeLink, err := container.QuerySelector("#close")
	if err != nil {
		return nil, errs.MissingElement("#bookmarklet #close")
	}

	o := &Overlay{
		win:       win,
		opts:      opts,
		origin:    origin,
		container: container,
		results:   results,
		log:       log.WithField("component", "overlay"),
	}
	if _, err := closeLink.AddEventListener(dom.Click, func(*dom.Event) { o.hide() }, dom.ListenOptions{}); err != nil {
		return nil, fmt.Errorf("failed to bind close: %w", err)
	}

	o.log.WithField("origin", origin).Debug("Overlay installed")
	return o, nil
}

// Launch clears previous results, shows the overlay and lists every image on
// the page that is at least MinWidth x MinHeight, in document order
func (o *Overlay) Launch() error {
	o.reset()
	if err := o.results.SetInnerHTML(""); err != nil {
		return err
	}
	o.show()

	images, err := o.win.Document().QuerySelectorAll(ImageSelector)
	if err != nil {
		return fmt.Errorf("failed to scan images: %w", err)
	}

	for _, img := range images {
		width, height := img.NaturalSize()
		if width < o.opts.MinWidth || height < o.opts.MinHeight {
			continue
		}
		src := img.Src()
		thumb, err := o.win.Document().CreateElement("img")
		if err != nil {
			return err
		}
		if err := thumb.SetAttr("src", src); err != nil {
			return err
		}
		if err := o.results.AppendChild(thumb); err != nil {
			return err
		}
		o.candidates = append(o.candidates, Candidate{SourceURL: src, NaturalWidth: width, NaturalHeight: height})
		o.thumbs = append(o.thumbs, thumb)
	}

	for i, thumb := range o.thumbs {
		src := o.candidates[i].SourceURL
		remove, err := thumb.AddEventListener(dom.Click, func(*dom.Event) { o.onSelect(src) }, dom.ListenOptions{})
		if err != nil {
			return fmt.Errorf("failed to bind thumbnail: %w", err)
		}
		o.unbind = append(o.unbind, remove)
	}

	o.log.DebugWithFields("Overlay launched", map[string]interface{}{
		"scanned":    len(images),
		"candidates": len(o.candidates),
	})
	return nil
}

func (o *Overlay) reset() {
	for _, remove := range o.unbind {
		remove()
	}
	o.unbind = nil
	o.thumbs = nil
	o.candidates = nil
}

func (o *Overlay) onSelect(src string) {
	o.hide()
	target := HandoffURL(o.origin, src, o.win.Document().Title())
	o.handoff = target

	o.log.WithField("url", target).Info("Opening bookmark form")
	if err := o.win.Open(target, "_blank"); err != nil {
		o.log.WithError(err).Warn("Failed to open bookmark form")
	}
}

func (o *Overlay) show() {
	if err := o.container.SetStyle("display", "block"); err != nil {
		o.log.WithError(err).Debug("Failed to show overlay")
	}
	o.visible = true
}

func (o *Overlay) hide() {
	if err := o.container.SetStyle("display", "none"); err != nil {
		o.log.WithError(err).Debug("Failed to hide overlay")
	}
	o.visible = false
}

// Candidates returns the images found by the last launch
func (o *Overlay) Candidates() []Candidate {
	return append([]Candidate(nil), o.candidates...)
}

// Visible reports whether the overlay is shown
func (o *Overlay) Visible() bool {
	return o.visible
}

// Select clicks the i-th thumbnail
func (o *Overlay) Select(i int) error {
	if i < 0 || i >= len(o.thumbs) {
		return fmt.Errorf("no candidate %d, have %d", i, len(o.thumbs))
	}
	return o.thumbs[i].Click()
}

// Close clicks the close control
func (o *Overlay) Close() error {
	closeLink, err := o.container.QuerySelector("#close")
	if err != nil {
		return err
	}
	return closeLink.Click()
}

// LastHandoff is the most recently opened bookmark form URL
func (o *Overlay) LastHandoff() string {
	return o.handoff
}

// MatchesSource reports whether src passes the image selector's filter
func MatchesSource(src string) bool {
	for _, ext := range imageExtensions {
		if strings.Contains(src, ext) {
			return true
		}
	}
	return false
}

// HandoffURL is the bookmark form URL for an image on a page titled title
func HandoffURL(origin, src, title string) string {
	return site.NormalizeOrigin(origin) + site.CreatePath +
		"?url=" + EncodeURIComponent(src) +
		"&title=" + EncodeURIComponent(title)
}

var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way browsers' encodeURIComponent does
func EncodeURIComponent(s string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(s))
}
