package site

import (
	"math/rand"
	"net/url"
	"strconv"
	"strings"
)

const (
	// StylesheetPath is the overlay stylesheet, relative to the origin
	StylesheetPath = "static/css/bookmarklet.css"

	// BundlePath is the overlay script bundle, relative to the origin
	BundlePath = "static/js/bookmarklet.js"

	// CreatePath receives the chosen image
	CreatePath = "images/create/"

	// CacheBustLimit bounds the random ?r= value
	CacheBustLimit = 999999999999999
)

// NormalizeOrigin makes origin end in exactly one "/" so paths can be
// appended by concatenation. Scheme-relative origins ("//host/") get https
// since there is no page to take a scheme from; use ResolveOrigin when there is.
func NormalizeOrigin(origin string) string {
	return ResolveOrigin(origin, "")
}

// ResolveOrigin is NormalizeOrigin for an origin used from the page at
// pageURL: a scheme-relative origin takes the page's http or https scheme.
func ResolveOrigin(origin, pageURL string) string {
	origin = strings.TrimSpace(origin)
	if strings.HasPrefix(origin, "//") {
		scheme := "https"
		if page, err := url.Parse(pageURL); err == nil && (page.Scheme == "http" || page.Scheme == "https") {
			scheme = page.Scheme
		}
		origin = scheme + ":" + origin
	}
	return strings.TrimRight(origin, "/") + "/"
}

// CacheBust returns a random value in [0, CacheBustLimit)
func CacheBust() int64 {
	return rand.Int63n(CacheBustLimit)
}

// StylesheetURL is origin + StylesheetPath + "?r=" + r
func StylesheetURL(origin string, r int64) string {
	return NormalizeOrigin(origin) + StylesheetPath + "?r=" + strconv.FormatInt(r, 10)
}

// BundleURL is origin + BundlePath + "?r=" + r
func BundleURL(origin string, r int64) string {
	return NormalizeOrigin(origin) + BundlePath + "?r=" + strconv.FormatInt(r, 10)
}

// PageURL resolves "?images_only=1&page=N" against the listing URL, the way
// a relative fetch from that page would
func PageURL(listingURL string, page int) (string, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse("?images_only=1&page=" + strconv.Itoa(page))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
