// Package ready defers work until a document has finished parsing.
package ready

import (
	"pinmark/pkg/dom"
	"pinmark/pkg/eventloop"
)

// Params is what a ready callback receives
type Params struct {
	// Event is the DOMContentLoaded event, or a synthetic one when the
	// document was already past loading at registration
	Event *dom.Event
	// CSRFToken is the value of the CSRF cookie at registration, empty when
	// the cookie is absent
	CSRFToken string
}

// OnReady runs callback exactly once after doc has finished initial parsing.
// The CSRF token is read from cookieName now, not when the callback fires.
//
// A document that is still loading gets one DOMContentLoaded listener, removed
// after it fires. A document that is already interactive or complete gets the
// callback scheduled on loop with a synthetic event instead.
func OnReady(doc dom.Document, loop *eventloop.Loop, cookieName string, callback func(Params)) error {
	token, _ := doc.Cookie(cookieName)

	if doc.ReadyState() != dom.Loading {
		ev := &dom.Event{Type: dom.DOMContentLoaded, Synthetic: true}
		if !loop.Post(func() { callback(Params{Event: ev, CSRFToken: token}) }) {
			return eventloop.ErrClosed
		}
		return nil
	}

	_, err := doc.AddEventListener(dom.DOMContentLoaded, func(ev *dom.Event) {
		callback(Params{Event: ev, CSRFToken: token})
	}, dom.ListenOptions{Once: true})
	return err
}
