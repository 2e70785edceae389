// Package toggle binds like/unlike and follow/unfollow buttons.
//
// The button's label, data-action and the adjacent counter change only after
// the site confirms with {"status": "ok"}. Anything else leaves the page as it
// was.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pinmark/pkg/config"
	"pinmark/pkg/dom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
)

// StatusOK is the only status that confirms a toggle
const StatusOK = "ok"

// Pair is a verb and its opposite
type Pair struct {
	Positive string
	Negative string
}

var (
	Like   = Pair{Positive: "like", Negative: "unlike"}
	Follow = Pair{Positive: "follow", Negative: "unfollow"}
)

// Opposite returns the other verb. Anything that is not the positive verb
// flips to the positive verb.
func (p Pair) Opposite(action string) string {
	if action == p.Positive {
		return p.Negative
	}
	return p.Positive
}

// Poster sends one toggle to the site and returns the reply's status
type Poster interface {
	PostAction(ctx context.Context, endpoint, csrfToken, id, action string) (string, error)
}

// Options are the selectors a toggle binds to
type Options struct {
	Button       string
	Counter      string
	TemplateData string
}

// OptionsFromConfig picks the button selector matching pair
func OptionsFromConfig(cfg *config.ToggleConfig, pair Pair) Options {
	button := cfg.LikeButton
	if pair == Follow {
		button = cfg.FollowButton
	}
	return Options{
		Button:       button,
		Counter:      cfg.Counter,
		TemplateData: cfg.TemplateData,
	}
}

// State mirrors what the page shows
type State struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Action is one bound toggle button
type Action struct {
	loop     *eventloop.Loop
	poster   Poster
	pair     Pair
	button   dom.Element
	counter  dom.Element
	endpoint string
	csrf     string
	log      logger.Logger

	inFlight bool
	lastErr  error
	remove   dom.RemoveFunc
}

// Bind finds the button, the counter and the endpoint on the page and
// attaches the click handler. The elements come from the server template, so
// a missing one is an error.
func Bind(win dom.Window, loop *eventloop.Loop, poster Poster, pair Pair, opts Options, csrfToken string, log logger.Logger) (*Action, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	doc := win.Document()

	button, err := find(doc, opts.Button)
	if err != nil {
		return nil, err
	}
	counter, err := find(doc, opts.Counter)
	if err != nil {
		return nil, err
	}
	tmpl, err := find(doc, opts.TemplateData)
	if err != nil {
		return nil, err
	}
	endpoint, ok := tmpl.Attr("data-url")
	if !ok || endpoint == "" {
		return nil, errs.MissingElement(opts.TemplateData + "[data-url]")
	}

	a := &Action{
		loop:     loop,
		poster:   poster,
		pair:     pair,
		button:   button,
		counter:  counter,
		endpoint: endpoint,
		csrf:     csrfToken,
		log: log.WithFields(map[string]interface{}{
			"component": "toggle",
			"verb":      pair.Positive,
		}),
	}

	a.remove, err = button.AddEventListener(dom.Click, a.onClick, dom.ListenOptions{PreventDefault: true})
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", opts.Button, err)
	}
	return a, nil
}

func find(doc dom.Document, selector string) (dom.Element, error) {
	el, err := doc.QuerySelector(selector)
	if errors.Is(err, dom.ErrNotFound) {
		return nil, errs.MissingElement(selector)
	}
	if err != nil {
		return nil, err
	}
	return el, nil
}

// Unbind detaches the click handler
func (a *Action) Unbind() {
	if a.remove != nil {
		a.remove()
	}
}

// State reads the current action and count from the page. A counter that is
// not a number reads as 0.
func (a *Action) State() State {
	action, _ := a.button.Attr("data-action")
	count, _ := strconv.Atoi(strings.TrimSpace(a.counter.Text()))
	return State{Action: action, Count: count}
}

// InFlight reports whether a request is outstanding
func (a *Action) InFlight() bool {
	return a.inFlight
}

// LastErr is why the most recent click changed nothing, nil after a success
func (a *Action) LastErr() error {
	return a.lastErr
}

func (a *Action) onClick(ev *dom.Event) {
	ev.PreventDefault()
	if a.inFlight {
		a.log.Debug("Click ignored while a request is outstanding")
		return
	}

	previous, _ := a.button.Attr("data-action")
	id, _ := a.button.Attr("data-id")

	a.inFlight = true
	if err := a.button.SetAttr("aria-disabled", "true"); err != nil {
		a.log.WithError(err).Debug("Failed to mark button disabled")
	}

	a.log.DebugWithFields("Submitting toggle", map[string]interface{}{
		"id":     id,
		"action": previous,
	})
	started := eventloop.Await(a.loop, func(ctx context.Context) (string, error) {
		return a.poster.PostAction(ctx, a.endpoint, a.csrf, id, previous)
	}, func(status string, err error) {
		a.settle(previous, status, err)
	})
	if !started {
		a.release()
	}
}

func (a *Action) release() {
	a.inFlight = false
	if err := a.button.RemoveAttr("aria-disabled"); err != nil {
		a.log.WithError(err).Debug("Failed to re-enable button")
	}
}

func (a *Action) settle(previous, status string, err error) {
	a.release()

	if err != nil {
		a.lastErr = err
		a.log.WithError(err).Warn("Toggle request failed")
		return
	}
	if status != StatusOK {
		a.lastErr = &errs.Error{Type: errs.ErrorTypeRejected, Message: fmt.Sprintf("site answered status %q", status)}
		a.log.WithField("status", status).Debug("Toggle rejected")
		return
	}
	a.lastErr = nil

	next := a.pair.Opposite(previous)
	if err := a.button.SetAttr("data-action", next); err != nil {
		a.log.WithError(err).Warn("Failed to update data-action")
	}
	if err := a.button.SetText(next); err != nil {
		a.log.WithError(err).Warn("Failed to update label")
	}

	text := strings.TrimSpace(a.counter.Text())
	count, convErr := strconv.Atoi(text)
	if convErr != nil {
		a.log.WithField("text", text).Warn("Counter is not a number, leaving it alone")
		return
	}
	if previous == a.pair.Positive {
		count++
	} else {
		count--
	}
	if err := a.counter.SetText(strconv.Itoa(count)); err != nil {
		a.log.WithError(err).Warn("Failed to update counter")
	}

	a.log.DebugWithFields("Toggle confirmed", map[string]interface{}{
		"action": next,
		"count":  count,
	})
}
