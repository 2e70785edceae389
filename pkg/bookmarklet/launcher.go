// Package bookmarklet injects an image picker into a host page and hands the
// chosen image off to the bookmarking site.
//
// A Launcher is the per-page entry point. Its first activation adds the
// bundle marker script, loads the bundle and installs the Overlay; every
// later activation only relaunches the overlay that is already there.
package bookmarklet

import (
	"context"
	"errors"
	"fmt"

	"pinmark/pkg/dom"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
	"pinmark/pkg/site"
)

// BundleScriptType marks the injected script element. Browsers do not run
// scripts of unknown type, so the node records the injection without
// executing the site's own bundle a second time.
const BundleScriptType = "text/x-pinmark-bundle"

// ErrInjected is returned by Initialize after the first call
var ErrInjected = errors.New("bookmarklet already injected")

// AssetLoader fetches a static asset from the site
type AssetLoader interface {
	FetchAsset(ctx context.Context, assetURL string) error
}

// OverlayFactory installs an overlay into a page. Install satisfies it.
type OverlayFactory func(win dom.Window, opts Options, log logger.Logger) (*Overlay, error)

// State is the launcher lifecycle
type State int

const (
	Uninitialized State = iota
	Injected
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Injected:
		return "injected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Launcher activates the overlay on one page. All methods run on the loop.
type Launcher struct {
	win     dom.Window
	loop    *eventloop.Loop
	loader  AssetLoader
	install OverlayFactory
	opts    Options
	log     logger.Logger

	state     State
	bundleURL string
	overlay   *Overlay
	launch    func() error
	lastErr   error
}

// NewLauncher creates an uninitialized launcher for win. A nil install uses
// Install.
func NewLauncher(win dom.Window, loop *eventloop.Loop, loader AssetLoader, install OverlayFactory, opts Options, log logger.Logger) *Launcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if install == nil {
		install = Install
	}
	return &Launcher{
		win:     win,
		loop:    loop,
		loader:  loader,
		install: install,
		opts:    opts,
		log:     log.WithField("component", "launcher"),
	}
}

// Activate is what clicking the bookmarklet does: inject on the first call,
// relaunch the installed overlay afterwards. An activation that arrives while
// the bundle is still loading is dropped.
func (l *Launcher) Activate() error {
	if l.state == Uninitialized {
		return l.Initialize()
	}
	if l.launch == nil {
		l.log.Debug("Activation ignored, overlay not loaded")
		return nil
	}
	return l.launch()
}

// Initialize moves the launcher to Injected, appends the bundle marker to the
// body and starts loading the bundle. The overlay is installed and launched
// once the bundle has loaded.
func (l *Launcher) Initialize() error {
	if l.state != Uninitialized {
		return ErrInjected
	}
	l.state = Injected

	body, err := l.win.Document().Body()
	if err != nil {
		return errs.MissingElement("body")
	}
	origin := site.ResolveOrigin(l.opts.Origin, l.win.Document().URL())
	l.bundleURL = site.BundleURL(origin, l.opts.cacheBust())

	script, err := l.win.Document().CreateElement("script")
	if err != nil {
		return err
	}
	if err := script.SetAttr("type", BundleScriptType); err != nil {
		return err
	}
	if err := script.SetAttr("src", l.bundleURL); err != nil {
		return err
	}
	if err := body.AppendChild(script); err != nil {
		return fmt.Errorf("failed to attach bundle script: %w", err)
	}

	l.log.WithField("url", l.bundleURL).Debug("Loading bundle")
	bundleURL := l.bundleURL
	if !eventloop.Await(l.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.loader.FetchAsset(ctx, bundleURL)
	}, l.onBundleLoaded) {
		return eventloop.ErrClosed
	}
	return nil
}

func (l *Launcher) onBundleLoaded(_ struct{}, err error) {
	if err != nil {
		l.lastErr = err
		l.log.WithError(err).Warn("Bundle failed to load")
		return
	}

	overlay, err := l.install(l.win, l.opts, l.log)
	if err != nil {
		l.lastErr = err
		l.log.WithError(err).Error("Failed to install overlay")
		return
	}
	l.overlay = overlay
	l.launch = overlay.Launch

	if err := l.launch(); err != nil {
		l.lastErr = err
		l.log.WithError(err).Warn("Overlay launch failed")
	}
}

// State returns the lifecycle state
func (l *Launcher) State() State {
	return l.state
}

// Overlay returns the installed overlay, nil until the bundle has loaded
func (l *Launcher) Overlay() *Overlay {
	return l.overlay
}

// BundleURL is the URL the bundle was requested from, empty before injection
func (l *Launcher) BundleURL() string {
	return l.bundleURL
}

// LastErr is why the overlay is not available, if it is not
func (l *Launcher) LastErr() error {
	return l.lastErr
}
