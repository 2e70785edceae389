// Package browser launches or connects to Chromium and opens a tab for
// chromedp.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"pinmark/pkg/config"
	"pinmark/pkg/logger"
)

// Browser is a running browser with one tab
type Browser struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	launcher    *launcher.Launcher
	log         logger.Logger
}

// newLauncher builds the launcher for cfg. Popups are allowed so the
// bookmark form can open in a new tab.
func newLauncher(ctx context.Context, cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Leakless(false).
		Set("disable-popup-blocking").
		Set("no-first-run").
		Set("no-default-browser-check")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	return l
}

// Open starts a browser, or connects to cfg.CDPURL when set, and opens a tab.
// The tab lives until Close or until ctx is done.
func Open(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	b := &Browser{log: log.WithField("component", "browser")}

	wsURL := cfg.CDPURL
	if wsURL == "" {
		if cfg.Bin == "" {
			if path, found := launcher.LookPath(); found {
				b.log.WithField("bin", path).Debug("Found local browser")
			} else {
				b.log.Info("No local browser found, downloading one")
			}
		}
		b.launcher = newLauncher(ctx, cfg)
		url, err := b.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		wsURL = url
		b.log.WithField("url", wsURL).Debug("Browser launched")
	} else {
		b.log.WithField("url", wsURL).Debug("Connecting to browser")
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, wsURL)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	b.ctx, b.cancelTab, b.cancelAlloc = tabCtx, cancelTab, cancelAlloc

	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return b, nil
}

// Context is the chromedp context of the tab
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Close closes the tab and stops a browser this package launched
func (b *Browser) Close() {
	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	b.log.Debug("Browser closed")
}
