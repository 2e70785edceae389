package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"pinmark/internal/browser"
	"pinmark/pkg/bookmarklet"
	"pinmark/pkg/dom/cdpdom"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/ui"
)

var (
	liveHeadless bool
	liveTimeout  time.Duration
	liveCDPURL   string
	liveSelect   int
)

var bookmarkletCmd = &cobra.Command{
	Use:   "bookmarklet <url>",
	Short: "Run the image picker overlay on a page in a real browser",
	Long: `Open a page in Chromium and activate the bookmarklet on it, exactly as
clicking the bookmarklet would. Click an image in the overlay to bookmark it;
pinmark prints the bookmark form URL the overlay opened.

A local Chromium is launched, or downloaded when none is installed. Use
--cdp-url to drive a browser that is already running with remote debugging.`,
	Example: `  # Pick an image by hand
  pinmark bookmarklet https://example.com/gallery/

  # Headless, choosing the first candidate
  pinmark bookmarklet https://example.com/gallery/ --headless --select 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := map[string]interface{}{}
		if cmd.Flags().Changed("headless") {
			flags["headless"] = liveHeadless
		}
		if cmd.Flags().Changed("timeout") {
			flags["timeout"] = liveTimeout
		}
		if liveCDPURL != "" {
			flags["cdp-url"] = liveCDPURL
		}

		s, err := newSession(flags)
		if err != nil {
			return err
		}
		notifier := ui.NewNotifier(notifications)

		handoff, err := runBookmarklet(cmd.Context(), s, strings.TrimSpace(args[0]), liveSelect)
		if err != nil {
			notifier.NotifyError("Bookmarklet failed", err.Error())
			return err
		}
		notifier.NotifySuccess("Image chosen", path.Base(handoff))
		ui.PrintResult(handoff)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bookmarkletCmd)

	bookmarkletCmd.Flags().BoolVar(&liveHeadless, "headless", false, "run the browser without a window (needs --select)")
	bookmarkletCmd.Flags().DurationVar(&liveTimeout, "timeout", 0, "how long to wait for a choice (default browser.timeout)")
	bookmarkletCmd.Flags().StringVar(&liveCDPURL, "cdp-url", "", "DevTools websocket URL of a running browser")
	bookmarkletCmd.Flags().IntVar(&liveSelect, "select", 0, "choose candidate N (1-based) instead of waiting for a click")
}

func runBookmarklet(ctx context.Context, s *session, pageURL string, selectN int) (string, error) {
	if s.cfg.Browser.Headless && selectN <= 0 {
		return "", fmt.Errorf("--headless needs --select, nobody can click a headless page")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Browser.Timeout)
	defer cancel()

	b, err := browser.Open(ctx, s.cfg.Browser, s.log)
	if err != nil {
		return "", err
	}
	defer b.Close()

	loop := eventloop.Start(ctx, s.log)
	defer loop.Close()

	handoffs := make(chan string, 1)
	win, err := cdpdom.Attach(b.Context(), loop, s.log, cdpdom.WithOpenHandler(func(url, _ string) {
		select {
		case handoffs <- url:
		default:
		}
	}))
	if err != nil {
		return "", err
	}
	if err := win.Navigate(pageURL); err != nil {
		return "", err
	}

	launcher := bookmarklet.NewLauncher(win, loop, s.client, nil, bookmarklet.OptionsFromConfig(s.cfg), s.log)
	var activateErr error
	if err := loop.Sync(func() { activateErr = launcher.Activate() }); err != nil {
		return "", err
	}
	if activateErr != nil {
		return "", activateErr
	}
	if err := loop.Quiesce(ctx); err != nil {
		return "", err
	}

	var overlay *bookmarklet.Overlay
	var candidates []bookmarklet.Candidate
	var loadErr error
	if err := loop.Sync(func() {
		overlay = launcher.Overlay()
		loadErr = launcher.LastErr()
		if overlay != nil {
			candidates = overlay.Candidates()
		}
	}); err != nil {
		return "", err
	}
	if overlay == nil {
		return "", fmt.Errorf("overlay did not load: %w", loadErr)
	}
	ui.PrintCandidates(candidates)

	if selectN > 0 {
		choice, err := pickIndex(selectN - 1)("", candidates)
		if err != nil {
			return "", err
		}
		var selectErr error
		if err := loop.Sync(func() { selectErr = overlay.Select(choice) }); err != nil {
			return "", err
		}
		if selectErr != nil {
			return "", selectErr
		}
	} else {
		ui.PrintHighlight("Click an image in the browser to bookmark it")
	}

	select {
	case url := <-handoffs:
		return url, nil
	case <-ctx.Done():
		return "", fmt.Errorf("no image chosen: %w", ctx.Err())
	}
}
