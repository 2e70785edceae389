package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"pinmark/internal/probe"
	"pinmark/pkg/bookmarklet"
	"pinmark/pkg/dom/htmldom"
	"pinmark/pkg/ui"
	"pinmark/pkg/ui/picker"
)

var (
	scanSelect   int
	scanPick     bool
	scanNoBundle bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "List the images on a page that can be bookmarked",
	Long: `Fetch a page, measure its images and run the bookmarklet overlay on it
without a browser.

Only .jpg, .jpeg and .png images at least bookmarklet.min_width by
bookmarklet.min_height pixels are offered. Choosing one prints the URL of the
site's bookmark form for it.`,
	Example: `  # List candidates
  pinmark scan https://example.com/gallery/

  # Print the bookmark form URL for the second candidate
  pinmark scan https://example.com/gallery/ --select 2

  # Choose interactively
  pinmark scan https://example.com/gallery/ --pick`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(nil)
		if err != nil {
			return err
		}

		var choose chooser
		switch {
		case scanPick:
			choose = pickInteractively
		case scanSelect > 0:
			choose = pickIndex(scanSelect - 1)
		}

		result, err := runScan(cmd.Context(), s, strings.TrimSpace(args[0]), scanNoBundle, choose)
		if err != nil {
			return err
		}

		ui.PrintInfo("Page", result.Title)
		ui.PrintCandidates(result.Candidates)
		if result.Handoff != "" {
			ui.PrintResult(result.Handoff)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().IntVar(&scanSelect, "select", 0, "choose candidate N (1-based) and print its bookmark URL")
	scanCmd.Flags().BoolVar(&scanPick, "pick", false, "choose a candidate in an interactive list")
	scanCmd.Flags().BoolVar(&scanNoBundle, "no-bundle", false, "do not fetch the overlay bundle from the site first")
	scanCmd.MarkFlagsMutuallyExclusive("select", "pick")
}

// chooser picks a candidate index, or returns an error to choose none
type chooser func(title string, candidates []bookmarklet.Candidate) (int, error)

func pickIndex(i int) chooser {
	return func(_ string, candidates []bookmarklet.Candidate) (int, error) {
		if i < 0 || i >= len(candidates) {
			return -1, fmt.Errorf("candidate %d does not exist, the page has %d", i+1, len(candidates))
		}
		return i, nil
	}
}

func pickInteractively(title string, candidates []bookmarklet.Candidate) (int, error) {
	return picker.Run("Select an image to bookmark: "+title, candidates)
}

type scanResult struct {
	Title      string
	Candidates []bookmarklet.Candidate
	Handoff    string
}

// nopLoader stands in for the bundle fetch
type nopLoader struct{}

func (nopLoader) FetchAsset(context.Context, string) error { return nil }

func runScan(ctx context.Context, s *session, pageURL string, noBundle bool, choose chooser) (*scanResult, error) {
	var sizes probe.Sizes
	p, err := s.openPage(ctx, pageURL, htmldom.WithSizer(htmldom.SizerFunc(func(src string) (int, int, bool) {
		return sizes.NaturalSize(src)
	})))
	if err != nil {
		return nil, err
	}
	defer p.Close()

	var sources []string
	var title string
	if err := p.loop.Sync(func() {
		p.win.Load()
		doc := p.win.Document()
		title = doc.Title()
		imgs, err := doc.QuerySelectorAll(bookmarklet.ImageSelector)
		if err != nil {
			return
		}
		for _, img := range imgs {
			sources = append(sources, img.Src())
		}
	}); err != nil {
		return nil, err
	}

	sizes, err = probe.New(s.client, s.cfg.Probe, s.log).Probe(ctx, sources)
	if err != nil {
		return nil, err
	}

	var loader bookmarklet.AssetLoader = s.client
	if noBundle {
		loader = nopLoader{}
	}
	launcher := bookmarklet.NewLauncher(p.win, p.loop, loader, nil, bookmarklet.OptionsFromConfig(s.cfg), s.log)

	var activateErr error
	if err := p.loop.Sync(func() { activateErr = launcher.Activate() }); err != nil {
		return nil, err
	}
	if activateErr != nil {
		return nil, activateErr
	}
	if err := p.loop.Quiesce(ctx); err != nil {
		return nil, err
	}

	result := &scanResult{Title: title}
	var overlay *bookmarklet.Overlay
	var loadErr error
	if err := p.loop.Sync(func() {
		overlay = launcher.Overlay()
		loadErr = launcher.LastErr()
		if overlay != nil {
			result.Candidates = overlay.Candidates()
		}
	}); err != nil {
		return nil, err
	}
	if overlay == nil {
		return nil, fmt.Errorf("overlay did not load (try --no-bundle): %w", loadErr)
	}

	if choose == nil {
		return result, nil
	}
	i, err := choose(title, result.Candidates)
	if errors.Is(err, picker.ErrCancelled) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	var selectErr error
	if err := p.loop.Sync(func() {
		selectErr = overlay.Select(i)
		result.Handoff = overlay.LastHandoff()
	}); err != nil {
		return nil, err
	}
	return result, selectErr
}
