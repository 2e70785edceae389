package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"pinmark/pkg/scroll"
	"pinmark/pkg/ui"
)

var feedMaxPages int

var feedCmd = &cobra.Command{
	Use:   "feed <url>",
	Short: "Load every page of an infinite-scroll listing",
	Long: `Fetch a listing page and keep scrolling it, as a reader would, until the
site returns an empty page or --max-pages is reached. Prints how many pages
were appended and how many items the listing holds afterwards.`,
	Example: `  pinmark feed https://example.com/images/
  pinmark feed https://example.com/images/ --max-pages 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := map[string]interface{}{}
		if cmd.Flags().Changed("max-pages") {
			flags["max-pages"] = feedMaxPages
		}
		s, err := newSession(flags)
		if err != nil {
			return err
		}

		result, err := runFeed(cmd.Context(), s, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		ui.PrintInfo("Pages appended", strconv.Itoa(result.State.Appended))
		ui.PrintInfo("Last page", strconv.Itoa(result.State.Page))
		switch {
		case result.State.Stalled:
			ui.NewNotifier(notifications).NotifyError("Feed stalled", result.Err.Error())
		case result.State.Exhausted:
			ui.PrintSuccess("Reached the end of the listing")
		default:
			ui.PrintWarning("Stopped at the page limit")
		}
		ui.PrintResult(strconv.Itoa(result.Items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().IntVar(&feedMaxPages, "max-pages", 0, "stop after this many pages including the first (0 means no limit)")
}

type feedResult struct {
	State scroll.State
	Items int
	Err   error
}

func runFeed(ctx context.Context, s *session, listingURL string) (*feedResult, error) {
	p, err := s.openPage(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	var loader *scroll.Loader
	var startErr error
	if err := p.loop.Sync(func() {
		p.win.Load()
		loader, startErr = scroll.Start(p.win, p.loop, s.client, scroll.OptionsFromConfig(&s.cfg.Scroll), s.log)
	}); err != nil {
		return nil, err
	}
	if startErr != nil {
		return nil, startErr
	}

	// the in-memory page has no layout, so every scroll reaches the bottom
	lastPage := 0
	for {
		if err := p.loop.Quiesce(ctx); err != nil {
			return nil, err
		}
		if finished(loader) {
			break
		}
		var page int
		if err := p.loop.Sync(func() {
			page = loader.State().Page
			if page != lastPage {
				p.win.ScrollTo(p.win.ScrollY() + p.win.InnerHeight())
			}
		}); err != nil {
			return nil, err
		}
		if page == lastPage {
			break
		}
		lastPage = page
	}

	result := &feedResult{}
	if err := p.loop.Sync(func() {
		result.State = loader.State()
		result.Err = loader.LastErr()
		items, err := p.win.Document().QuerySelectorAll(fmt.Sprintf("#%s > *", s.cfg.Scroll.ContainerID))
		if err == nil {
			result.Items = len(items)
		}
	}); err != nil {
		return nil, err
	}

	s.log.InfoWithFields("Feed loaded", map[string]interface{}{
		"pages":     result.State.Appended,
		"exhausted": result.State.Exhausted,
		"items":     result.Items,
	})
	return result, nil
}

func finished(l *scroll.Loader) bool {
	select {
	case <-l.Done():
		return true
	default:
		return false
	}
}
