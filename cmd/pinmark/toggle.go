package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"pinmark/pkg/ready"
	"pinmark/pkg/toggle"
	"pinmark/pkg/ui"
)

func newToggleCmd(pair toggle.Pair, what string) *cobra.Command {
	return &cobra.Command{
		Use:   pair.Positive + " <url>",
		Short: fmt.Sprintf("Toggle %s from its detail page", what),
		Long: fmt.Sprintf(`Load a detail page and click its %s button once, the way a reader would.

The button's data-action decides the direction: %q becomes %q and back.
The page's counter is updated only after the site confirms with status "ok".
The session cookie must belong to a logged-in user.`, pair.Positive, pair.Positive, pair.Negative),
		Example: fmt.Sprintf("  pinmark %s https://example.com/%s", pair.Positive, exampleDetailPath(pair)),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(nil)
			if err != nil {
				return err
			}

			result, err := runToggle(cmd.Context(), s, pair, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			ui.PrintInfo("Before", fmt.Sprintf("%s (%d)", result.Before.Action, result.Before.Count))
			ui.PrintInfo("After", fmt.Sprintf("%s (%d)", result.After.Action, result.After.Count))
			if result.Err != nil {
				ui.PrintWarning("The page was left unchanged", result.Err)
			}
			ui.PrintResult(fmt.Sprintf("%s %d", result.After.Action, result.After.Count))
			return nil
		},
	}
}

func exampleDetailPath(pair toggle.Pair) string {
	if pair == toggle.Follow {
		return "users/alice/"
	}
	return "images/detail/42/my-photo/"
}

func init() {
	rootCmd.AddCommand(newToggleCmd(toggle.Like, "a like"))
	rootCmd.AddCommand(newToggleCmd(toggle.Follow, "a follow"))
}

type toggleResult struct {
	Before toggle.State
	After  toggle.State
	Err    error
}

func runToggle(ctx context.Context, s *session, pair toggle.Pair, pageURL string) (*toggleResult, error) {
	p, err := s.openPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	opts := toggle.OptionsFromConfig(&s.cfg.Toggle, pair)
	result := &toggleResult{}
	var action *toggle.Action
	var bindErr error

	if err := p.loop.Sync(func() {
		doc := p.win.Document()
		bindErr = ready.OnReady(doc, p.loop, s.cfg.Site.CSRFCookie, func(params ready.Params) {
			token := params.CSRFToken
			if token == "" {
				token = s.cfg.Site.CSRFToken
			}
			action, bindErr = toggle.Bind(p.win, p.loop, s.client, pair, opts, token, s.log)
			if bindErr != nil {
				return
			}
			result.Before = action.State()

			button, err := doc.QuerySelector(opts.Button)
			if err != nil {
				bindErr = err
				return
			}
			bindErr = button.Click()
		})
		if bindErr == nil {
			p.win.Load()
		}
	}); err != nil {
		return nil, err
	}
	if err := p.loop.Quiesce(ctx); err != nil {
		return nil, err
	}

	if err := p.loop.Sync(func() {
		if action != nil {
			result.After = action.State()
			result.Err = action.LastErr()
		}
	}); err != nil {
		return nil, err
	}
	if bindErr != nil {
		return nil, bindErr
	}
	if action == nil {
		return nil, fmt.Errorf("page never became ready")
	}
	return result, nil
}
