package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"
	"pinmark/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	accountName   string
	notifications bool
	quiet         bool
)

var rootCmd = &cobra.Command{
	Use:   "pinmark",
	Short: "Bookmark images, load feeds and toggle likes on a bookmarking site",
	Long: `pinmark drives the bookmarking site's page widgets from the command line.

Commands:
  - scan: list the images on a page that can be bookmarked
  - bookmarklet: run the image picker overlay in a real browser
  - feed: load every page of an infinite-scroll listing
  - like, follow: toggle an image like or a user follow

The site origin is set with site.origin in the configuration file or the
PINMARK_SITE_ORIGIN environment variable.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}

		switch cmd.Name() {
		case "version", "help", "completion", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.pinmark.yaml or ~/.config/pinmark/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use a stored session account")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "print results and errors only")

	rootCmd.SetVersionTemplate(`pinmark {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
