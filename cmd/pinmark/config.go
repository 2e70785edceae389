package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"pinmark/pkg/auth"
	"pinmark/pkg/config"
	"pinmark/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pinmark configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (PINMARK_*)
  - A .env file
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to '.pinmark.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration pinmark would run with, after merging every source.
Session values are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# pinmark configuration file
#
# Every value can also be set through the environment, for example
# PINMARK_SITE_ORIGIN, PINMARK_SESSION_ID or PINMARK_LOG_LEVEL.

# The bookmarking site
site:
  # Origin the overlay assets and the bookmark form are served from (required)
  origin: "http://127.0.0.1:8000/"

  # Cookie names used by the site
  csrf_cookie: "csrftoken"
  session_cookie: "sessionid"

  # Session values; prefer 'pinmark session add' over putting them here
  session_id: ""
  csrf_token: ""

  user_agent: ""
  timeout: 30s

# Image picker overlay
bookmarklet:
  # Images smaller than this in either dimension are not offered
  min_width: 250
  min_height: 250

# Infinite scroll
scroll:
  # Element the next pages are appended to
  container_id: "image-list"
  # Distance from the bottom, in pixels, that triggers the next page
  threshold: 200
  # Stop after this many pages including the first; 0 means no limit
  max_pages: 0

# Like and follow buttons
toggle:
  template_data: ".template-data"
  counter: "span.count .total"
  like_button: "a.like"
  follow_button: "a.follow"

# Live browser for 'pinmark bookmarklet'
browser:
  headless: false
  # Chromium binary; empty finds or downloads one
  bin: ""
  # DevTools websocket of an already running browser
  cdp_url: ""
  # How long to wait for a choice
  timeout: 5m

# Measuring images of fetched pages
probe:
  # Range: 1-16
  workers: 4
  requests_per_minute: 120
  max_attempts: 3
  timeout: 15s

logging:
  # debug, info, warn, error, disabled
  level: "info"
  # JSON log file, in addition to the console
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".pinmark.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create configuration directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.PrintInfo("Next", "set site.origin, then run 'pinmark config validate'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Site.SessionID != "" {
		display.Site.SessionID = auth.MaskString(display.Site.SessionID)
	}
	if display.Site.CSRFToken != "" {
		display.Site.CSRFToken = auth.MaskString(display.Site.CSRFToken)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	ui.PrintResult(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	path := configFile
	if path == "" {
		for _, candidate := range []string{".pinmark.yaml", ".pinmark.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return fmt.Errorf("no configuration file found, specify one with --config")
	}
	ui.PrintInfo("Validating configuration", path)

	if err := cfg.LoadFromFile(path); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration has errors:\n%w", err)
	}

	var warnings []string
	if cfg.Site.SessionID == "" {
		warnings = append(warnings, "no session configured, like and follow need one ('pinmark session add')")
	}
	if cfg.Browser.Headless {
		warnings = append(warnings, "browser.headless is set, 'pinmark bookmarklet' will need --select")
	}
	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Site", cfg.Site.Origin)
	ui.PrintInfo("Minimum image size", fmt.Sprintf("%dx%d", cfg.Bookmarklet.MinWidth, cfg.Bookmarklet.MinHeight))
	ui.PrintInfo("Probe workers", fmt.Sprintf("%d at %d requests/minute", cfg.Probe.Workers, cfg.Probe.RequestsPerMinute))
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}
