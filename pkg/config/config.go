package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for pinmark
type Config struct {
	// Bookmarking site the widgets talk to
	Site SiteConfig `yaml:"site" json:"site"`

	// Image selection overlay
	Bookmarklet BookmarkletConfig `yaml:"bookmarklet" json:"bookmarklet"`

	// Infinite scroll loader
	Scroll ScrollConfig `yaml:"scroll" json:"scroll"`

	// Like/follow toggles
	Toggle ToggleConfig `yaml:"toggle" json:"toggle"`

	// Live browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Image dimension probing for fetched pages
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds the bookmarking site settings
type SiteConfig struct {
	Origin        string        `yaml:"origin" json:"origin"`
	CSRFCookie    string        `yaml:"csrf_cookie" json:"csrf_cookie"`
	SessionCookie string        `yaml:"session_cookie" json:"session_cookie"`
	SessionID     string        `yaml:"session_id" json:"session_id"`
	CSRFToken     string        `yaml:"csrf_token" json:"csrf_token"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// BookmarkletConfig holds overlay settings
type BookmarkletConfig struct {
	MinWidth  int `yaml:"min_width" json:"min_width"`
	MinHeight int `yaml:"min_height" json:"min_height"`
}

// ScrollConfig holds infinite scroll settings
type ScrollConfig struct {
	ContainerID string `yaml:"container_id" json:"container_id"`
	Threshold   int    `yaml:"threshold" json:"threshold"`
	MaxPages    int    `yaml:"max_pages" json:"max_pages"`
}

// ToggleConfig holds the selectors used by toggle widgets
type ToggleConfig struct {
	TemplateData string `yaml:"template_data" json:"template_data"`
	Counter      string `yaml:"counter" json:"counter"`
	LikeButton   string `yaml:"like_button" json:"like_button"`
	FollowButton string `yaml:"follow_button" json:"follow_button"`
}

// BrowserConfig holds live browser settings
type BrowserConfig struct {
	Headless bool          `yaml:"headless" json:"headless"`
	Bin      string        `yaml:"bin" json:"bin"`
	CDPURL   string        `yaml:"cdp_url" json:"cdp_url"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// ProbeConfig holds image probing settings
type ProbeConfig struct {
	Workers           int           `yaml:"workers" json:"workers"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Origin:        "http://127.0.0.1:8000/",
			CSRFCookie:    "csrftoken",
			SessionCookie: "sessionid",
			UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:       30 * time.Second,
		},
		Bookmarklet: BookmarkletConfig{
			MinWidth:  250,
			MinHeight: 250,
		},
		Scroll: ScrollConfig{
			ContainerID: "image-list",
			Threshold:   200,
			MaxPages:    0, // 0 means until exhausted
		},
		Toggle: ToggleConfig{
			TemplateData: ".template-data",
			Counter:      "span.count .total",
			LikeButton:   "a.like",
			FollowButton: "a.follow",
		},
		Browser: BrowserConfig{
			Headless: false,
			Timeout:  5 * time.Minute,
		},
		Probe: ProbeConfig{
			Workers:           4,
			RequestsPerMinute: 120,
			MaxAttempts:       3,
			Timeout:           15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if origin := os.Getenv("PINMARK_SITE_ORIGIN"); origin != "" {
		c.Site.Origin = origin
	}
	if sessionID := os.Getenv("PINMARK_SESSION_ID"); sessionID != "" {
		c.Site.SessionID = sessionID
	}
	if csrfToken := os.Getenv("PINMARK_CSRF_TOKEN"); csrfToken != "" {
		c.Site.CSRFToken = csrfToken
	}
	if userAgent := os.Getenv("PINMARK_USER_AGENT"); userAgent != "" {
		c.Site.UserAgent = userAgent
	}

	if cdpURL := os.Getenv("PINMARK_CDP_URL"); cdpURL != "" {
		c.Browser.CDPURL = cdpURL
	}
	if bin := os.Getenv("PINMARK_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if headless := os.Getenv("PINMARK_HEADLESS"); headless != "" {
		val, err := strconv.ParseBool(headless)
		if err != nil {
			return fmt.Errorf("invalid PINMARK_HEADLESS: %w", err)
		}
		c.Browser.Headless = val
	}

	if workers := os.Getenv("PINMARK_PROBE_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid PINMARK_PROBE_WORKERS: %w", err)
		}
		c.Probe.Workers = val
	}

	if logLevel := os.Getenv("PINMARK_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".pinmark.yaml",
		".pinmark.yml",
		filepath.Join(home, ".config", "pinmark", "config.yaml"),
		filepath.Join(home, ".config", "pinmark", "config.yml"),
		filepath.Join(home, ".pinmark.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.Origin == "" {
		errs = append(errs, errors.New("site origin is required"))
	} else if u, err := url.Parse(c.Site.Origin); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("site origin %q is not an absolute URL", c.Site.Origin))
	}
	if c.Site.CSRFCookie == "" {
		errs = append(errs, errors.New("csrf cookie name is required"))
	}
	if c.Site.Timeout <= 0 {
		errs = append(errs, errors.New("site timeout must be positive"))
	}

	if c.Bookmarklet.MinWidth < 0 || c.Bookmarklet.MinHeight < 0 {
		errs = append(errs, errors.New("minimum image dimensions cannot be negative"))
	}

	if c.Scroll.ContainerID == "" {
		errs = append(errs, errors.New("scroll container id is required"))
	}
	if c.Scroll.Threshold < 0 {
		errs = append(errs, errors.New("scroll threshold cannot be negative"))
	}
	if c.Scroll.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}

	if c.Toggle.TemplateData == "" || c.Toggle.Counter == "" ||
		c.Toggle.LikeButton == "" || c.Toggle.FollowButton == "" {
		errs = append(errs, errors.New("toggle selectors are required"))
	}

	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("browser timeout must be positive"))
	}

	if c.Probe.Workers <= 0 {
		errs = append(errs, errors.New("probe workers must be positive"))
	}
	if c.Probe.Workers > 16 {
		errs = append(errs, errors.New("probe workers should not exceed 16"))
	}
	if c.Probe.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Probe.MaxAttempts < 1 {
		errs = append(errs, errors.New("probe max attempts must be at least 1"))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if origin, ok := flags["origin"].(string); ok && origin != "" {
		c.Site.Origin = origin
	}
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Site.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Site.CSRFToken = csrfToken
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if cdpURL, ok := flags["cdp-url"].(string); ok && cdpURL != "" {
		c.Browser.CDPURL = cdpURL
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Browser.Timeout = timeout
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		c.Scroll.MaxPages = maxPages
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pinmark.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
