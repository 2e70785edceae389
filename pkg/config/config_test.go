package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "csrftoken", cfg.Site.CSRFCookie)
	assert.Equal(t, 250, cfg.Bookmarklet.MinWidth)
	assert.Equal(t, 250, cfg.Bookmarklet.MinHeight)
	assert.Equal(t, "image-list", cfg.Scroll.ContainerID)
	assert.Equal(t, 200, cfg.Scroll.Threshold)
	assert.Equal(t, "span.count .total", cfg.Toggle.Counter)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PINMARK_SITE_ORIGIN", "https://bookmarks.example.com/")
	t.Setenv("PINMARK_SESSION_ID", "env-session")
	t.Setenv("PINMARK_CSRF_TOKEN", "env-csrf")
	t.Setenv("PINMARK_HEADLESS", "true")
	t.Setenv("PINMARK_PROBE_WORKERS", "6")
	t.Setenv("PINMARK_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://bookmarks.example.com/", cfg.Site.Origin)
	assert.Equal(t, "env-session", cfg.Site.SessionID)
	assert.Equal(t, "env-csrf", cfg.Site.CSRFToken)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 6, cfg.Probe.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("PINMARK_HEADLESS", "sometimes")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PINMARK_HEADLESS")
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "pinmark.yaml")
		content := `
site:
  origin: https://pics.example.org/
  csrf_cookie: xsrf
  timeout: 10s
bookmarklet:
  min_width: 300
  min_height: 200
scroll:
  container_id: feed
  threshold: 150
  max_pages: 4
browser:
  headless: true
  cdp_url: ws://127.0.0.1:9222/devtools/browser/abc
probe:
  workers: 2
  timeout: 5s
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "https://pics.example.org/", cfg.Site.Origin)
		assert.Equal(t, "xsrf", cfg.Site.CSRFCookie)
		assert.Equal(t, 10*time.Second, cfg.Site.Timeout)
		assert.Equal(t, 300, cfg.Bookmarklet.MinWidth)
		assert.Equal(t, 200, cfg.Bookmarklet.MinHeight)
		assert.Equal(t, "feed", cfg.Scroll.ContainerID)
		assert.Equal(t, 150, cfg.Scroll.Threshold)
		assert.Equal(t, 4, cfg.Scroll.MaxPages)
		assert.True(t, cfg.Browser.Headless)
		assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.CDPURL)
		assert.Equal(t, 2, cfg.Probe.Workers)
		assert.Equal(t, 5*time.Second, cfg.Probe.Timeout)
		assert.Equal(t, "warn", cfg.Logging.Level)

		// untouched sections keep their defaults
		assert.Equal(t, "a.like", cfg.Toggle.LikeButton)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("site:\n  origin: [oops\n"), 0644))

		err := DefaultConfig().LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("non-existent file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile("/non/existent/path/config.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing origin",
			mutate:  func(c *Config) { c.Site.Origin = "" },
			wantErr: "site origin is required",
		},
		{
			name:    "relative origin",
			mutate:  func(c *Config) { c.Site.Origin = "bookmarks/" },
			wantErr: "not an absolute URL",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Scroll.Threshold = -1 },
			wantErr: "scroll threshold cannot be negative",
		},
		{
			name:    "too many probe workers",
			mutate:  func(c *Config) { c.Probe.Workers = 64 },
			wantErr: "probe workers should not exceed 16",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Site.Origin = ""
	cfg.Probe.Workers = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site origin is required")
	assert.Contains(t, err.Error(), "probe workers must be positive")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"origin":    "https://flags.example.com/",
		"headless":  true,
		"timeout":   90 * time.Second,
		"max-pages": 2,
		"log-level": "error",
		"cdp-url":   "",
	})

	assert.Equal(t, "https://flags.example.com/", cfg.Site.Origin)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 2, cfg.Scroll.MaxPages)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Empty(t, cfg.Browser.CDPURL)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "pinmark.yaml")

	cfg := DefaultConfig()
	cfg.Site.Origin = "https://saved.example.com/"
	cfg.Scroll.MaxPages = 7
	require.NoError(t, cfg.Save(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(configPath, map[string]interface{}{"log-level": "debug"})
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com/", loaded.Site.Origin)
	assert.Equal(t, 7, loaded.Scroll.MaxPages)
	assert.Equal(t, "debug", loaded.Logging.Level)
}
