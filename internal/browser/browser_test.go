package browser

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinmark/pkg/config"
	"pinmark/pkg/logger"
)

func TestNewLauncherFlags(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	cfg.Headless = true
	cfg.Bin = "/opt/chromium/chrome"

	l := newLauncher(context.Background(), cfg)
	assert.True(t, l.Has(flags.Headless))
	assert.True(t, l.Has("disable-popup-blocking"))
	assert.Equal(t, "/opt/chromium/chrome", l.Get(flags.Bin))

	cfg.Headless = false
	cfg.Bin = ""
	l = newLauncher(context.Background(), cfg)
	assert.False(t, l.Has(flags.Headless))
	assert.Empty(t, l.Get(flags.Bin))
}

// Needs a browser: set PINMARK_TEST_BROWSER=1
func TestOpenHeadless(t *testing.T) {
	if os.Getenv("PINMARK_TEST_BROWSER") == "" {
		t.Skip("PINMARK_TEST_BROWSER not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.DefaultConfig().Browser
	cfg.Headless = true
	b, err := Open(ctx, cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer b.Close()

	var ua string
	require.NoError(t, chromedp.Run(b.Context(), chromedp.Evaluate(`navigator.userAgent`, &ua)))
	assert.Contains(t, ua, "Chrome")
}
