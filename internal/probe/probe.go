// Package probe measures images over HTTP so pages loaded without a renderer
// still know their images' natural sizes.
package probe

import (
	"context"

	"pinmark/pkg/config"
	"pinmark/pkg/logger"
	"pinmark/pkg/ratelimit"
	"pinmark/pkg/retry"
)

// Size is an image's intrinsic dimensions
type Size struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Sizes maps image URLs to their dimensions. It satisfies htmldom.Sizer.
type Sizes map[string]Size

// NaturalSize looks up src
func (s Sizes) NaturalSize(src string) (int, int, bool) {
	size, ok := s[src]
	return size.Width, size.Height, ok
}

// Prober measures batches of images
type Prober struct {
	opener  Opener
	cfg     config.ProbeConfig
	limiter ratelimit.Limiter
	retry   *retry.Config
	log     logger.Logger
}

// New creates a Prober. The rate limit is shared by every Probe call.
func New(opener Opener, cfg config.ProbeConfig, log logger.Logger) *Prober {
	if log == nil {
		log = logger.GetLogger()
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.Logger = log

	return &Prober{
		opener:  opener,
		cfg:     cfg,
		limiter: ratelimit.PerMinute(cfg.RequestsPerMinute),
		retry:   retryCfg,
		log:     log,
	}
}

// SetRetry replaces the retry policy
func (p *Prober) SetRetry(cfg *retry.Config) {
	p.retry = cfg
}

// Probe measures every distinct URL in urls. Images that cannot be measured
// are left out of the result and logged; the error is only ever ctx's.
func (p *Prober) Probe(ctx context.Context, urls []string) (Sizes, error) {
	unique := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if u != "" && !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}

	sizes := make(Sizes, len(unique))
	if len(unique) == 0 {
		return sizes, nil
	}

	workers := min(max(p.cfg.Workers, 1), len(unique))
	pool := NewWorkerPool(ctx, workers, p.opener, p.limiter, p.retry, p.log)
	pool.SetAttemptTimeout(p.cfg.Timeout)
	pool.Start()

	go func() {
		defer pool.Stop()
		for _, u := range unique {
			if err := pool.Submit(Job{URL: u}); err != nil {
				return
			}
		}
	}()

	failed := 0
	for result := range pool.Results() {
		if result.Error != nil {
			failed++
			continue
		}
		sizes[result.Job.URL] = Size{Width: result.Width, Height: result.Height, Format: result.Format}
	}

	p.log.InfoWithFields("Probed images", map[string]interface{}{
		"requested": len(unique),
		"measured":  len(sizes),
		"failed":    failed,
	})
	if err := ctx.Err(); err != nil && len(sizes) < len(unique) {
		return sizes, err
	}
	return sizes, nil
}
