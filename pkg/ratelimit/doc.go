// Package ratelimit throttles outbound requests to the bookmarking site.
//
// TokenBucket refills to full capacity once per period. The image probe
// takes a token before each fetch so a page with hundreds of thumbnails
// does not hammer the server:
//
//	limiter := ratelimit.PerMinute(cfg.Probe.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
