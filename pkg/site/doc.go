// Package site is the HTTP client for the bookmarking site.
//
// It covers every request the widgets make: the toggle POST, the paginated
// listing fragments, the bookmarklet's static assets and whole pages for the
// in-memory backend. GETs are retried on transient failures through
// pkg/retry; POSTs are sent once.
//
// Usage:
//
//	client, err := site.NewClient(&cfg.Site, log)
//	status, err := client.PostAction(ctx, "/images/like/", csrf, "42", "like")
package site
