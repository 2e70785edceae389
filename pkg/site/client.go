package site

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"pinmark/pkg/config"
	errs "pinmark/pkg/errors"
	"pinmark/pkg/logger"
	"pinmark/pkg/retry"
)

// maxBodySize caps how much of any response is read
const maxBodySize = 8 << 20

// Client talks to the bookmarking site
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	origin     *url.URL
	csrfCookie string
	retry      *retry.Config
	logger     logger.Logger
}

// Document is a fetched page
type Document struct {
	// URL is the final URL after redirects
	URL  string
	Body []byte
}

// NewClient creates a client for the site described by cfg. Session and CSRF
// values from cfg are installed as cookies on the origin.
func NewClient(cfg *config.SiteConfig, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	origin, err := url.Parse(NormalizeOrigin(cfg.Origin))
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("invalid site origin %q", cfg.Origin)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	var cookies []*http.Cookie
	if cfg.SessionID != "" && cfg.SessionCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.SessionCookie, Value: cfg.SessionID, Path: "/"})
	}
	if cfg.CSRFToken != "" && cfg.CSRFCookie != "" {
		cookies = append(cookies, &http.Cookie{Name: cfg.CSRFCookie, Value: cfg.CSRFToken, Path: "/"})
	}
	jar.SetCookies(origin, cookies)

	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = log

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
		},
		origin:     origin,
		csrfCookie: cfg.CSRFCookie,
		retry:      retryCfg,
		logger:     log.WithField("component", "site"),
	}, nil
}

// Origin returns the normalized site origin, always ending in "/"
func (c *Client) Origin() string {
	return c.origin.String()
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetRetry replaces the retry policy for idempotent requests
func (c *Client) SetRetry(cfg *retry.Config) {
	c.retry = cfg
}

// Cookies returns the cookies the client would send to rawURL
func (c *Client) Cookies(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	for _, ck := range c.httpClient.Jar.Cookies(u) {
		out[ck.Name] = ck.Value
	}
	return out
}

// doRequest sends req with the configured headers and classifies failures
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" && req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WithError(err).WarnWithFields("HTTP request failed", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "request failed", err)
	}
	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, errs.FromStatus(resp.StatusCode, fmt.Sprintf("%s %s returned %s", req.Method, req.URL, resp.Status))
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, rawURL string, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.doRequest(req)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err)
	}
	if len(body) > maxBodySize {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("response body exceeds %d bytes", maxBodySize),
		}
	}
	return body, nil
}

// PostAction submits a toggle: a multipart form {id, action} with the CSRF
// token as X-CSRFToken. It returns the "status" field of the JSON reply.
// Toggles are not idempotent, so failures are never retried.
func (c *Client) PostAction(ctx context.Context, endpoint, csrfToken, id, action string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("id", id); err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "failed to encode form", err)
	}
	if err := form.WriteField("action", action); err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "failed to encode form", err)
	}
	if err := form.Close(); err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "failed to encode form", err)
	}

	target, err := c.origin.Parse(endpoint)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "invalid action URL", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), &buf)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-CSRFToken", csrfToken)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", c.origin.String())
	c.ensureCSRFCookie(target, csrfToken)

	resp, err := c.doRequest(req)
	if err != nil {
		return "", err
	}
	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(body) {
		return "", &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("action response is not JSON: %s", preview(body)),
		}
	}
	status := gjson.GetBytes(body, "status")
	c.logger.DebugWithFields("Action answered", map[string]interface{}{
		"url":    target.String(),
		"id":     id,
		"action": action,
		"status": status.String(),
	})
	return status.String(), nil
}

// ensureCSRFCookie makes the double-submit cookie match the header when the
// token came from somewhere other than the jar
func (c *Client) ensureCSRFCookie(target *url.URL, token string) {
	if token == "" || c.csrfCookie == "" {
		return
	}
	for _, ck := range c.httpClient.Jar.Cookies(target) {
		if ck.Name == c.csrfCookie {
			return
		}
	}
	c.httpClient.Jar.SetCookies(target, []*http.Cookie{{Name: c.csrfCookie, Value: token, Path: "/"}})
}

// FetchFragment GETs a paginated listing fragment and returns it as text.
// An empty string is the site's "no more pages" answer.
func (c *Client) FetchFragment(ctx context.Context, pageURL string) (string, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (string, error) {
		resp, err := c.get(ctx, pageURL, "text/html")
		if err != nil {
			return "", err
		}
		body, err := readBody(resp)
		if err != nil {
			return "", err
		}
		return string(body), nil
	})
}

// FetchAsset GETs a static asset and discards the body. It is how an
// injected <script> or <link> loads.
func (c *Client) FetchAsset(ctx context.Context, assetURL string) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		resp, err := c.get(ctx, assetURL, "*/*")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, err = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return errs.Wrap(errs.ErrorTypeNetwork, "failed to read asset", err)
		}
		return nil
	})
}

// GetDocument fetches a full page
func (c *Client) GetDocument(ctx context.Context, pageURL string) (*Document, error) {
	return retry.DoWithResult(ctx, c.retry, func(ctx context.Context) (*Document, error) {
		resp, err := c.get(ctx, pageURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
		if err != nil {
			return nil, err
		}
		final := resp.Request.URL.String()
		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		return &Document{URL: final, Body: body}, nil
	})
}

// OpenImage GETs an image and returns its body unread. It makes a single
// attempt; callers that only need the header decide about retries.
func (c *Client) OpenImage(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, imageURL, "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
