package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"pinmark/pkg/auth"
	"pinmark/pkg/config"
	"pinmark/pkg/dom/htmldom"
	"pinmark/pkg/eventloop"
	"pinmark/pkg/logger"
	"pinmark/pkg/site"
)

// session is what every site command needs
type session struct {
	cfg    *config.Config
	log    logger.Logger
	client *site.Client
}

// loadConfig merges the global flags with flags, then applies the stored
// account named by --account, or the default account when the configuration
// carries no session of its own
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if accountName != "" || cfg.Site.SessionID == "" {
		if err := applyAccount(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyAccount(cfg *config.Config) error {
	dir, err := auth.ConfigDir()
	if err != nil {
		return err
	}
	manager, err := auth.NewManager(dir)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q not found, see 'pinmark session list'", accountName)
		}
	} else {
		account, err = manager.RetrieveDefault()
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			// anonymous use is fine until the site says otherwise
			return nil
		}
		if err != nil {
			return err
		}
	}

	account.Apply(&cfg.Site)
	return cfg.Validate()
}

// newSession loads configuration, starts logging and builds the site client
func newSession(flags map[string]interface{}) (*session, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	client, err := site.NewClient(&cfg.Site, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, client: client}, nil
}

// page is a fetched page loaded into the in-memory DOM on its own loop
type page struct {
	loop *eventloop.Loop
	win  *htmldom.Window
	url  string
}

// openPage fetches pageURL and parses it. The document is left loading so
// callers can register ready handlers before calling Load on the loop.
func (s *session) openPage(ctx context.Context, pageURL string, opts ...htmldom.Option) (*page, error) {
	doc, err := s.client.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}

	opts = append([]htmldom.Option{
		htmldom.WithCookies(s.client.Cookies(doc.URL)),
		htmldom.WithLogger(s.log),
	}, opts...)
	win, err := htmldom.Parse(bytes.NewReader(doc.Body), doc.URL, opts...)
	if err != nil {
		return nil, err
	}

	s.log.InfoWithFields("Page loaded", map[string]interface{}{
		"url":   doc.URL,
		"bytes": len(doc.Body),
	})
	return &page{loop: eventloop.Start(ctx, s.log), win: win, url: doc.URL}, nil
}

func (p *page) Close() {
	p.loop.Close()
}
