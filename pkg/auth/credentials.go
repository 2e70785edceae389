// Package auth stores the session cookies pinmark sends to the bookmarking
// site, one set per named account.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"pinmark/pkg/config"
)

// Account is one login on the bookmarking site
type Account struct {
	Name         string    `json:"name"`
	Origin       string    `json:"origin,omitempty"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Apply copies the account's values over cfg. Empty optional values keep
// what cfg already has.
func (a *Account) Apply(cfg *config.SiteConfig) {
	cfg.SessionID = a.SessionID
	cfg.CSRFToken = a.CSRFToken
	if a.Origin != "" {
		cfg.Origin = a.Origin
	}
	if a.UserAgent != "" {
		cfg.UserAgent = a.UserAgent
	}
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for account.Name
	Store(account *Account) error

	// Retrieve gets credentials for a specific name
	Retrieve(name string) (*Account, error)

	// List returns all stored accounts
	List() ([]*Account, error)

	// Delete removes credentials for a specific name
	Delete(name string) error

	// Exists checks if credentials exist for a name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keychain when it works, an
// encrypted file in dir, and the environment, in that order
func NewManager(dir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account.Name == "" {
		return errors.New("account name is required")
	}
	if account.SessionID == "" {
		return errors.New("session ID is required")
	}
	if account.CSRFToken == "" {
		return errors.New("CSRF token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(name); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault prefers credentials from the environment, then the
// account saved most recently
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	var newest *Account
	for _, account := range accounts {
		if newest == nil || account.LastModified.After(newest.LastModified) {
			newest = account
		}
	}
	if newest == nil {
		return nil, ErrCredentialsNotFound
	}
	return newest, nil
}

// List returns every stored account sorted by name. When stores disagree
// the most recently modified copy wins.
func (m *Manager) List() ([]*Account, error) {
	byName := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byName[account.Name]; !ok || account.LastModified.After(existing.LastModified) {
				byName[account.Name] = account
			}
		}
	}

	result := make([]*Account, 0, len(byName))
	for _, account := range byName {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes credentials from every store that has them
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete(name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}
	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	var errs []error
	for _, account := range accounts {
		if err := m.Delete(account.Name); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConfigDir returns the per-user directory for pinmark's private files,
// creating it if needed
func ConfigDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "pinmark")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "pinmark")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			dir = filepath.Join(xdgConfig, "pinmark")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "pinmark")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount creates a copy of the account with secrets masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	masked := *account
	masked.SessionID = MaskString(account.SessionID)
	masked.CSRFToken = MaskString(account.CSRFToken)
	return &masked
}

// MaskString masks all but the first 4 and last 4 characters of a string
func MaskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
