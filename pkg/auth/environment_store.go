package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads one unnamed account from PINMARK_SESSION_ID,
// PINMARK_CSRF_TOKEN and friends. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvironmentAccount is the name given to the environment's account
const EnvironmentAccount = "env"

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve answers for EnvironmentAccount or the empty name
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != EnvironmentAccount {
		return nil, ErrCredentialsNotFound
	}
	sessionID := os.Getenv("PINMARK_SESSION_ID")
	csrfToken := os.Getenv("PINMARK_CSRF_TOKEN")
	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         EnvironmentAccount,
		Origin:       os.Getenv("PINMARK_SITE_ORIGIN"),
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    os.Getenv("PINMARK_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("PINMARK_SESSION_ID") != "" && os.Getenv("PINMARK_CSRF_TOKEN") != ""
}
