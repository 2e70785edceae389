package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pinmark"
	keyringPrefix  = "site_"
	// keyringIndex lists the stored names, since keychains cannot be enumerated
	keyringIndex = "index"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore checks that the keychain accepts writes
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "test_availability"
	if err := keyring.Set(keyringService, probe, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)

	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(keyringService, keyringPrefix+account.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { names[account.Name] = true })
}

func (k *KeyringStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	names, err := k.readIndex()
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for name := range names {
		account, err := k.Retrieve(name)
		if err != nil {
			// the entry was removed outside pinmark
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	err := keyring.Delete(keyringService, keyringPrefix+name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(func(names map[string]bool) { delete(names, name) })
}

func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+name)
	return err == nil
}

func (k *KeyringStore) readIndex() (map[string]bool, error) {
	names := make(map[string]bool)
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return names, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	for _, name := range list {
		names[name] = true
	}
	return names, nil
}

func (k *KeyringStore) updateIndex(change func(map[string]bool)) error {
	names, err := k.readIndex()
	if err != nil {
		return err
	}
	change(names)

	list := make([]string, 0, len(names))
	for name := range names {
		list = append(list, name)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}
