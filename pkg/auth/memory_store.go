package auth

import (
	"sync"
)

// MemoryStore keeps accounts in memory. Errors can be injected for tests.
type MemoryStore struct {
	accounts map[string]Account
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (m *MemoryStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Name] = *account
	return nil
}

func (m *MemoryStore) Retrieve(name string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MemoryStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		acc := account
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

func (m *MemoryStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, name)
	return nil
}

func (m *MemoryStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[name]
	return ok
}

// Count is the number of stored accounts
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
