package auth

import (
	"sync"
)

// MockStore implements CredentialStore for testing purposes.
type MockStore struct {
	creds *Credentials
	mu    sync.RWMutex

	// Error injection for testing
	SaveError   error
	LoadError   error
	DeleteError error
}

// NewMockStore creates a new mock credential store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// Save stores a copy of the credentials in memory.
func (m *MockStore) Save(creds *Credentials) error {
	if m.SaveError != nil {
		return m.SaveError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if creds == nil || creds.Token == "" {
		return ErrInvalidCredentials
	}

	credsCopy := *creds
	credsCopy.Cookies = make(map[string]string, len(creds.Cookies))
	for name, value := range creds.Cookies {
		credsCopy.Cookies[name] = value
	}
	m.creds = &credsCopy
	return nil
}

// Load returns a copy of the stored credentials.
func (m *MockStore) Load() (*Credentials, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.creds == nil {
		return nil, ErrCredentialsNotFound
	}
	credsCopy := *m.creds
	return &credsCopy, nil
}

// Delete clears the stored credentials.
func (m *MockStore) Delete() error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds == nil {
		return ErrCredentialsNotFound
	}
	m.creds = nil
	return nil
}

// Exists checks whether credentials are stored.
func (m *MockStore) Exists() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.creds != nil
}

// NewMockManager creates a Manager with a mock store for testing.
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return NewManagerWithStores(mockStore), mockStore
}
