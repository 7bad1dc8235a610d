package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Credentials is an authenticated platform session. The platform maintains
// one session per browser identity, so there is exactly one credential set
// at a time.
type Credentials struct {
	Token       string            `json:"token"`
	Cookies     map[string]string `json:"cookies"`
	Fingerprint string            `json:"fingerprint"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
	UserInfo    map[string]string `json:"userInfo,omitempty"`
}

// IsExpired reports whether the session has a known expiry in the past.
// Sessions without an expiry are treated as live until the platform says
// otherwise.
func (c *Credentials) IsExpired() bool {
	if c == nil {
		return true
	}
	return c.ExpiresAt != nil && time.Now().After(*c.ExpiresAt)
}

// CookieHeader renders the cookies as a single Cookie header value, names
// sorted for a stable result.
func (c *Credentials) CookieHeader() string {
	if c == nil || len(c.Cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Cookies))
	for name := range c.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+c.Cookies[name])
	}
	return strings.Join(pairs, "; ")
}

// Nickname returns the account nickname captured at login, if any.
func (c *Credentials) Nickname() string {
	if c == nil {
		return ""
	}
	return c.UserInfo["nickname"]
}

// CredentialStore persists the single active session.
type CredentialStore interface {
	// Save persists the credentials, replacing any previous session.
	Save(creds *Credentials) error

	// Load retrieves the stored credentials, or ErrCredentialsNotFound.
	Load() (*Credentials, error)

	// Delete removes the stored credentials.
	Delete() error

	// Exists checks whether credentials are stored.
	Exists() bool
}

// Manager layers credential stores with fallback. Saves go to every
// available store; loads return the first hit.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keychain
// when available, an encrypted file, and a plain JSON file in that order.
// The plain file keeps sessions portable across machines without keyring
// support.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewFileStore(filepath.Join(configDir, "credentials.json")))

	// Last resort, read-only.
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over explicit stores. Used by tests
// and by callers that want a single backend.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Save persists credentials to every store that will take them. At least one
// store must succeed.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil || creds.Token == "" {
		return ErrInvalidCredentials
	}
	if len(creds.Cookies) == 0 {
		return ErrInvalidCredentials
	}

	var saved bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(creds); err != nil {
			lastErr = err
		} else {
			saved = true
		}
	}
	if !saved {
		if lastErr != nil {
			return fmt.Errorf("failed to store credentials: %w", lastErr)
		}
		return errors.New("no available credential stores")
	}
	return nil
}

// Load returns credentials from the first store that has them.
func (m *Manager) Load() (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Load(); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes credentials from all stores. Missing entries are not an
// error; a logout must always leave a clean local state.
func (m *Manager) Delete() error {
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(); err != nil && !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}
	return lastErr
}

// Exists reports whether any store holds credentials.
func (m *Manager) Exists() bool {
	for _, store := range m.stores {
		if store.Exists() {
			return true
		}
	}
	return false
}

// ConfigDir returns the platform-appropriate configuration directory,
// creating it if needed.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mpscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mpscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mpscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mpscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize creates a copy of the credentials with sensitive values masked,
// safe for logs and status output.
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}
	masked := make(map[string]string, len(creds.Cookies))
	for name, value := range creds.Cookies {
		masked[name] = maskString(value)
	}
	return &Credentials{
		Token:       maskString(creds.Token),
		Cookies:     masked,
		Fingerprint: creds.Fingerprint,
		ExpiresAt:   creds.ExpiresAt,
		UserInfo:    creds.UserInfo,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
