package auth

import (
	"os"
	"strings"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Useful for CI and for sessions copied out of a browser. Read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables.
func (e *EnvironmentStore) Save(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Load builds credentials from MPSCRAPER_TOKEN and MPSCRAPER_COOKIES. The
// cookie value uses standard Cookie header syntax: "name=value; name=value".
func (e *EnvironmentStore) Load() (*Credentials, error) {
	token := os.Getenv("MPSCRAPER_TOKEN")
	cookieHeader := os.Getenv("MPSCRAPER_COOKIES")

	if token == "" || cookieHeader == "" {
		return nil, ErrCredentialsNotFound
	}

	cookies := make(map[string]string)
	for _, pair := range strings.Split(cookieHeader, ";") {
		pair = strings.TrimSpace(pair)
		if name, value, ok := strings.Cut(pair, "="); ok && name != "" {
			cookies[name] = value
		}
	}
	if len(cookies) == 0 {
		return nil, ErrCredentialsNotFound
	}

	return &Credentials{
		Token:       token,
		Cookies:     cookies,
		Fingerprint: os.Getenv("MPSCRAPER_FINGERPRINT"),
	}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

// Exists checks whether environment credentials are set.
func (e *EnvironmentStore) Exists() bool {
	return os.Getenv("MPSCRAPER_TOKEN") != "" && os.Getenv("MPSCRAPER_COOKIES") != ""
}
