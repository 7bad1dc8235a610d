package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "mpscraper"
	keyringKey     = "session"
)

// KeyringStore implements CredentialStore using the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-based credential store, probing the
// keychain once to confirm it is usable.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Save stores the session in the system keychain.
func (k *KeyringStore) Save(creds *Credentials) error {
	if creds == nil || creds.Token == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := keyring.Set(keyringService, keyringKey, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Load retrieves the session from the system keychain.
func (k *KeyringStore) Load() (*Credentials, error) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &creds, nil
}

// Delete removes the session from the system keychain.
func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(keyringService, keyringKey); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks whether a session is stored in the keychain.
func (k *KeyringStore) Exists() bool {
	_, err := keyring.Get(keyringService, keyringKey)
	return err == nil
}
