package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore implements CredentialStore using a plain JSON file. The file is
// the portable interchange format: a session exported on one machine can be
// dropped into place on another.
type FileStore struct {
	path string
}

// NewFileStore creates a file-based credential store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file location backing the store.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the credentials as indented JSON, atomically via a temp file.
func (f *FileStore) Save(creds *Credentials) error {
	if creds == nil || creds.Token == "" {
		return ErrInvalidCredentials
	}

	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	content, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tempFile, f.path)
}

// Load reads credentials from the file.
func (f *FileStore) Load() (*Credentials, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(content, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.Token == "" {
		return nil, ErrInvalidCredentials
	}
	return &creds, nil
}

// Delete removes the credentials file.
func (f *FileStore) Delete() error {
	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete credentials file: %w", err)
	}
	return nil
}

// Exists checks whether the credentials file is present.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}
