// Package credentials persists the device's bearer credential state. The
// rest of the application only sees the narrow CredentialStore capability.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/opensheets/companion/internal/service"
)

// FileStore keeps credentials in a mode-0600 JSON file under the user's
// data directory.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a credential store backed by the given file path.
// An empty path places the file under XDG_DATA_HOME (or ~/.local/share).
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		defaultPath, err := defaultStatePath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	return &FileStore{path: path}, nil
}

func defaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share")
	}

	companionDir := filepath.Join(dataDir, "companion")
	if err := os.MkdirAll(companionDir, 0700); err != nil {
		return "", err
	}

	return filepath.Join(companionDir, "credentials.json"), nil
}

// Get loads the saved credentials. A missing file yields empty credentials,
// not an error.
func (s *FileStore) Get() (service.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return service.Credentials{}, nil
	}
	if err != nil {
		return service.Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds service.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return service.Credentials{}, fmt.Errorf("failed to decode credentials: %w", err)
	}

	return creds, nil
}

// Set saves the credentials, owner read/write only.
func (s *FileStore) Set(creds service.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// Clear removes the saved credentials. Clearing an already-empty store is
// not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
