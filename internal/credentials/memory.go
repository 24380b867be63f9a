package credentials

import (
	"sync"

	"github.com/opensheets/companion/internal/service"
)

// MemoryStore is an in-memory CredentialStore for tests.
type MemoryStore struct {
	creds service.Credentials
	mu    sync.Mutex
}

// NewMemoryStore creates a MemoryStore seeded with the given credentials.
func NewMemoryStore(creds service.Credentials) *MemoryStore {
	return &MemoryStore{creds: creds}
}

// Get implements service.CredentialStore.
func (s *MemoryStore) Get() (service.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, nil
}

// Set implements service.CredentialStore.
func (s *MemoryStore) Set(creds service.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	return nil
}

// Clear implements service.CredentialStore.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = service.Credentials{}
	return nil
}
