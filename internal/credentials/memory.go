package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps a credential in process memory only
type MemoryStore struct {
	mu sync.RWMutex
	c  Credential
}

// NewMemoryStore initializes a MemoryStore holding the given credential
func NewMemoryStore(initial Credential) *MemoryStore {
	return &MemoryStore{c: initial}
}

func (s *MemoryStore) Get(ctx context.Context) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.c, nil
}

func (s *MemoryStore) Set(ctx context.Context, c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c = c
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c = Credential{}
	return nil
}

var _ Store = (*MemoryStore)(nil)
