package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
)

// MemStore is an in-memory key and metadata store.
type MemStore struct {
	mu       sync.RWMutex
	keys     map[string]*ecdsa.PrivateKey
	metadata map[string]*Metadata
}

func NewMemStore() *MemStore {
	return &MemStore{
		keys:     make(map[string]*ecdsa.PrivateKey),
		metadata: make(map[string]*Metadata),
	}
}

func (s *MemStore) SaveKey(_ context.Context, alias string, key *ecdsa.PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[alias] = key
	return nil
}

func (s *MemStore) LoadKey(_ context.Context, alias string) (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[alias]
	if !ok {
		return nil, fmt.Errorf("no key pair under alias %q", alias)
	}
	return key, nil
}

func (s *MemStore) SaveMetadata(_ context.Context, md *Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *md
	s.metadata[md.ID] = &copied
	return nil
}

func (s *MemStore) FindActive(_ context.Context) (*Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, md := range s.metadata {
		if md.Active {
			copied := *md
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no active key metadata")
}

// All returns every metadata record, for inspection in tests.
func (s *MemStore) All() []*Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Metadata, 0, len(s.metadata))
	for _, md := range s.metadata {
		copied := *md
		out = append(out, &copied)
	}
	return out
}
