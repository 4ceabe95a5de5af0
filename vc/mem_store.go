package vc

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory credential store.
type MemStore struct {
	mu    sync.RWMutex
	creds []*VerifiableCredential
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Save(_ context.Context, cred *VerifiableCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.creds {
		if existing.ID == cred.ID {
			s.creds[i] = cred
			return nil
		}
	}
	s.creds = append(s.creds, cred)
	return nil
}

func (s *MemStore) Query(_ context.Context, types []string) ([]*VerifiableCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*VerifiableCredential, 0, len(s.creds))
	for _, cred := range s.creds {
		if len(types) == 0 || slices.Contains(types, cred.CredentialType) {
			out = append(out, cred)
		}
	}
	return out, nil
}
