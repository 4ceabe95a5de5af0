package verify

import (
	"context"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// TrustStore answers whether an issuer is trusted for a credential type.
// Implementations live outside this module; MemTrustStore serves tests and
// in-process use.
type TrustStore interface {
	Trusted(ctx context.Context, credentialType, issuerDID string) bool
	Add(ctx context.Context, credentialType, issuerDID string) error
	Remove(ctx context.Context, credentialType, issuerDID string) error
	List(ctx context.Context, credentialType string) ([]string, error)
}

// SchemaRegistry tracks the credential schemas the verifier recognizes.
type SchemaRegistry interface {
	Exists(id string) bool
	Put(id string, schema []byte) error
	Get(id string) ([]byte, bool)
	Remove(id string)
}

// MemTrustStore is an in-memory trust store keyed by credential type.
type MemTrustStore struct {
	mu      sync.RWMutex
	issuers map[string]map[string]struct{}
}

func NewMemTrustStore() *MemTrustStore {
	return &MemTrustStore{issuers: make(map[string]map[string]struct{})}
}

func (s *MemTrustStore) Trusted(_ context.Context, credentialType, issuerDID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.issuers[credentialType][issuerDID]
	return ok
}

func (s *MemTrustStore) Add(_ context.Context, credentialType, issuerDID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.issuers[credentialType] == nil {
		s.issuers[credentialType] = make(map[string]struct{})
	}
	s.issuers[credentialType][issuerDID] = struct{}{}
	return nil
}

func (s *MemTrustStore) Remove(_ context.Context, credentialType, issuerDID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.issuers[credentialType], issuerDID)
	return nil
}

func (s *MemTrustStore) List(_ context.Context, credentialType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.issuers[credentialType]))
	for issuer := range s.issuers[credentialType] {
		out = append(out, issuer)
	}
	return out, nil
}

// MemSchemaRegistry is an in-memory schema registry. Put compiles the
// schema so malformed documents are rejected at registration time.
type MemSchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string][]byte
}

func NewMemSchemaRegistry() *MemSchemaRegistry {
	return &MemSchemaRegistry{schemas: make(map[string][]byte)}
}

func (r *MemSchemaRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.schemas[id]
	return ok
}

func (r *MemSchemaRegistry) Put(id string, schema []byte) error {
	if id == "" {
		return fmt.Errorf("schema id is empty")
	}

	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema)); err != nil {
		return fmt.Errorf("schema %q does not compile: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas[id] = schema
	return nil
}

func (r *MemSchemaRegistry) Get(id string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schema, ok := r.schemas[id]
	return schema, ok
}

func (r *MemSchemaRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.schemas, id)
}
