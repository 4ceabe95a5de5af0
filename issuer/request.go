// Package issuer implements the issuer side of the DCP issuance flow:
// request intake, authorization, credential generation and delivery, and
// the client for talking to remote issuer services.
package issuer

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RequestStatus is the lifecycle state of a credential request. ISSUED is
// terminal; REJECTED is terminal unless the holder re-requests.
type RequestStatus string

const (
	StatusReceived RequestStatus = "RECEIVED"
	StatusPending  RequestStatus = "PENDING"
	StatusIssued   RequestStatus = "ISSUED"
	StatusRejected RequestStatus = "REJECTED"
)

// CredentialRequest tracks one holder's request for credentials.
type CredentialRequest struct {
	ID            string
	IssuerPID     string
	HolderPID     string
	HolderDID     string
	CredentialIDs []string
	Status        RequestStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RequestStore persists credential requests. Implementations live outside
// this module; MemRequestStore serves tests and in-process use.
type RequestStore interface {
	Save(ctx context.Context, request *CredentialRequest) error
	FindByID(ctx context.Context, id string) (*CredentialRequest, error)
}

// Generator produces credential containers for the credentials a request
// names. Implementations hold the issuer's claim sources.
type Generator interface {
	Generate(ctx context.Context, request *CredentialRequest, customClaims, constraints map[string]interface{}) ([]CredentialDraft, error)
}

// CredentialDraft is one generated or caller-supplied credential awaiting
// delivery.
type CredentialDraft struct {
	CredentialType string
	Format         string
	Payload        interface{}
}

func (d CredentialDraft) validate() error {
	if d.CredentialType == "" {
		return fmt.Errorf("credential draft has no credentialType")
	}
	if d.Format == "" {
		return fmt.Errorf("credential draft %q has no format", d.CredentialType)
	}
	if d.Payload == nil {
		return fmt.Errorf("credential draft %q has no payload", d.CredentialType)
	}
	return nil
}

// MemRequestStore is an in-memory request store.
type MemRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*CredentialRequest
}

func NewMemRequestStore() *MemRequestStore {
	return &MemRequestStore{requests: make(map[string]*CredentialRequest)}
}

func (s *MemRequestStore) Save(_ context.Context, request *CredentialRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *request
	s.requests[request.ID] = &copied
	return nil
}

func (s *MemRequestStore) FindByID(_ context.Context, id string) (*CredentialRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("credential request %q not found", id)
	}

	copied := *request
	return &copied, nil
}
