// Package keys owns the connector's signing key pair: provisioning,
// rotation, and key-identifier derivation.
package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Metadata describes one managed key pair. Exactly one record is active at
// any time; rotation archives the previous record in place.
type Metadata struct {
	ID         string
	Alias      string
	KeyID      string
	CreatedAt  time.Time
	Active     bool
	Archived   bool
	ArchivedAt time.Time
}

// Store persists key material and metadata. Implementations live outside
// this module; MemStore serves tests and in-process use.
type Store interface {
	SaveKey(ctx context.Context, alias string, key *ecdsa.PrivateKey) error
	LoadKey(ctx context.Context, alias string) (*ecdsa.PrivateKey, error)
	SaveMetadata(ctx context.Context, md *Metadata) error
	FindActive(ctx context.Context) (*Metadata, error)
}

// Manager guards the active-key selection. Rotation takes the write lock
// across archive and activation, so readers observe either the old or the
// new key, never an in-between state.
type Manager struct {
	mu    sync.RWMutex
	store Store
	now   func() time.Time
}

// ManagerOpt configures a Manager.
type ManagerOpt func(*Manager)

// WithClock overrides the manager's time source.
func WithClock(now func() time.Time) ManagerOpt {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a key manager backed by the given store.
func NewManager(store Store, opts ...ManagerOpt) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provision generates the first key pair. It fails when an active key
// already exists.
func (m *Manager) Provision(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active, err := m.store.FindActive(ctx); err == nil && active != nil {
		return "", fmt.Errorf("key already provisioned under alias %q", active.Alias)
	}

	return m.activateFresh(ctx)
}

// Rotate generates a fresh P-256 key pair, archives the currently active
// metadata record, and activates a record for the new alias.
func (m *Manager) Rotate(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, err := m.store.FindActive(ctx)
	if err != nil {
		return "", fmt.Errorf("no active key to rotate: %w", err)
	}

	previous.Active = false
	previous.Archived = true
	previous.ArchivedAt = m.now()
	if err := m.store.SaveMetadata(ctx, previous); err != nil {
		return "", fmt.Errorf("failed to archive key metadata: %w", err)
	}

	return m.activateFresh(ctx)
}

// SigningKey returns the active private key and its key identifier. A
// missing key pair means the connector was never provisioned.
func (m *Manager) SigningKey(ctx context.Context) (*ecdsa.PrivateKey, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active, err := m.store.FindActive(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("no active signing key, provision one first: %w", err)
	}

	key, err := m.store.LoadKey(ctx, active.Alias)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load key %q: %w", active.Alias, err)
	}

	return key, active.KeyID, nil
}

func (m *Manager) activateFresh(ctx context.Context) (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key pair: %w", err)
	}

	kid, err := KeyID(&key.PublicKey)
	if err != nil {
		return "", err
	}

	alias := uuid.NewString()
	if err := m.store.SaveKey(ctx, alias, key); err != nil {
		return "", fmt.Errorf("failed to persist key pair: %w", err)
	}

	md := &Metadata{
		ID:        uuid.NewString(),
		Alias:     alias,
		KeyID:     kid,
		CreatedAt: m.now(),
		Active:    true,
	}
	if err := m.store.SaveMetadata(ctx, md); err != nil {
		return "", fmt.Errorf("failed to persist key metadata: %w", err)
	}

	return kid, nil
}

// KeyID derives the key identifier as the base64url-encoded SHA-256 hash of
// the public key's DER encoding.
func KeyID(pub *ecdsa.PublicKey) (string, error) {
	encoded, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
