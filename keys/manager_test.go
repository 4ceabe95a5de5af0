package keys

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigningKeyRequiresProvisioning(t *testing.T) {
	manager := NewManager(NewMemStore())

	_, _, err := manager.SigningKey(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no active signing key")
}

func TestProvision(t *testing.T) {
	store := NewMemStore()
	manager := NewManager(store)

	kid, err := manager.Provision(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, kid)

	// kid is the base64url-encoded SHA-256 of the public key encoding.
	decoded, err := base64.RawURLEncoding.DecodeString(kid)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	key, gotKid, err := manager.SigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kid, gotKid)
	assert.Equal(t, "P-256", key.Curve.Params().Name)

	_, err = manager.Provision(context.Background())
	assert.Error(t, err, "double provisioning must fail")
}

func TestRotate(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemStore()
	manager := NewManager(store, WithClock(func() time.Time { return fixed }))

	firstKid, err := manager.Provision(context.Background())
	require.NoError(t, err)

	secondKid, err := manager.Rotate(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, firstKid, secondKid)

	var active, archived []*Metadata
	for _, md := range store.All() {
		if md.Active {
			active = append(active, md)
		}
		if md.Archived {
			archived = append(archived, md)
		}
	}

	require.Len(t, active, 1, "exactly one metadata record must be active")
	assert.Equal(t, secondKid, active[0].KeyID)
	assert.False(t, active[0].Archived)

	require.Len(t, archived, 1)
	assert.Equal(t, firstKid, archived[0].KeyID)
	assert.False(t, archived[0].Active)
	assert.Equal(t, fixed, archived[0].ArchivedAt)

	key, kid, err := manager.SigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secondKid, kid)
	assert.NotNil(t, key)
}

func TestRotateWithoutActiveKey(t *testing.T) {
	manager := NewManager(NewMemStore())

	_, err := manager.Rotate(context.Background())
	assert.Error(t, err)
}

// archiveTrigger wraps MemStore to start a concurrent SigningKey read the
// moment the archive record is written, before the replacement is active.
type archiveTrigger struct {
	*MemStore
	manager *Manager
	once    sync.Once
	result  chan error
}

func (s *archiveTrigger) SaveMetadata(ctx context.Context, md *Metadata) error {
	if md.Archived {
		s.once.Do(func() {
			go func() {
				_, _, err := s.manager.SigningKey(context.Background())
				s.result <- err
			}()
			time.Sleep(50 * time.Millisecond)
		})
	}
	return s.MemStore.SaveMetadata(ctx, md)
}

func TestRotateIsAtomicForReaders(t *testing.T) {
	store := &archiveTrigger{MemStore: NewMemStore(), result: make(chan error, 1)}
	manager := NewManager(store)
	store.manager = manager

	_, err := manager.Provision(context.Background())
	require.NoError(t, err)

	secondKid, err := manager.Rotate(context.Background())
	require.NoError(t, err)

	// The reader scheduled between archive and activation must see a
	// usable key, never the in-between state.
	require.NoError(t, <-store.result)

	_, kid, err := manager.SigningKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, secondKid, kid)
}
