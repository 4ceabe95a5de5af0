// Package holder implements the holder side of the DCP issuance flow:
// query authorization, rate limiting, credential reception, and offer
// processing.
package holder

import (
	"context"
	"sync"
	"time"
)

// StatusRecord is one terminal outcome of a credential request, written
// once per delivery regardless of how many entries could be parsed.
type StatusRecord struct {
	RequestID       string
	IssuerPID       string
	HolderPID       string
	Status          string
	CreatedAt       time.Time
	SavedCount      int
	RejectionReason string
}

// RecordStore appends status records. Implementations live outside this
// module; MemRecordStore serves tests and in-process use.
type RecordStore interface {
	Append(ctx context.Context, record *StatusRecord) error
}

// MemRecordStore is an in-memory, append-only record store.
type MemRecordStore struct {
	mu      sync.RWMutex
	records []*StatusRecord
}

func NewMemRecordStore() *MemRecordStore {
	return &MemRecordStore{}
}

func (s *MemRecordStore) Append(_ context.Context, record *StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *record
	s.records = append(s.records, &copied)
	return nil
}

// All returns every appended record, for inspection in tests.
func (s *MemRecordStore) All() []*StatusRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*StatusRecord, len(s.records))
	copy(out, s.records)
	return out
}
