package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is used when no DynamoDB table is configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]Record
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, records: make(map[string]Record)}
}

func (m *MemoryStore) Claim(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[key]; ok && !at.After(r.ExpiresAt) {
		return ErrKeyExists
	}
	m.records[key] = Record{Key: key, Status: StatusInProgress, CreatedAt: at, ExpiresAt: at.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &r, nil
}

func (m *MemoryStore) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[key]
	if !ok {
		return ErrKeyNotFound
	}
	r.Status = StatusCompleted
	r.OrderID = orderID
	m.records[key] = r
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[key]; ok && r.Status == StatusInProgress {
		delete(m.records, key)
	}
	return nil
}
