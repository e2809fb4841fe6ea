package ai

import (
	"context"
	"sync"
)

// UsageRecord is the server-owned AI usage counter of one user.
type UsageRecord struct {
	Attempts int
	Blocked  bool
}

// UsageReader reads usage counters. found is false when the user has no
// record yet.
type UsageReader interface {
	Attempts(ctx context.Context, userID string) (rec UsageRecord, found bool, err error)
}

// MemoryUsage is an in-process counter store for demo mode and tests.
type MemoryUsage struct {
	mu      sync.RWMutex
	records map[string]UsageRecord
}

// NewMemoryUsage returns an empty counter store.
func NewMemoryUsage() *MemoryUsage {
	return &MemoryUsage{records: make(map[string]UsageRecord)}
}

// Attempts returns the stored record of userID.
func (m *MemoryUsage) Attempts(_ context.Context, userID string) (UsageRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[userID]
	return rec, ok, nil
}

// Increment records one accepted attempt, as the server would.
func (m *MemoryUsage) Increment(userID string) UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[userID]
	rec.Attempts++
	m.records[userID] = rec
	return rec
}

// Set replaces the record of userID.
func (m *MemoryUsage) Set(userID string, rec UsageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = rec
}
