package quota

import (
	"sync"
	"time"
)

// MemoryBackend keeps quota records in a mutex-guarded map
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

// Get returns the record for a caller key, if present
func (b *MemoryBackend) Get(callerKey string) (Record, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[callerKey]
	return rec, ok, nil
}

// Put inserts or overwrites a record
func (b *MemoryBackend) Put(rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[rec.CallerKey] = rec
	return nil
}

// Delete removes a record
func (b *MemoryBackend) Delete(callerKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, callerKey)
	return nil
}

// Sweep removes all records expired as of now
func (b *MemoryBackend) Sweep(now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, rec := range b.records {
		if now.After(rec.ExpiresAt) {
			delete(b.records, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory backend
func (b *MemoryBackend) Close() error { return nil }
