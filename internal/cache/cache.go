package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Cache stores market lookups between calls and runs
type Cache interface {
	// Get returns the value and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is a process-local cache
type Memory struct {
	entries *xsync.Map[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{
		entries: xsync.NewMap[string, memoryEntry](),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	entry, ok := m.entries.Load(key)
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, xsync.ComputeOp) {
			if loaded && old.expiresAt.Equal(entry.expiresAt) {
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value for ttl; a zero ttl never expires
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

func (m *Memory) Close() error {
	m.entries.Clear()
	return nil
}

// Len returns the number of stored entries, expired ones included
func (m *Memory) Len() int {
	return m.entries.Size()
}
