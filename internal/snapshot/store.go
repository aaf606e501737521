// Package snapshot keeps the last observed comparable projection of every
// order seen by the poller. State lives for the process only.
package snapshot

import "sync"

// Entry is the part of an order that change detection compares.
type Entry struct {
	Status   string
	Engineer string
}

// Store maps order keys to entries. Entries are never evicted: orders
// that stop appearing upstream keep their last entry.
type Store interface {
	Get(key string) (Entry, bool)
	Put(key string, e Entry)
	IsEmpty() bool
	Len() int
}

// Memory is a mutex-guarded in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]Entry{}}
}

func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *Memory) Put(key string, e Entry) {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) IsEmpty() bool { return m.Len() == 0 }

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of every tracked entry.
func (m *Memory) Entries() map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}
