package store

import (
	"context"
	"sync"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	deliveries map[string]Delivery // id -> delivery
	order      []string            // ids in insertion order
}

func NewMemory() *Memory {
	return &Memory{deliveries: map[string]Delivery{}}
}

func (m *Memory) SaveDelivery(ctx context.Context, d Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deliveries[d.ID]; !ok {
		m.order = append(m.order, d.ID)
	}
	m.deliveries[d.ID] = d
	return nil
}

func (m *Memory) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return Delivery{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) ListDeliveries(ctx context.Context, status, cursor string, limit int) ([]Delivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []Delivery{}
	var next string
	for i := start; i < len(m.order) && len(out) < limit; i++ {
		d := m.deliveries[m.order[i]]
		if status == "" || d.Status == status {
			out = append(out, d)
		}
		next = m.order[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}
