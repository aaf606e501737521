package store

import (
	"context"
	"errors"
)

// Store is the notification delivery journal. Snapshot state is never
// stored here; it lives in memory for the process only.
type Store interface {
	// SaveDelivery inserts d, or replaces the delivery with the same ID.
	SaveDelivery(ctx context.Context, d Delivery) error
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	// ListDeliveries returns deliveries oldest first. status filters when
	// non-empty; cursor is the last ID of the previous page.
	ListDeliveries(ctx context.Context, status, cursor string, limit int) (items []Delivery, nextCursor string, err error)
}

var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}
