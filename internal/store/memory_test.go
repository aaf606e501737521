package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMemorySaveGetUpdate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.SaveDelivery(ctx, Delivery{ID: "d1", Channel: "stream:ops", Status: StatusFailed, Attempts: 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.SaveDelivery(ctx, Delivery{ID: "d1", Channel: "stream:ops", Status: StatusDelivered, Attempts: 2}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := m.GetDelivery(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusDelivered || got.Attempts != 2 {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if _, err := m.GetDelivery(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	items, _, _ := m.ListDeliveries(ctx, "", "", 0)
	if len(items) != 1 {
		t.Fatalf("update must not duplicate, got %d items", len(items))
	}
}

func TestMemoryListPagingAndFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		status := StatusDelivered
		if i%2 == 1 {
			status = StatusFailed
		}
		_ = m.SaveDelivery(ctx, Delivery{ID: fmt.Sprintf("d%d", i), Status: status})
	}

	page, next, err := m.ListDeliveries(ctx, "", "", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != "d0" || next != "d1" {
		t.Fatalf("first page: %+v next=%q", page, next)
	}
	page, next, _ = m.ListDeliveries(ctx, "", next, 2)
	if len(page) != 2 || page[0].ID != "d2" || next != "d3" {
		t.Fatalf("second page: %+v next=%q", page, next)
	}
	page, next, _ = m.ListDeliveries(ctx, "", next, 2)
	if len(page) != 1 || next != "" {
		t.Fatalf("last page: %+v next=%q", page, next)
	}

	failed, _, _ := m.ListDeliveries(ctx, StatusFailed, "", 10)
	if len(failed) != 2 {
		t.Fatalf("want 2 failed, got %d", len(failed))
	}
}
