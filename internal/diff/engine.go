// Package diff turns successive full order lists into change events.
package diff

import (
	"orderrelay/internal/directory"
	"orderrelay/internal/model"
	"orderrelay/internal/snapshot"
)

type Kind string

const (
	KindNewOrder        Kind = "new_order"
	KindStatusChanged   Kind = "status_changed"
	KindEngineerChanged Kind = "engineer_changed"
)

// Event is one human-relevant change. It carries everything needed to
// render it without another API call.
type Event struct {
	Kind     Kind
	Order    model.Order
	Engineer string
}

// Project returns the comparable projection of o.
func Project(o model.Order, dir *directory.Directory) snapshot.Entry {
	return snapshot.Entry{
		Status:   o.StatusName(),
		Engineer: directory.EngineerDisplay(o.EngineerID, dir),
	}
}

type Engine struct {
	dir *directory.Directory
}

func NewEngine(dir *directory.Directory) *Engine {
	return &Engine{dir: dir}
}

// Evaluate compares orders against store and updates it. An empty store is
// the baseline: it is filled and no events are returned. Otherwise events
// come out in the order of orders; an order yields a NewOrder event, or a
// StatusChanged and/or EngineerChanged event, or nothing.
func (e *Engine) Evaluate(orders []model.Order, store snapshot.Store) []Event {
	if store.IsEmpty() {
		for _, o := range orders {
			store.Put(o.Label, Project(o, e.dir))
		}
		return nil
	}

	var events []Event
	for _, o := range orders {
		cur := Project(o, e.dir)
		prev, ok := store.Get(o.Label)
		if !ok {
			events = append(events, Event{Kind: KindNewOrder, Order: o, Engineer: cur.Engineer})
		} else {
			if prev.Status != cur.Status {
				events = append(events, Event{Kind: KindStatusChanged, Order: o, Engineer: cur.Engineer})
			}
			if prev.Engineer != cur.Engineer {
				events = append(events, Event{Kind: KindEngineerChanged, Order: o, Engineer: cur.Engineer})
			}
		}
		store.Put(o.Label, cur)
	}
	return events
}
