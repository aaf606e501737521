// Package directory holds the engineer directory: employee id to display
// name, loaded once at startup and read-only afterwards.
package directory

import (
	"context"
	"fmt"
	"regexp"

	"orderrelay/internal/model"
)

// Unassigned is shown for orders without a known engineer. It takes part
// in change comparison like any other display name.
const Unassigned = "=FREE="

var handleRe = regexp.MustCompile(`tg:(\S+)`)

// Source loads employees, typically the remote API client.
type Source interface {
	Employees(ctx context.Context) ([]model.Employee, error)
}

type Directory struct {
	byID    map[int64]model.Employee
	handles map[int64]string
}

// New indexes employees by id. Later duplicates win.
func New(employees []model.Employee) *Directory {
	d := &Directory{
		byID:    make(map[int64]model.Employee, len(employees)),
		handles: map[int64]string{},
	}
	for _, e := range employees {
		d.byID[e.ID] = e
		if m := handleRe.FindStringSubmatch(e.Notes); m != nil {
			d.handles[e.ID] = m[1]
		} else {
			delete(d.handles, e.ID)
		}
	}
	return d
}

// Load fetches all employees from src.
func Load(ctx context.Context, src Source) (*Directory, error) {
	employees, err := src.Employees(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: load employees: %w", err)
	}
	return New(employees), nil
}

func (d *Directory) Lookup(id int64) (model.Employee, bool) {
	if d == nil {
		return model.Employee{}, false
	}
	e, ok := d.byID[id]
	return e, ok
}

// Handle returns the chat handle found as "tg:<handle>" in the employee notes.
func (d *Directory) Handle(id int64) (string, bool) {
	if d == nil {
		return "", false
	}
	h, ok := d.handles[id]
	return h, ok
}

func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

// EngineerDisplay returns the display name for an assigned engineer id,
// or Unassigned when id is nil or not in the directory.
func EngineerDisplay(id *int64, d *Directory) string {
	if id == nil {
		return Unassigned
	}
	e, ok := d.Lookup(*id)
	if !ok {
		return Unassigned
	}
	return e.DisplayName()
}
