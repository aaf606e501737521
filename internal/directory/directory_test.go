package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderrelay/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestEngineerDisplay(t *testing.T) {
	d := New([]model.Employee{
		{ID: 1, FirstName: "Ivan", LastName: "Petrov", Notes: "senior tg:ivanp"},
		{ID: 2, FirstName: "Olga", LastName: "Sidorova"},
	})

	assert.Equal(t, "Ivan Petrov", EngineerDisplay(ptr(1), d))
	assert.Equal(t, "Olga Sidorova", EngineerDisplay(ptr(2), d))
	assert.Equal(t, Unassigned, EngineerDisplay(ptr(3), d))
	assert.Equal(t, Unassigned, EngineerDisplay(nil, d))
	assert.Equal(t, Unassigned, EngineerDisplay(ptr(1), nil))
	assert.Equal(t, 2, d.Len())
}

func TestHandleFromNotes(t *testing.T) {
	d := New([]model.Employee{
		{ID: 1, Notes: "tg:ivanp other"},
		{ID: 2, Notes: "no handle"},
	})
	h, ok := d.Handle(1)
	require.True(t, ok)
	assert.Equal(t, "ivanp", h)
	_, ok = d.Handle(2)
	assert.False(t, ok)
}

type stubSource struct {
	employees []model.Employee
	err       error
}

func (s stubSource) Employees(context.Context) ([]model.Employee, error) {
	return s.employees, s.err
}

func TestLoad(t *testing.T) {
	d, err := Load(context.Background(), stubSource{employees: []model.Employee{{ID: 9, FirstName: "A", LastName: "B"}}})
	require.NoError(t, err)
	e, ok := d.Lookup(9)
	require.True(t, ok)
	assert.Equal(t, "A B", e.DisplayName())

	boom := errors.New("boom")
	_, err = Load(context.Background(), stubSource{err: boom})
	assert.ErrorIs(t, err, boom)
}
