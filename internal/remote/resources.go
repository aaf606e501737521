package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"

	"orderrelay/internal/model"
)

// Resource paths relative to the base URL.
const (
	PathOrders    = "order/"
	PathClients   = "clients/"
	PathStatuses  = "statuses/"
	PathEmployees = "employees/"
)

// Orders fetches all orders matching filters (nil for all).
func (c *Client) Orders(ctx context.Context, filters url.Values) ([]model.Order, error) {
	raw, err := c.FetchAll(ctx, PathOrders, filters)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.Order](c.validate, PathOrders, raw)
}

// OrdersByLabel fetches the orders with the given human-readable labels.
func (c *Client) OrdersByLabel(ctx context.Context, labels ...string) ([]model.Order, error) {
	return c.Orders(ctx, url.Values{"id_labels[]": labels})
}

func (c *Client) Clients(ctx context.Context) ([]model.Client, error) {
	raw, err := c.FetchAll(ctx, PathClients, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.Client](c.validate, PathClients, raw)
}

func (c *Client) Statuses(ctx context.Context) ([]model.Status, error) {
	raw, err := c.FetchAll(ctx, PathStatuses, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.Status](c.validate, PathStatuses, raw)
}

func (c *Client) Employees(ctx context.Context) ([]model.Employee, error) {
	raw, err := c.FetchAll(ctx, PathEmployees, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecords[model.Employee](c.validate, PathEmployees, raw)
}

func decodeRecords[T any](v *validator.Validate, path string, raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var rec T
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %v", ErrMalformedResponse, path, i, err)
		}
		if err := v.Struct(rec); err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %v", ErrMalformedResponse, path, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
