// Package render formats orders, events and lookup lists as chat text
// (Telegram-flavoured Markdown).
package render

import (
	"fmt"
	"strconv"
	"strings"

	"orderrelay/internal/diff"
	"orderrelay/internal/model"
)

// OrderLine is the one-line form: *A-1* Client (Status) *Engineer*.
func OrderLine(o model.Order, engineer string) string {
	return fmt.Sprintf("*%s* %s (%s) *%s*", o.Label, o.Client.Name, o.StatusName(), engineer)
}

// OrderDetail adds the free-text fields below the order line.
func OrderDetail(o model.Order, engineer string) string {
	var b strings.Builder
	b.WriteString(OrderLine(o, engineer))
	fmt.Fprintf(&b, "\n*model*: `%s`", o.Model)
	fmt.Fprintf(&b, "\n*malfunction*: `%s`", o.Malfunction)
	fmt.Fprintf(&b, "\n*manager_notes*: `%s`", o.ManagerNotes)
	fmt.Fprintf(&b, "\n*engineer_notes*: `%s`", o.EngineerNotes)
	return b.String()
}

func Event(e diff.Event) string {
	var prefix string
	switch e.Kind {
	case diff.KindNewOrder:
		prefix = "New order"
	case diff.KindStatusChanged:
		prefix = "Status was changed"
	case diff.KindEngineerChanged:
		prefix = "Engineer was changed"
	default:
		prefix = string(e.Kind)
	}
	return prefix + ": " + OrderLine(e.Order, e.Engineer)
}

// Events renders one line per event, joined with newlines.
func Events(events []diff.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, Event(e))
	}
	return strings.Join(lines, "\n")
}

// ActiveOrders drops closed and canceled orders, preserving order.
func ActiveOrders(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Active() {
			out = append(out, o)
		}
	}
	return out
}

func ClientList(clients []model.Client) string {
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}
	return strings.Join(names, "\n")
}

// StatusList renders "<id> <name> <group>" per status.
func StatusList(statuses []model.Status) string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		lines = append(lines, strings.Join([]string{strconv.FormatInt(s.ID, 10), s.Name, strconv.Itoa(s.Group)}, " "))
	}
	return strings.Join(lines, "\n")
}
