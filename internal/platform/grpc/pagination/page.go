// Package pagination normalizes page_size and order_by list parameters.
package pagination

import (
	"fmt"
	"slices"
	"strings"
)

// Limits bounds a requested page size.
type Limits struct {
	Default int
	Max     int
}

// Clamp maps non-positive sizes to Default and caps at Max. The result is
// never below one.
func (l Limits) Clamp(requested int32) int {
	size := int(requested)
	if size <= 0 {
		size = l.Default
	}
	if l.Max > 0 {
		size = min(size, l.Max)
	}
	return max(size, 1)
}

// Order is a parsed order_by clause over a single field.
type Order struct {
	Field string
	Desc  bool
}

// String renders the canonical form: "field" or "field desc".
func (o Order) String() string {
	if o.Desc {
		return o.Field + " desc"
	}
	return o.Field
}

// Ordering lists the fields a list call may order by.
type Ordering struct {
	Default Order
	Fields  []string
}

// Parse reads "field", "field asc" or "field desc", ignoring case and
// extra whitespace. Blank input yields Default.
func (o Ordering) Parse(orderBy string) (Order, error) {
	parts := strings.Fields(strings.ToLower(orderBy))
	if len(parts) == 0 {
		return o.Default, nil
	}
	if len(parts) > 2 || !slices.Contains(o.Fields, parts[0]) {
		return Order{}, fmt.Errorf("invalid order_by: %s", orderBy)
	}
	order := Order{Field: parts[0]}
	if len(parts) == 2 {
		switch parts[1] {
		case "asc":
		case "desc":
			order.Desc = true
		default:
			return Order{}, fmt.Errorf("invalid order_by direction: %s", parts[1])
		}
	}
	return order, nil
}
