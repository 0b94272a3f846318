package domain

import "fmt"

// DiscountType is the kind of discount last applied to a cart.
type DiscountType string

const (
	DiscountFix        DiscountType = "fix"
	DiscountPercentage DiscountType = "percentage"
)

// ParseDiscountType maps an API value to a DiscountType. An empty string
// means DiscountFix.
func ParseDiscountType(s string) (DiscountType, error) {
	switch DiscountType(s) {
	case "", DiscountFix:
		return DiscountFix, nil
	case DiscountPercentage:
		return DiscountPercentage, nil
	default:
		return "", fmt.Errorf("unknown discount type %q: %w", s, ErrInvalidDiscount)
	}
}

// LineItem is one product row in a cart.
type LineItem struct {
	RowID     string         `json:"row_id"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Price     float64        `json:"price"`
	Quantity  float64        `json:"quantity"`
	Subtotal  float64        `json:"subtotal"`
	ExtraInfo map[string]any `json:"extra_info,omitempty"`
}

// ItemPatch carries the optional fields of an update. Nil fields keep the
// line item's current value.
type ItemPatch struct {
	Quantity  *float64
	Price     *float64
	ExtraInfo map[string]any
}

// Products is the ordered list of line items stored for a cart.
type Products []LineItem

// FindItemIndex returns the index of the row with rowID, or -1.
func (p Products) FindItemIndex(rowID string) int {
	for i := range p {
		if p[i].RowID == rowID {
			return i
		}
	}
	return -1
}

// Remove returns p without the row at index i. The backing array is not shared.
func (p Products) Remove(i int) Products {
	out := make(Products, 0, len(p)-1)
	out = append(out, p[:i]...)
	return append(out, p[i+1:]...)
}

// Totals are the derived figures stored next to the products.
type Totals struct {
	Subtotal     float64      `json:"subtotal"`
	Discount     float64      `json:"discount"`
	DiscountType DiscountType `json:"discount_type"`
	Total        float64      `json:"total"`
}

// Summary is a read-only snapshot of a cart.
type Summary struct {
	Items     []LineItem `json:"items"`
	ItemCount float64    `json:"item_count"`
	Totals
}

// ItemCount sums the quantities of all rows.
func (p Products) ItemCount() float64 {
	var n float64
	for _, item := range p {
		n += item.Quantity
	}
	return n
}
