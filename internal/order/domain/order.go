package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by lookups when no order matches.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyOrder is returned when a cart has no positive-quantity line.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrUnknownItem is returned when a cart references a key missing
	// from the active catalog.
	ErrUnknownItem = errors.New("unknown menu item")
	// ErrInvalidStatus is returned when a payment or progress value is
	// outside the allowed set.
	ErrInvalidStatus = errors.New("invalid status value")
)

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "unpaid"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
)

type ProgressStatus string

const (
	ProgressReceived ProgressStatus = "received"
	ProgressReady    ProgressStatus = "ready"
	ProgressClosed   ProgressStatus = "closed"
)

// Category is a plating lane in the kitchen. Every menu item belongs to
// exactly one.
type Category string

const (
	CategoryStew       Category = "stew"
	CategoryFriedBread Category = "friedbread"
)

// PlatingCategories lists every lane an order's plating map covers.
var PlatingCategories = []Category{CategoryStew, CategoryFriedBread}

// Order is one customer purchase. Records are created once, mutated
// only through status updates, and never deleted; cancellation is a
// payment state, not a removal.
type Order struct {
	ID         string
	Ticket     string
	CallNumber int
	Items      map[string]int
	Total      int64
	Payment    PaymentStatus
	Progress   ProgressStatus
	Plating    map[Category]bool
	CreatedAt  time.Time // zero on records written before the field existed
	UpdatedAt  time.Time
	CreatedBy  string
}

// EffectiveTime is the ordering key: CreatedAt when present, otherwise
// UpdatedAt. Zero when the record carries no usable timestamp at all.
func (o Order) EffectiveTime() time.Time {
	if !o.CreatedAt.IsZero() {
		return o.CreatedAt
	}
	return o.UpdatedAt
}

// SetPayment overwrites the payment state. Any legal value may replace
// any other; the transition graph is deliberately unrestricted because
// the stall's staff flow reverts paid and cancelled orders in practice.
func (o *Order) SetPayment(p PaymentStatus) error {
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentCancelled:
		o.Payment = p
		return nil
	}
	return fmt.Errorf("%w: payment %q", ErrInvalidStatus, p)
}

// SetProgress overwrites the progress state. Forward and backward moves
// are both staff actions; nothing transitions automatically.
func (o *Order) SetProgress(p ProgressStatus) error {
	switch p {
	case ProgressReceived, ProgressReady, ProgressClosed:
		o.Progress = p
		return nil
	}
	return fmt.Errorf("%w: progress %q", ErrInvalidStatus, p)
}

// Clone deep-copies the order so stores can hand out records without
// sharing their internal maps.
func (o Order) Clone() Order {
	c := o
	if o.Items != nil {
		c.Items = make(map[string]int, len(o.Items))
		for k, v := range o.Items {
			c.Items[k] = v
		}
	}
	if o.Plating != nil {
		c.Plating = make(map[Category]bool, len(o.Plating))
		for k, v := range o.Plating {
			c.Plating[k] = v
		}
	}
	return c
}

// EnsurePlating normalizes a plating map against the ordered items:
// every category with zero ordered quantity reads as ready no matter
// what was stored, and categories with ordered quantity keep their
// stored flag (defaulting to not ready).
func EnsurePlating(items map[string]int, stored map[Category]bool, categoryOf func(string) (Category, bool)) map[Category]bool {
	ordered := make(map[Category]bool, len(PlatingCategories))
	for key, qty := range items {
		if qty <= 0 {
			continue
		}
		if cat, ok := categoryOf(key); ok {
			ordered[cat] = true
		}
	}
	out := make(map[Category]bool, len(PlatingCategories))
	for _, cat := range PlatingCategories {
		if !ordered[cat] {
			out[cat] = true
			continue
		}
		out[cat] = stored[cat]
	}
	return out
}

// MergePlating applies only the supplied category flags on top of the
// current map and reports whether anything was supplied at all.
func MergePlating(current map[Category]bool, partial map[Category]bool) (map[Category]bool, bool) {
	if len(partial) == 0 {
		return current, false
	}
	out := make(map[Category]bool, len(PlatingCategories))
	for k, v := range current {
		out[k] = v
	}
	changed := false
	for _, cat := range PlatingCategories {
		if v, ok := partial[cat]; ok {
			out[cat] = v
			changed = true
		}
	}
	return out, changed
}
