package application

import (
	"context"

	menu "github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
)

// OrderRepository is the storage port. Both implementations persist an
// outbox payload atomically with the record: postgres writes an outbox
// row in the same transaction, the demo store treats the write itself
// as delivery.
type OrderRepository interface {
	// CreateWithOutbox assigns the next call number, stores the order,
	// and returns the stored record.
	CreateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) (domain.Order, error)
	UpdateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) error
	GetByID(ctx context.Context, id string) (domain.Order, error)
	GetByTicket(ctx context.Context, ticket string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// Catalog supplies the priced menu in effect right now. Order totals
// freeze against this snapshot at creation time.
type Catalog interface {
	Snapshot(ctx context.Context) (map[string]menu.Item, error)
}

// VoucherRegistry lets a payment revert clear voucher usage recorded
// for the order. Optional; a nil registry skips the cleanup.
type VoucherRegistry interface {
	RemoveForOrder(ctx context.Context, orderID string) error
}
