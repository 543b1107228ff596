package application

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	menu "github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/stream"
)

// Service owns the order lifecycle: creation with snapshot pricing,
// staff status updates, lookups, windowed listings, reports, and the
// subscription surface. Mutations persist through the repository and
// then fan out on the stream bus.
type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	catalog  Catalog
	bus      *stream.Bus
	vouchers VoucherRegistry
}

func NewService(log *slog.Logger, repo OrderRepository, catalog Catalog, bus *stream.Bus, vouchers VoucherRegistry) *Service {
	return &Service{log: log, repo: repo, catalog: catalog, bus: bus, vouchers: vouchers}
}

// Create validates the cart, prices it against the catalog in effect
// right now, and stores the new order with progress=received and
// payment=unpaid. The total is never recomputed afterwards: historical
// orders are invoices, not live-priced carts.
func (s *Service) Create(ctx context.Context, items map[string]int, createdBy string) (domain.Order, error) {
	lines := make(map[string]int, len(items))
	for key, qty := range items {
		if qty < 0 {
			return domain.Order{}, fmt.Errorf("%w: negative quantity for %q", domain.ErrEmptyOrder, key)
		}
		if qty == 0 {
			continue
		}
		lines[key] = qty
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}

	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("price order: %w", err)
	}
	var total int64
	for key, qty := range lines {
		item, ok := catalog[key]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrUnknownItem, key)
		}
		total += int64(qty) * item.Price
	}

	now := time.Now().UTC()
	o := domain.Order{
		ID:        domain.NewOrderID(now),
		Ticket:    domain.NewTicket(),
		Items:     lines,
		Total:     total,
		Payment:   domain.PaymentUnpaid,
		Progress:  domain.ProgressReceived,
		Plating:   domain.EnsurePlating(lines, nil, categoryOf(catalog)),
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}

	payload, err := json.Marshal(domain.OrderCreated{
		OrderID: o.ID,
		Ticket:  o.Ticket,
		Total:   o.Total,
		Items:   o.Items,
	})
	if err != nil {
		return domain.Order{}, err
	}
	stored, err := s.repo.CreateWithOutbox(ctx, o, domain.EventOrderCreated, payload)
	if err != nil {
		return domain.Order{}, fmt.Errorf("store order: %w", err)
	}

	s.publish(ctx, stored, true)
	return stored, nil
}

// Get fetches by order ID. ErrNotFound when absent.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.GetByID(ctx, id)
}

// Lookup fetches by ticket, tolerating pasted URLs and mixed case.
func (s *Service) Lookup(ctx context.Context, raw string) (domain.Order, error) {
	ticket := domain.ExtractTicketFromInput(raw)
	if ticket == "" {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.repo.GetByTicket(ctx, ticket)
}

// StatusUpdate carries the fields a staff action may overwrite. Nil
// fields are left untouched.
type StatusUpdate struct {
	Payment  *domain.PaymentStatus
	Progress *domain.ProgressStatus
}

// UpdateStatus locates the order by ID or ticket (either reference is
// enough) and applies the provided fields. Reverting payment to unpaid
// also clears any voucher usage recorded for the order.
func (s *Service) UpdateStatus(ctx context.Context, orderID, ticket string, upd StatusUpdate) (domain.Order, error) {
	o, err := s.findByRef(ctx, orderID, ticket)
	if err != nil {
		return domain.Order{}, err
	}

	revertedToUnpaid := false
	if upd.Payment != nil {
		if *upd.Payment == domain.PaymentUnpaid && o.Payment != domain.PaymentUnpaid {
			revertedToUnpaid = true
		}
		if err := o.SetPayment(*upd.Payment); err != nil {
			return domain.Order{}, err
		}
	}
	if upd.Progress != nil {
		if err := o.SetProgress(*upd.Progress); err != nil {
			return domain.Order{}, err
		}
	}
	o.UpdatedAt = time.Now().UTC()

	if err := s.saveUpdate(ctx, o); err != nil {
		return domain.Order{}, err
	}

	if revertedToUnpaid && s.vouchers != nil {
		if err := s.vouchers.RemoveForOrder(ctx, o.ID); err != nil {
			s.log.Warn("voucher cleanup failed", "order_id", o.ID, "err", err)
		}
	}

	s.publish(ctx, o, false)
	return o, nil
}

// UpdatePlating merges only the supplied category flags. Supplying
// nothing is a no-op: no write, no events.
func (s *Service) UpdatePlating(ctx context.Context, orderID, ticket string, partial map[domain.Category]bool) (domain.Order, error) {
	o, err := s.findByRef(ctx, orderID, ticket)
	if err != nil {
		return domain.Order{}, err
	}

	merged, changed := domain.MergePlating(o.Plating, partial)
	if !changed {
		return o, nil
	}
	o.Plating = merged
	o.UpdatedAt = time.Now().UTC()

	if err := s.saveUpdate(ctx, o); err != nil {
		return domain.Order{}, err
	}
	s.publish(ctx, o, false)
	return o, nil
}

// List returns the windowed, newest-first snapshot.
func (s *Service) List(ctx context.Context, w domain.Window) ([]domain.Order, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.FilterOrders(orders, w), nil
}

// HourlySales builds the per-hour sales report from the full history.
func (s *Service) HourlySales(ctx context.Context, origin time.Time, hours int) ([]domain.HourlyBucket, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return domain.HourlySales(orders, origin, hours), nil
}

// ActiveSummary aggregates the in-flight orders.
func (s *Service) ActiveSummary(ctx context.Context) (domain.ActiveSummary, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return domain.ActiveSummary{}, err
	}
	return domain.SummarizeActive(orders), nil
}

// ExportCSV writes the full order history, newest first. Item labels
// come from the current catalog; encoding/csv applies RFC 4180 quoting
// so labels containing commas survive.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	orders, err := s.List(ctx, domain.Window{})
	if err != nil {
		return err
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"orderId", "ticket", "callNumber", "total", "payment", "progress", "items", "createdAt", "updatedAt"}); err != nil {
		return err
	}
	for _, o := range orders {
		createdAt := ""
		if !o.CreatedAt.IsZero() {
			createdAt = o.CreatedAt.Format(time.RFC3339)
		}
		record := []string{
			o.ID,
			o.Ticket,
			strconv.Itoa(o.CallNumber),
			strconv.FormatInt(o.Total, 10),
			string(o.Payment),
			string(o.Progress),
			formatItems(o.Items, catalog),
			createdAt,
			o.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WatchCreated subscribes to creation events only.
func (s *Service) WatchCreated(fn func(domain.Order)) func() {
	return s.bus.SubscribeCreated(fn)
}

// WatchOrders delivers the current windowed snapshot immediately, then
// a fresh one on every mutation. The window is applied per subscriber.
func (s *Service) WatchOrders(ctx context.Context, w domain.Window, fn func([]domain.Order)) (func(), error) {
	snapshot, err := s.List(ctx, w)
	if err != nil {
		return nil, err
	}
	cancel := s.bus.SubscribeCollection(func(orders []domain.Order) {
		fn(domain.FilterOrders(orders, w))
	})
	fn(snapshot)
	return cancel, nil
}

// WatchTicket delivers the current record for the ticket immediately
// (found=false when absent), then every mutation of that exact ticket.
func (s *Service) WatchTicket(ctx context.Context, raw string, fn func(o domain.Order, found bool)) (func(), error) {
	ticket := domain.ExtractTicketFromInput(raw)
	o, err := s.repo.GetByTicket(ctx, ticket)
	found := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	cancel := s.bus.SubscribeTicket(ticket, func(o domain.Order) {
		fn(o, true)
	})
	fn(o, found)
	return cancel, nil
}

// Republish reloads an order and replays its events onto the local
// bus. The kafka consumer calls this for mutations that originated on
// other instances.
func (s *Service) Republish(ctx context.Context, orderID string, created bool) error {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	s.publish(ctx, o, created)
	return nil
}

func (s *Service) findByRef(ctx context.Context, orderID, ticket string) (domain.Order, error) {
	if orderID != "" {
		o, err := s.repo.GetByID(ctx, orderID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, err
		}
	}
	if ticket != "" {
		return s.repo.GetByTicket(ctx, domain.ExtractTicketFromInput(ticket))
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *Service) saveUpdate(ctx context.Context, o domain.Order) error {
	payload, err := json.Marshal(domain.OrderUpdated{
		OrderID:  o.ID,
		Ticket:   o.Ticket,
		Payment:  o.Payment,
		Progress: o.Progress,
	})
	if err != nil {
		return err
	}
	if err := s.repo.UpdateWithOutbox(ctx, o, domain.EventOrderUpdated, payload); err != nil {
		return fmt.Errorf("store order update: %w", err)
	}
	return nil
}

// publish fans the mutation out locally: ticket listeners, creation
// listeners when new, and a fresh collection snapshot. A listing
// failure downgrades to a log line; the mutation itself already
// succeeded.
func (s *Service) publish(ctx context.Context, o domain.Order, created bool) {
	s.bus.PublishTicket(o)
	if created {
		s.bus.PublishCreated(o)
	}
	orders, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn("collection snapshot failed after mutation", "order_id", o.ID, "err", err)
		return
	}
	s.bus.PublishCollection(orders)
}

func categoryOf(catalog map[string]menu.Item) func(string) (domain.Category, bool) {
	return func(key string) (domain.Category, bool) {
		item, ok := catalog[key]
		if !ok {
			return "", false
		}
		return domain.Category(item.Category), true
	}
}

func formatItems(items map[string]int, catalog map[string]menu.Item) string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		label := key
		if item, ok := catalog[key]; ok {
			label = item.Label
		}
		parts = append(parts, fmt.Sprintf("%s x%d", label, items[key]))
	}
	return strings.Join(parts, "; ")
}
