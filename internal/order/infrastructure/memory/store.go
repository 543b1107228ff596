// Package memory is the demo-mode order store: the full record list
// and the last assigned call number live in memory and are snapshotted
// to a JSON file so a restart keeps the day's orders. It needs no
// external infrastructure at all.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
)

type Store struct {
	log  *slog.Logger
	path string

	mu       sync.Mutex
	orders   []domain.Order
	lastCall int
}

// NewStore rehydrates the snapshot at path. A missing, empty, or
// malformed snapshot falls back to a single seeded demo order so the
// dashboards are never blank on first run. An empty path keeps the
// store purely in-memory.
func NewStore(log *slog.Logger, path string) *Store {
	s := &Store{log: log, path: path}
	if !s.load() {
		s.seed()
	}
	return s
}

// CreateWithOutbox assigns the next call number and appends the record.
// The outbox arguments exist to satisfy the repository port: in demo
// mode the in-process bus is the delivery mechanism, so nothing beyond
// the record itself is stored.
func (s *Store) CreateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCall++
	o.CallNumber = s.lastCall
	o.Ticket = strings.ToUpper(o.Ticket)
	s.orders = append(s.orders, o.Clone())
	s.persistLocked()
	return o, nil
}

func (s *Store) UpdateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == o.ID {
			o.CallNumber = s.orders[i].CallNumber
			s.orders[i] = o.Clone()
			s.persistLocked()
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			return s.orders[i].Clone(), nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *Store) GetByTicket(ctx context.Context, ticket string) (domain.Order, error) {
	ticket = strings.ToUpper(ticket)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].Ticket == ticket {
			return s.orders[i].Clone(), nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *Store) List(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, len(s.orders))
	for i := range s.orders {
		out[i] = s.orders[i].Clone()
	}
	return out, nil
}

// snapshot is the persisted shape. Timestamps serialize as RFC 3339;
// a record without createdAt round-trips as an absent field.
type snapshot struct {
	Orders         []orderRecord `json:"orders"`
	LastCallNumber int           `json:"lastCallNumber"`
	SavedAt        time.Time     `json:"savedAt"`
}

type orderRecord struct {
	OrderID    string                   `json:"orderId"`
	Ticket     string                   `json:"ticket"`
	CallNumber int                      `json:"callNumber"`
	Items      map[string]int           `json:"items"`
	Total      int64                    `json:"total"`
	Payment    domain.PaymentStatus     `json:"payment"`
	Progress   domain.ProgressStatus    `json:"progress"`
	Plating    map[domain.Category]bool `json:"plating"`
	CreatedAt  *time.Time               `json:"createdAt,omitempty"`
	UpdatedAt  time.Time                `json:"updatedAt"`
	CreatedBy  string                   `json:"createdBy,omitempty"`
}

func toRecord(o domain.Order) orderRecord {
	rec := orderRecord{
		OrderID:    o.ID,
		Ticket:     o.Ticket,
		CallNumber: o.CallNumber,
		Items:      o.Items,
		Total:      o.Total,
		Payment:    o.Payment,
		Progress:   o.Progress,
		Plating:    o.Plating,
		UpdatedAt:  o.UpdatedAt,
		CreatedBy:  o.CreatedBy,
	}
	if !o.CreatedAt.IsZero() {
		t := o.CreatedAt
		rec.CreatedAt = &t
	}
	return rec
}

func (rec orderRecord) toOrder() domain.Order {
	o := domain.Order{
		ID:         rec.OrderID,
		Ticket:     strings.ToUpper(rec.Ticket),
		CallNumber: rec.CallNumber,
		Items:      rec.Items,
		Total:      rec.Total,
		Payment:    rec.Payment,
		Progress:   rec.Progress,
		Plating:    rec.Plating,
		UpdatedAt:  rec.UpdatedAt,
		CreatedBy:  rec.CreatedBy,
	}
	if rec.CreatedAt != nil {
		o.CreatedAt = *rec.CreatedAt
	}
	return o
}

func (s *Store) load() bool {
	if s.path == "" {
		return false
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("order snapshot read failed", "path", s.path, "err", err)
		}
		return false
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("order snapshot malformed, reseeding", "path", s.path, "err", err)
		return false
	}
	if len(snap.Orders) == 0 {
		return false
	}
	s.orders = make([]domain.Order, 0, len(snap.Orders))
	for _, rec := range snap.Orders {
		s.orders = append(s.orders, rec.toOrder())
	}
	s.lastCall = snap.LastCallNumber
	// Guard against a snapshot whose counter lags its records.
	for _, o := range s.orders {
		if o.CallNumber > s.lastCall {
			s.lastCall = o.CallNumber
		}
	}
	return true
}

// persistLocked snapshots the store. Durability is best-effort: a
// failed write is logged and never surfaces to the mutation that
// triggered it.
func (s *Store) persistLocked() {
	if s.path == "" {
		return
	}
	recs := make([]orderRecord, len(s.orders))
	for i, o := range s.orders {
		recs[i] = toRecord(o)
	}
	data, err := json.Marshal(snapshot{
		Orders:         recs,
		LastCallNumber: s.lastCall,
		SavedAt:        time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("order snapshot marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.log.Warn("order snapshot write failed", "path", s.path, "err", err)
	}
}

// seed installs one demo order so a fresh deployment has something to
// show on the staff dashboards.
func (s *Store) seed() {
	now := time.Now().UTC()
	s.lastCall = 1
	s.orders = []domain.Order{{
		ID:         domain.NewOrderID(now),
		Ticket:     domain.NewTicket(),
		CallNumber: 1,
		Items:      map[string]int{"plain": 1, "stew": 1},
		Total:      550,
		Payment:    domain.PaymentUnpaid,
		Progress:   domain.ProgressReceived,
		Plating: map[domain.Category]bool{
			domain.CategoryStew:       false,
			domain.CategoryFriedBread: false,
		},
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: "demo-seed",
	}}
	s.persistLocked()
}
