// Package stream fans order mutations out to in-process subscribers.
// It carries three subscription categories: creations only, the full
// collection, and a single ticket. The HTTP layer bridges it onto SSE;
// in hosted mode the kafka consumer republishes remote mutations here
// so every instance's subscribers stay current.
package stream

import (
	"log/slog"
	"sync"

	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
)

type Bus struct {
	log *slog.Logger

	mu         sync.Mutex
	nextID     int
	created    map[int]func(domain.Order)
	collection map[int]func([]domain.Order)
	byTicket   map[string]map[int]func(domain.Order)
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		log:        log,
		created:    make(map[int]func(domain.Order)),
		collection: make(map[int]func([]domain.Order)),
		byTicket:   make(map[string]map[int]func(domain.Order)),
	}
}

// SubscribeCreated registers for creation events only; updates never
// reach these listeners. The returned func cancels the subscription.
func (b *Bus) SubscribeCreated(fn func(domain.Order)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.created[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.created, id)
	}
}

// SubscribeCollection registers for full-collection snapshots delivered
// on every mutation.
func (b *Bus) SubscribeCollection(fn func([]domain.Order)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.collection[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.collection, id)
	}
}

// SubscribeTicket registers for mutations of one exact ticket. The
// per-ticket registry entry is removed when its last listener cancels.
func (b *Bus) SubscribeTicket(ticket string, fn func(domain.Order)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	listeners, ok := b.byTicket[ticket]
	if !ok {
		listeners = make(map[int]func(domain.Order))
		b.byTicket[ticket] = listeners
	}
	listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if listeners, ok := b.byTicket[ticket]; ok {
			delete(listeners, id)
			if len(listeners) == 0 {
				delete(b.byTicket, ticket)
			}
		}
	}
}

// TicketListeners reports how many listeners watch a ticket; used by
// tests and the handler's stream diagnostics.
func (b *Bus) TicketListeners(ticket string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byTicket[ticket])
}

// PublishCreated notifies creation listeners.
func (b *Bus) PublishCreated(o domain.Order) {
	for _, fn := range b.snapshotCreated() {
		b.invoke(func() { fn(o.Clone()) })
	}
}

// PublishCollection pushes a full snapshot to collection listeners.
// Each listener receives its own cloned slice.
func (b *Bus) PublishCollection(orders []domain.Order) {
	for _, fn := range b.snapshotCollection() {
		cloned := make([]domain.Order, len(orders))
		for i, o := range orders {
			cloned[i] = o.Clone()
		}
		b.invoke(func() { fn(cloned) })
	}
}

// PublishTicket notifies only the listeners registered for the order's
// ticket.
func (b *Bus) PublishTicket(o domain.Order) {
	b.mu.Lock()
	fns := make([]func(domain.Order), 0, len(b.byTicket[o.Ticket]))
	for _, fn := range b.byTicket[o.Ticket] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		b.invoke(func() { fn(o.Clone()) })
	}
}

func (b *Bus) snapshotCreated() []func(domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fns := make([]func(domain.Order), 0, len(b.created))
	for _, fn := range b.created {
		fns = append(fns, fn)
	}
	return fns
}

func (b *Bus) snapshotCollection() []func([]domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fns := make([]func([]domain.Order), 0, len(b.collection))
	for _, fn := range b.collection {
		fns = append(fns, fn)
	}
	return fns
}

// invoke isolates listener panics: one failing subscriber must not
// starve the others or abort the mutation that triggered the publish.
func (b *Bus) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("stream listener panicked", "panic", r)
		}
	}()
	fn()
}
