package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ymaeda2106/Stall-Order-System/internal/drawer/domain"
)

// SheetRepository persists one sheet per calendar day.
type SheetRepository interface {
	Get(ctx context.Context, date string) (domain.Sheet, error)
	Save(ctx context.Context, sheet domain.Sheet) error
}

// Service owns drawer sheets. Mutations serialize on one mutex because
// a stall has exactly one drawer; contention is not a concern, lost
// updates are. Listeners are invoked outside the lock.
type Service struct {
	log  *slog.Logger
	repo SheetRepository
	now  func() time.Time

	mu        sync.Mutex
	listeners map[string]map[int]func(domain.Sheet)
	nextID    int
}

func NewService(log *slog.Logger, repo SheetRepository) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		now:       time.Now,
		listeners: make(map[string]map[int]func(domain.Sheet)),
	}
}

// Get returns the sheet for the day, an empty sheet when none was
// saved yet.
func (s *Service) Get(ctx context.Context, date string) (domain.Sheet, error) {
	date, err := domain.ParseDateKey(date)
	if err != nil {
		return domain.Sheet{}, err
	}
	sheet, err := s.repo.Get(ctx, date)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Sheet{Date: date, Counts: domain.Counts{}}, nil
	}
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("load drawer sheet: %w", err)
	}
	return sheet, nil
}

// SaveCounts replaces the day's denomination counts.
func (s *Service) SaveCounts(ctx context.Context, date string, counts domain.Counts) (domain.Sheet, error) {
	if err := counts.Validate(); err != nil {
		return domain.Sheet{}, err
	}
	return s.mutate(ctx, date, func(sheet *domain.Sheet) bool {
		sheet.Counts = counts
		return true
	})
}

// AddVoucher records one redeemed meal voucher for the day.
func (s *Service) AddVoucher(ctx context.Context, date, orderID string, shift int) (domain.Sheet, error) {
	if orderID == "" {
		return domain.Sheet{}, fmt.Errorf("%w: missing order id", domain.ErrBadVoucher)
	}
	if shift < 1 {
		return domain.Sheet{}, fmt.Errorf("%w: missing shift", domain.ErrBadVoucher)
	}
	return s.mutate(ctx, date, func(sheet *domain.Sheet) bool {
		sheet.AddVoucher(domain.VoucherUse{OrderID: orderID, Shift: shift, UsedAt: s.now()})
		return true
	})
}

// RemoveVoucher drops every redemption for the order on the given day.
func (s *Service) RemoveVoucher(ctx context.Context, date, orderID string) (domain.Sheet, error) {
	return s.mutate(ctx, date, func(sheet *domain.Sheet) bool {
		return sheet.RemoveVouchersForOrder(orderID) > 0
	})
}

// RemoveForOrder clears today's voucher usage for an order. It backs
// the payment-revert flow: an order flipped back to unpaid must not
// keep counting against the voucher tally.
func (s *Service) RemoveForOrder(ctx context.Context, orderID string) error {
	_, err := s.RemoveVoucher(ctx, domain.DateKey(s.now()), orderID)
	return err
}

// mutate loads the sheet, applies fn, and persists when fn reports a
// change. Listeners fire after the lock is released.
func (s *Service) mutate(ctx context.Context, date string, fn func(*domain.Sheet) bool) (domain.Sheet, error) {
	s.mu.Lock()
	sheet, err := s.Get(ctx, date)
	if err != nil {
		s.mu.Unlock()
		return domain.Sheet{}, err
	}
	if !fn(&sheet) {
		s.mu.Unlock()
		return sheet, nil
	}
	sheet.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, sheet); err != nil {
		s.mu.Unlock()
		return domain.Sheet{}, fmt.Errorf("save drawer sheet: %w", err)
	}
	listeners := make([]func(domain.Sheet), 0, len(s.listeners[sheet.Date]))
	for _, l := range s.listeners[sheet.Date] {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		s.invoke(l, sheet)
	}
	return sheet, nil
}

// Watch registers a change listener for one day's sheet. The callback
// fires after every persisted mutation; cancel with the returned func.
func (s *Service) Watch(date string, fn func(domain.Sheet)) (func(), error) {
	date, err := domain.ParseDateKey(date)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.listeners[date] == nil {
		s.listeners[date] = make(map[int]func(domain.Sheet))
	}
	s.listeners[date][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[date], id)
		if len(s.listeners[date]) == 0 {
			delete(s.listeners, date)
		}
	}, nil
}

func (s *Service) invoke(fn func(domain.Sheet), sheet domain.Sheet) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("drawer listener panicked", "panic", r)
		}
	}()
	fn(sheet)
}
