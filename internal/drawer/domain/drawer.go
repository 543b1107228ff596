package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when no sheet exists for the day.
	ErrNotFound = errors.New("drawer sheet not found")
	// ErrInvalidCount is returned for negative denomination counts.
	ErrInvalidCount = errors.New("invalid denomination count")
	// ErrUnknownDenomination is returned for a count keyed by a value
	// outside the JPY denomination set.
	ErrUnknownDenomination = errors.New("unknown denomination")
	// ErrBadDate is returned for day keys not in YYYY-MM-DD form.
	ErrBadDate = errors.New("invalid date")
	// ErrBadVoucher is returned for voucher records missing an order
	// reference or shift.
	ErrBadVoucher = errors.New("invalid voucher")
)

// Denominations lists JPY cash values, largest first. The 2000 yen
// bill is omitted; nobody brings one to a school festival, and the
// drawer tray has no slot for it.
var Denominations = []int64{10000, 5000, 1000, 500, 100, 50, 10, 5, 1}

// Counts maps denomination value to how many of it are in the tray.
type Counts map[int64]int

func (c Counts) Validate() error {
	known := make(map[int64]bool, len(Denominations))
	for _, d := range Denominations {
		known[d] = true
	}
	for value, n := range c {
		if !known[value] {
			return fmt.Errorf("%w: %d", ErrUnknownDenomination, value)
		}
		if n < 0 {
			return fmt.Errorf("%w: %d of %d", ErrInvalidCount, n, value)
		}
	}
	return nil
}

// VoucherUse records one meal voucher redeemed against an order, in
// redemption sequence. Shift is which staff rotation took it; the count
// carried into a shift is the running total of everything before it.
type VoucherUse struct {
	OrderID string    `json:"orderId"`
	Shift   int       `json:"shift"`
	UsedAt  time.Time `json:"usedAt"`
}

// Sheet is one calendar day's drawer reconciliation.
type Sheet struct {
	Date      string       `json:"date"` // YYYY-MM-DD
	Counts    Counts       `json:"counts"`
	Vouchers  []VoucherUse `json:"vouchers"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Line is the derived per-denomination row shown on the sheet.
type Line struct {
	Value    int64 `json:"value"`
	Count    int   `json:"count"`
	Subtotal int64 `json:"subtotal"`
}

// Breakdown is everything derived from the raw counts.
type Breakdown struct {
	Lines      []Line `json:"lines"`
	BillsTotal int64  `json:"billsTotal"`
	CoinsTotal int64  `json:"coinsTotal"`
	Total      int64  `json:"total"`
}

// Breakdown computes subtotals in fixed denomination order so the
// rendered sheet lines up with the physical tray. Bills are 1000 and
// above.
func (s Sheet) Breakdown() Breakdown {
	var b Breakdown
	for _, value := range Denominations {
		n := s.Counts[value]
		sub := value * int64(n)
		b.Lines = append(b.Lines, Line{Value: value, Count: n, Subtotal: sub})
		if value >= 1000 {
			b.BillsTotal += sub
		} else {
			b.CoinsTotal += sub
		}
		b.Total += sub
	}
	return b
}

// ShiftTotals maps shift number to vouchers redeemed during it.
func (s Sheet) ShiftTotals() map[int]int {
	totals := make(map[int]int)
	for _, v := range s.Vouchers {
		totals[v.Shift]++
	}
	return totals
}

// CarriedInto is the voucher count a shift inherits: everything
// redeemed in earlier shifts.
func (s Sheet) CarriedInto(shift int) int {
	n := 0
	for _, v := range s.Vouchers {
		if v.Shift < shift {
			n++
		}
	}
	return n
}

// AddVoucher appends a redemption, keeping the slice in UsedAt order.
func (s *Sheet) AddVoucher(use VoucherUse) {
	i := len(s.Vouchers)
	for i > 0 && s.Vouchers[i-1].UsedAt.After(use.UsedAt) {
		i--
	}
	s.Vouchers = append(s.Vouchers, VoucherUse{})
	copy(s.Vouchers[i+1:], s.Vouchers[i:])
	s.Vouchers[i] = use
}

// RemoveVouchersForOrder drops every redemption recorded against the
// order, returning how many were removed.
func (s *Sheet) RemoveVouchersForOrder(orderID string) int {
	kept := s.Vouchers[:0]
	removed := 0
	for _, v := range s.Vouchers {
		if v.OrderID == orderID {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	s.Vouchers = kept
	return removed
}

// DateKey normalizes a day to the sheet key format.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDateKey validates a YYYY-MM-DD key.
func ParseDateKey(s string) (string, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadDate, s)
	}
	return DateKey(t), nil
}
