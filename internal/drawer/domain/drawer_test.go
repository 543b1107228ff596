package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounts_Validate(t *testing.T) {
	require.NoError(t, Counts{10000: 2, 1: 30}.Validate())

	err := Counts{2000: 1}.Validate()
	assert.ErrorIs(t, err, ErrUnknownDenomination)

	err = Counts{500: -1}.Validate()
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestSheet_Breakdown(t *testing.T) {
	s := Sheet{Counts: Counts{10000: 1, 1000: 3, 500: 4, 10: 7}}
	b := s.Breakdown()

	require.Len(t, b.Lines, len(Denominations))
	assert.Equal(t, int64(10000), b.Lines[0].Value)
	assert.Equal(t, int64(10000), b.Lines[0].Subtotal)

	assert.Equal(t, int64(13000), b.BillsTotal)
	assert.Equal(t, int64(2070), b.CoinsTotal)
	assert.Equal(t, int64(15070), b.Total)
}

func TestSheet_Breakdown_EmptyCounts(t *testing.T) {
	b := Sheet{}.Breakdown()
	require.Len(t, b.Lines, len(Denominations))
	assert.Zero(t, b.Total)
}

func TestSheet_Vouchers(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	var s Sheet
	s.AddVoucher(VoucherUse{OrderID: "b", Shift: 2, UsedAt: base.Add(time.Hour)})
	s.AddVoucher(VoucherUse{OrderID: "a", Shift: 1, UsedAt: base})
	s.AddVoucher(VoucherUse{OrderID: "c", Shift: 2, UsedAt: base.Add(2 * time.Hour)})

	// Insertion keeps redemption order regardless of call order.
	assert.Equal(t, "a", s.Vouchers[0].OrderID)
	assert.Equal(t, "c", s.Vouchers[2].OrderID)

	assert.Equal(t, map[int]int{1: 1, 2: 2}, s.ShiftTotals())
	assert.Equal(t, 0, s.CarriedInto(1))
	assert.Equal(t, 1, s.CarriedInto(2))
	assert.Equal(t, 3, s.CarriedInto(3))
}

func TestSheet_RemoveVouchersForOrder(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	var s Sheet
	s.AddVoucher(VoucherUse{OrderID: "a", Shift: 1, UsedAt: base})
	s.AddVoucher(VoucherUse{OrderID: "a", Shift: 1, UsedAt: base.Add(time.Minute)})
	s.AddVoucher(VoucherUse{OrderID: "b", Shift: 1, UsedAt: base.Add(2 * time.Minute)})

	assert.Equal(t, 2, s.RemoveVouchersForOrder("a"))
	require.Len(t, s.Vouchers, 1)
	assert.Equal(t, "b", s.Vouchers[0].OrderID)

	assert.Equal(t, 0, s.RemoveVouchersForOrder("missing"))
}

func TestDateKey(t *testing.T) {
	key, err := ParseDateKey("2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29", key)

	_, err = ParseDateKey("29/08/2026")
	assert.Error(t, err)
}
