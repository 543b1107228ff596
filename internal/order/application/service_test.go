package application_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	menudomain "github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/infrastructure/memory"
	"github.com/ymaeda2106/Stall-Order-System/internal/order/stream"
)

// staticCatalog serves a fixed price list, the moral equivalent of the
// resolved menu at one instant.
type staticCatalog map[string]menudomain.Item

func (c staticCatalog) Snapshot(context.Context) (map[string]menudomain.Item, error) {
	return c, nil
}

func testCatalog() staticCatalog {
	return staticCatalog{
		"plain": {Key: "plain", Label: "Fried Bread (Sugar)", Price: 250, Category: "friedbread"},
		"cocoa": {Key: "cocoa", Label: "Fried Bread (Cocoa)", Price: 250, Category: "friedbread"},
		"stew":  {Key: "stew", Label: "Pork Miso Stew", Price: 300, Category: "stew"},
	}
}

type fakeVouchers struct {
	removed []string
}

func (f *fakeVouchers) RemoveForOrder(_ context.Context, orderID string) error {
	f.removed = append(f.removed, orderID)
	return nil
}

func newTestService(t *testing.T) (*application.Service, *fakeVouchers) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	vouchers := &fakeVouchers{}
	svc := application.NewService(log, memory.NewStore(log, ""), testCatalog(), stream.New(log), vouchers)
	return svc, vouchers
}

func TestCreate_PricesFromCatalogSnapshot(t *testing.T) {
	svc, _ := newTestService(t)

	o, err := svc.Create(t.Context(), map[string]int{"plain": 2, "cocoa": 1}, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, int64(750), o.Total)
	assert.Equal(t, domain.ProgressReceived, o.Progress)
	assert.Equal(t, domain.PaymentUnpaid, o.Payment)
	assert.Len(t, o.Ticket, domain.TicketLength)
	assert.True(t, strings.HasPrefix(o.ID, "ORD-"))
	// No stew ordered, so the stew lane starts ready.
	assert.True(t, o.Plating[domain.CategoryStew])
	assert.False(t, o.Plating[domain.CategoryFriedBread])
}

func TestCreate_RejectsEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(t.Context(), nil, "")
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = svc.Create(t.Context(), map[string]int{"plain": 0}, "")
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = svc.Create(t.Context(), map[string]int{"plain": -1}, "")
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)
}

func TestCreate_RejectsUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(t.Context(), map[string]int{"sushi": 1}, "")
	assert.ErrorIs(t, err, domain.ErrUnknownItem)
}

func TestCreate_DropsZeroQuantityLines(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.Create(t.Context(), map[string]int{"plain": 2, "stew": 0}, "")
	require.NoError(t, err)
	assert.NotContains(t, o.Items, "stew")
	assert.Equal(t, int64(500), o.Total)
}

func TestCreate_CallNumbersStrictlyIncreasing(t *testing.T) {
	svc, _ := newTestService(t)
	seen := map[int]bool{}
	last := 0
	for i := 0; i < 10; i++ {
		o, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
		require.NoError(t, err)
		assert.Greater(t, o.CallNumber, last)
		assert.False(t, seen[o.CallNumber])
		seen[o.CallNumber] = true
		last = o.CallNumber
	}
}

func TestLookup_NormalizesAndReportsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)

	got, err := svc.Lookup(t.Context(), "https://stall.example.com/order/complete/"+strings.ToLower(o.Ticket))
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = svc.Lookup(t.Context(), "QQQQQQQQQQQQQQQQ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Lookup(t.Context(), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func payp(p domain.PaymentStatus) *domain.PaymentStatus    { return &p }
func progp(p domain.ProgressStatus) *domain.ProgressStatus { return &p }

func TestUpdateStatus_DualLookupAndRevert(t *testing.T) {
	svc, vouchers := newTestService(t)
	o, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)

	// Update by ticket only; the order ID is deliberately wrong.
	upd, err := svc.UpdateStatus(t.Context(), "", o.Ticket, application.StatusUpdate{Payment: payp(domain.PaymentPaid)})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, upd.Payment)

	// Revert to unpaid clears recorded voucher usage.
	upd, err = svc.UpdateStatus(t.Context(), o.ID, "", application.StatusUpdate{Payment: payp(domain.PaymentUnpaid)})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, upd.Payment)
	assert.Equal(t, []string{o.ID}, vouchers.removed)

	_, err = svc.UpdateStatus(t.Context(), "ORD-missing", "", application.StatusUpdate{Payment: payp(domain.PaymentPaid)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_RejectsBadValues(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)

	bad := domain.PaymentStatus("refunded")
	_, err = svc.UpdateStatus(t.Context(), o.ID, "", application.StatusUpdate{Payment: &bad})
	assert.Error(t, err)

	got, err := svc.Get(t.Context(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentUnpaid, got.Payment)
}

func TestUpdatePlating_MergeAndNoop(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.Create(t.Context(), map[string]int{"plain": 1, "stew": 1}, "")
	require.NoError(t, err)

	upd, err := svc.UpdatePlating(t.Context(), o.ID, "", map[domain.Category]bool{domain.CategoryStew: true})
	require.NoError(t, err)
	assert.True(t, upd.Plating[domain.CategoryStew])
	assert.False(t, upd.Plating[domain.CategoryFriedBread])

	// Empty partial map: no write, unchanged record returned.
	before := upd.UpdatedAt
	upd, err = svc.UpdatePlating(t.Context(), o.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, before, upd.UpdatedAt)
}

func TestWatchOrders_ImmediateSnapshotThenMutations(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)

	var deliveries [][]domain.Order
	cancel, err := svc.WatchOrders(t.Context(), domain.Window{}, func(orders []domain.Order) {
		deliveries = append(deliveries, orders)
	})
	require.NoError(t, err)
	defer cancel()

	require.Len(t, deliveries, 1, "snapshot delivered at subscribe time")
	baseline := len(deliveries[0])

	_, err = svc.Create(t.Context(), map[string]int{"stew": 1}, "")
	require.NoError(t, err)

	require.Len(t, deliveries, 2)
	assert.Len(t, deliveries[1], baseline+1)
}

func TestWatchTicket_OnlyThatTicket(t *testing.T) {
	svc, _ := newTestService(t)
	a, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)
	b, err := svc.Create(t.Context(), map[string]int{"stew": 1}, "")
	require.NoError(t, err)

	var seen []domain.PaymentStatus
	cancel, err := svc.WatchTicket(t.Context(), a.Ticket, func(o domain.Order, found bool) {
		require.True(t, found)
		seen = append(seen, o.Payment)
	})
	require.NoError(t, err)
	defer cancel()

	_, err = svc.UpdateStatus(t.Context(), b.ID, "", application.StatusUpdate{Payment: payp(domain.PaymentPaid)})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(t.Context(), a.ID, "", application.StatusUpdate{Payment: payp(domain.PaymentPaid)})
	require.NoError(t, err)

	assert.Equal(t, []domain.PaymentStatus{domain.PaymentUnpaid, domain.PaymentPaid}, seen)
}

func TestWatchTicket_AbsentTicket(t *testing.T) {
	svc, _ := newTestService(t)
	var calls int
	cancel, err := svc.WatchTicket(t.Context(), "QQQQQQQQQQQQQQQQ", func(o domain.Order, found bool) {
		calls++
		assert.False(t, found)
	})
	require.NoError(t, err)
	defer cancel()
	assert.Equal(t, 1, calls)
}

func TestWatchCreated_FiresOnlyOnCreation(t *testing.T) {
	svc, _ := newTestService(t)
	var created []string
	cancel := svc.WatchCreated(func(o domain.Order) { created = append(created, o.ID) })
	defer cancel()

	o, err := svc.Create(t.Context(), map[string]int{"plain": 1}, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(t.Context(), o.ID, "", application.StatusUpdate{Progress: progp(domain.ProgressReady)})
	require.NoError(t, err)

	assert.Equal(t, []string{o.ID}, created)
}

func TestExportCSV(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	catalog := testCatalog()
	// A label with a comma must come out quoted.
	catalog["plain"] = menudomain.Item{Key: "plain", Label: "Fried Bread, sugar", Price: 250, Category: "friedbread"}
	svc := application.NewService(log, memory.NewStore(log, ""), catalog, stream.New(log), nil)

	_, err := svc.Create(t.Context(), map[string]int{"plain": 2}, "")
	require.NoError(t, err)
	_, err = svc.Create(t.Context(), map[string]int{"stew": 1}, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(t.Context(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// Header plus the seeded demo order plus the two created above.
	require.Len(t, lines, 4)
	assert.Equal(t, "orderId,ticket,callNumber,total,payment,progress,items,createdAt,updatedAt", lines[0])
	assert.Contains(t, buf.String(), `"Fried Bread, sugar x2"`)
}

func TestReports_ThroughService(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(t.Context(), map[string]int{"plain": 2}, "")
	require.NoError(t, err)

	sum, err := svc.ActiveSummary(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sum.ByProgress[domain.ProgressReceived], 1)

	origin := time.Now().UTC().Truncate(time.Hour)
	buckets, err := svc.HourlySales(t.Context(), origin, 1)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.GreaterOrEqual(t, buckets[0].Items["plain"], 2)
}
