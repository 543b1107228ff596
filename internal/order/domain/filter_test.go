package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h int) time.Time {
	return time.Date(2026, 8, 29, h, 0, 0, 0, time.UTC)
}

func TestFilterOrders_HalfOpenWindow(t *testing.T) {
	orders := []Order{
		{ID: "a", CreatedAt: at(9)},
		{ID: "b", CreatedAt: at(10)},
		{ID: "c", CreatedAt: at(11)},
		{ID: "d", CreatedAt: at(12)},
	}
	start, end := at(10), at(12)

	got := FilterOrders(orders, Window{Start: &start, End: &end})

	require.Len(t, got, 2)
	// Record exactly at start is included, exactly at end excluded.
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestFilterOrders_ExcludesUndatedWhenBounded(t *testing.T) {
	orders := []Order{
		{ID: "dated", CreatedAt: at(10)},
		{ID: "legacy", UpdatedAt: at(10)}, // falls back to UpdatedAt, still usable
		{ID: "undated"},
	}
	start := at(9)

	got := FilterOrders(orders, Window{Start: &start})
	require.Len(t, got, 2)

	// Without bounds the undated record is included.
	got = FilterOrders(orders, Window{})
	assert.Len(t, got, 3)
}

func TestFilterOrders_SortsNewestFirstThenLimits(t *testing.T) {
	orders := []Order{
		{ID: "old", CreatedAt: at(9)},
		{ID: "new", CreatedAt: at(12)},
		{ID: "mid", CreatedAt: at(10)},
	}

	got := FilterOrders(orders, Window{Limit: 2})

	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
}

func TestFilterOrders_DoesNotMutateInput(t *testing.T) {
	orders := []Order{
		{ID: "a", CreatedAt: at(9)},
		{ID: "b", CreatedAt: at(10)},
	}
	_ = FilterOrders(orders, Window{})
	assert.Equal(t, "a", orders[0].ID)
	assert.Equal(t, "b", orders[1].ID)
}
