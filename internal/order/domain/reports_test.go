package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourlySales(t *testing.T) {
	origin := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	orders := []Order{
		{Items: map[string]int{"plain": 2, "cocoa": 1}, CreatedAt: origin.Add(5 * time.Minute)},
		{Items: map[string]int{"stew": 1}, CreatedAt: origin.Add(59 * time.Minute)},
		{Items: map[string]int{"plain": 1}, CreatedAt: origin.Add(90 * time.Minute)},
		{Items: map[string]int{"plain": 5}, CreatedAt: origin.Add(-time.Minute)},     // before origin: dropped
		{Items: map[string]int{"plain": 5}, CreatedAt: origin.Add(3 * time.Hour)},    // beyond range: dropped
		{Items: map[string]int{"plain": 5}},                                          // no timestamp: dropped
	}

	buckets := HourlySales(orders, origin, 2)
	require.Len(t, buckets, 2)

	assert.Equal(t, origin, buckets[0].Start)
	// One order counts once even with multiple line items.
	assert.Equal(t, 2, buckets[0].Orders)
	assert.Equal(t, 2, buckets[0].Items["plain"])
	assert.Equal(t, 1, buckets[0].Items["cocoa"])
	assert.Equal(t, 1, buckets[0].Items["stew"])

	assert.Equal(t, 1, buckets[1].Orders)
	assert.Equal(t, 1, buckets[1].Items["plain"])
}

func TestHourlySales_NoBuckets(t *testing.T) {
	assert.Nil(t, HourlySales(nil, time.Now(), 0))
}

func TestSummarizeActive(t *testing.T) {
	orders := []Order{
		{Progress: ProgressReceived, Items: map[string]int{"plain": 2}},
		{Progress: ProgressReady, Items: map[string]int{"plain": 1, "stew": 1}},
		{Progress: ProgressClosed, Items: map[string]int{"cocoa": 4}},
	}

	sum := SummarizeActive(orders)

	assert.Equal(t, 3, sum.Items["plain"])
	assert.Equal(t, 1, sum.Items["stew"])
	// Closed orders contribute to the progress tally but not the items.
	assert.Zero(t, sum.Items["cocoa"])
	assert.Equal(t, 1, sum.ByProgress[ProgressReceived])
	assert.Equal(t, 1, sum.ByProgress[ProgressReady])
	assert.Equal(t, 1, sum.ByProgress[ProgressClosed])
}
