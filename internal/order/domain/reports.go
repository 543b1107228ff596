package domain

import "time"

// HourlyBucket is one hour of sales starting at Start.
type HourlyBucket struct {
	Start  time.Time      `json:"start"`
	Orders int            `json:"orders"`
	Items  map[string]int `json:"items"`
}

// HourlySales partitions the span [origin, origin+hours*1h) into
// one-hour buckets and tallies per-item quantities plus one order count
// per order. Orders outside the span, or with no usable timestamp, are
// dropped.
func HourlySales(orders []Order, origin time.Time, hours int) []HourlyBucket {
	if hours <= 0 {
		return nil
	}
	buckets := make([]HourlyBucket, hours)
	for i := range buckets {
		buckets[i] = HourlyBucket{
			Start: origin.Add(time.Duration(i) * time.Hour),
			Items: make(map[string]int),
		}
	}
	for _, o := range orders {
		ts := o.EffectiveTime()
		if ts.IsZero() || ts.Before(origin) {
			continue
		}
		idx := int(ts.Sub(origin) / time.Hour)
		if idx >= hours {
			continue
		}
		buckets[idx].Orders++
		for key, qty := range o.Items {
			buckets[idx].Items[key] += qty
		}
	}
	return buckets
}

// ActiveSummary aggregates the orders still being worked plus a count
// of orders per progress state (closed included, for display).
type ActiveSummary struct {
	Items      map[string]int         `json:"items"`
	ByProgress map[ProgressStatus]int `json:"byProgress"`
}

// SummarizeActive sums per-item quantities across every order not yet
// closed and tallies order counts for all three progress states.
func SummarizeActive(orders []Order) ActiveSummary {
	sum := ActiveSummary{
		Items: make(map[string]int),
		ByProgress: map[ProgressStatus]int{
			ProgressReceived: 0,
			ProgressReady:    0,
			ProgressClosed:   0,
		},
	}
	for _, o := range orders {
		sum.ByProgress[o.Progress]++
		if o.Progress == ProgressClosed {
			continue
		}
		for key, qty := range o.Items {
			sum.Items[key] += qty
		}
	}
	return sum
}
