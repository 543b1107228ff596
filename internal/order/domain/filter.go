package domain

import (
	"sort"
	"time"
)

// Window bounds a listing. Start is inclusive, End exclusive; either
// may be nil for an open side. Limit, when positive, truncates the
// result after sorting.
type Window struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

func (w Window) bounded() bool { return w.Start != nil || w.End != nil }

// FilterOrders returns a new, newest-first slice of the orders matching
// the window. Records with no usable timestamp are excluded whenever a
// time bound is requested, and included otherwise. The input and its
// records are never mutated.
func FilterOrders(orders []Order, w Window) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		ts := o.EffectiveTime()
		if w.bounded() && ts.IsZero() {
			continue
		}
		if w.Start != nil && ts.Before(*w.Start) {
			continue
		}
		if w.End != nil && !ts.Before(*w.End) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveTime().After(out[j].EffectiveTime())
	})
	if w.Limit > 0 && len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out
}
