package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process Marker used in demo mode. Expired
// entries are swept lazily on each call.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.seen {
		if now.After(exp) {
			delete(s.seen, k)
		}
	}

	if _, ok := s.seen[key]; ok {
		return true, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return false, nil
}
