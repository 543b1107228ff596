package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
)

// Service resolves the active catalog (base variant + overrides) and
// accepts admin override edits. Reads are cache-aside: a lock around
// the repository load keeps a cache expiry from stampeding the store.
type Service struct {
	log   *slog.Logger
	base  []domain.Item
	repo  OverrideRepository
	cache Cache

	loadMu sync.Mutex
}

func NewService(log *slog.Logger, variant domain.Variant, repo OverrideRepository, cache Cache) (*Service, error) {
	base, err := domain.Catalog(variant)
	if err != nil {
		return nil, err
	}
	return &Service{log: log, base: base, repo: repo, cache: cache}, nil
}

// Resolved returns the active catalog with overrides applied.
func (s *Service) Resolved(ctx context.Context) ([]domain.Item, error) {
	if s.cache != nil {
		if items, err := s.cache.Get(ctx); err != nil {
			s.log.Warn("menu cache read failed", "err", err)
		} else if items != nil {
			return items, nil
		}
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Another request may have repopulated the cache while we waited.
	if s.cache != nil {
		if items, err := s.cache.Get(ctx); err == nil && items != nil {
			return items, nil
		}
	}

	ov, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu overrides: %w", err)
	}
	items := domain.Apply(s.base, ov)

	if s.cache != nil {
		if err := s.cache.Set(ctx, items); err != nil {
			s.log.Warn("menu cache write failed", "err", err)
		}
	}
	return items, nil
}

// Snapshot returns the resolved catalog keyed by item key, the shape
// order pricing consumes.
func (s *Service) Snapshot(ctx context.Context) (map[string]domain.Item, error) {
	items, err := s.Resolved(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Item, len(items))
	for _, it := range items {
		out[it.Key] = it
	}
	return out, nil
}

// SaveOverrides validates and persists the override layer, then drops
// the cached catalog so every client sees the change.
func (s *Service) SaveOverrides(ctx context.Context, ov domain.Overrides) error {
	if err := ov.Validate(s.base); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, ov); err != nil {
		return fmt.Errorf("save menu overrides: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.log.Warn("menu cache invalidate failed", "err", err)
		}
	}
	return nil
}

// Overrides returns the currently persisted override layer.
func (s *Service) Overrides(ctx context.Context) (domain.Overrides, error) {
	return s.repo.Get(ctx)
}
