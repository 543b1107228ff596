package application_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
	"github.com/ymaeda2106/Stall-Order-System/internal/menu/infrastructure/memory"
)

type countingCache struct {
	items       []domain.Item
	gets, sets  int
	invalidates int
}

func (c *countingCache) Get(context.Context) ([]domain.Item, error) {
	c.gets++
	return c.items, nil
}

func (c *countingCache) Set(_ context.Context, items []domain.Item) error {
	c.sets++
	c.items = items
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidates++
	c.items = nil
	return nil
}

func newService(t *testing.T, cache application.Cache) *application.Service {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	repo := memory.NewStore(log, filepath.Join(t.TempDir(), "overrides.json"))
	svc, err := application.NewService(log, domain.VariantA, repo, cache)
	require.NoError(t, err)
	return svc
}

func TestNewService_RejectsUnknownVariant(t *testing.T) {
	log := slog.New(slog.DiscardHandler)
	_, err := application.NewService(log, domain.Variant("c"), memory.NewStore(log, ""), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)
}

func TestResolved_CacheAside(t *testing.T) {
	cache := &countingCache{}
	svc := newService(t, cache)

	first, err := svc.Resolved(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.Resolved(t.Context())
	require.NoError(t, err)
	// Second read served from cache, no second populate.
	assert.Equal(t, 1, cache.sets)
}

func TestSaveOverrides_InvalidatesCache(t *testing.T) {
	cache := &countingCache{}
	svc := newService(t, cache)

	_, err := svc.Resolved(t.Context())
	require.NoError(t, err)

	price := int64(980)
	require.NoError(t, svc.SaveOverrides(t.Context(), domain.Overrides{"plain": {Price: &price}}))
	assert.Equal(t, 1, cache.invalidates)

	snap, err := svc.Snapshot(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(980), snap["plain"].Price)
}

func TestSaveOverrides_Validation(t *testing.T) {
	svc := newService(t, nil)

	price := int64(-10)
	err := svc.SaveOverrides(t.Context(), domain.Overrides{"plain": {Price: &price}})
	assert.ErrorIs(t, err, domain.ErrInvalidOverride)

	err = svc.SaveOverrides(t.Context(), domain.Overrides{"ramen": {}})
	assert.ErrorIs(t, err, domain.ErrInvalidOverride)
}

func TestSnapshot_UsableForPricing(t *testing.T) {
	svc := newService(t, nil)
	snap, err := svc.Snapshot(t.Context())
	require.NoError(t, err)

	for key, it := range snap {
		assert.Equal(t, key, it.Key)
		assert.Positive(t, it.Price)
		assert.NotEmpty(t, it.Category)
	}
}
