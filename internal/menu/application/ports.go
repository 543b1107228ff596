package application

import (
	"context"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
)

// OverrideRepository persists the admin-edited label/price layer.
type OverrideRepository interface {
	Get(ctx context.Context) (domain.Overrides, error)
	Save(ctx context.Context, ov domain.Overrides) error
}

// Cache fronts the resolved catalog. A miss is (nil, nil); cache errors
// degrade to the repository, they never fail a read.
type Cache interface {
	Get(ctx context.Context) ([]domain.Item, error)
	Set(ctx context.Context, items []domain.Item) error
	Invalidate(ctx context.Context) error
}
