package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
)

// Repository stores the override layer as a singleton jsonb row, the
// relational rendition of the original menu-configuration document.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Migrate creates the table when absent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS menu_overrides (
			id          smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			data        jsonb NOT NULL DEFAULT '{}'::jsonb,
			updated_at  timestamptz NOT NULL DEFAULT now()
		)`)
	return err
}

func (r *Repository) Get(ctx context.Context) (domain.Overrides, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM menu_overrides WHERE id = 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Overrides{}, nil
	}
	if err != nil {
		return nil, err
	}
	var ov domain.Overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		return nil, err
	}
	return ov, nil
}

func (r *Repository) Save(ctx context.Context, ov domain.Overrides) error {
	data, err := json.Marshal(ov)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO menu_overrides (id, data, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET data = $1, updated_at = $2`,
		data, time.Now().UTC())
	return err
}
