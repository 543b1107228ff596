package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ymaeda2106/Stall-Order-System/internal/drawer/domain"
)

// Repository stores one sheet row per calendar day.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS drawer_sheets (
			date       text PRIMARY KEY,
			counts     jsonb NOT NULL,
			vouchers   jsonb NOT NULL,
			updated_at timestamptz NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate drawer schema: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, date string) (domain.Sheet, error) {
	var (
		sheet    domain.Sheet
		counts   []byte
		vouchers []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT date, counts, vouchers, updated_at FROM drawer_sheets WHERE date=$1`, date).
		Scan(&sheet.Date, &counts, &vouchers, &sheet.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Sheet{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Sheet{}, err
	}
	if err := json.Unmarshal(counts, &sheet.Counts); err != nil {
		return domain.Sheet{}, fmt.Errorf("decode drawer counts: %w", err)
	}
	if err := json.Unmarshal(vouchers, &sheet.Vouchers); err != nil {
		return domain.Sheet{}, fmt.Errorf("decode drawer vouchers: %w", err)
	}
	return sheet, nil
}

func (r *Repository) Save(ctx context.Context, sheet domain.Sheet) error {
	counts, err := json.Marshal(sheet.Counts)
	if err != nil {
		return fmt.Errorf("encode drawer counts: %w", err)
	}
	vouchers := sheet.Vouchers
	if vouchers == nil {
		vouchers = []domain.VoucherUse{}
	}
	vdata, err := json.Marshal(vouchers)
	if err != nil {
		return fmt.Errorf("encode drawer vouchers: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO drawer_sheets (date, counts, vouchers, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET counts=$2, vouchers=$3, updated_at=$4`,
		sheet.Date, counts, vdata, sheet.UpdatedAt)
	return err
}
