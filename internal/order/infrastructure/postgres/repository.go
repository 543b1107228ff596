package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ymaeda2106/Stall-Order-System/internal/order/domain"
	"github.com/ymaeda2106/Stall-Order-System/pkg/outbox"
)

// Repository persists orders in postgres. Every write lands three
// things in one transaction: the order row, its ticket lookup row, and
// an outbox event. Call numbers come from a sequence so they stay
// strictly increasing across service instances.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Migrate creates the order schema. Idempotent, run at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS order_call_numbers START 1`,
		`CREATE TABLE IF NOT EXISTS orders (
			id          text PRIMARY KEY,
			ticket      text NOT NULL UNIQUE,
			call_number integer NOT NULL,
			items       jsonb NOT NULL,
			total       bigint NOT NULL,
			payment     text NOT NULL,
			progress    text NOT NULL,
			plating     jsonb NOT NULL,
			created_at  timestamptz,
			updated_at  timestamptz NOT NULL,
			created_by  text NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS order_lookup (
			ticket      text PRIMARY KEY,
			order_id    text NOT NULL REFERENCES orders(id),
			call_number integer NOT NULL,
			payment     text NOT NULL,
			progress    text NOT NULL,
			updated_at  timestamptz NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id             bigserial PRIMARY KEY,
			aggregate_type text NOT NULL,
			aggregate_id   text NOT NULL,
			type           text NOT NULL,
			payload        bytea NOT NULL,
			traceparent    text NOT NULL DEFAULT '',
			status         text NOT NULL DEFAULT 'pending',
			relay_id       text,
			lease_until    timestamptz,
			retry_count    integer NOT NULL DEFAULT 0,
			last_error     text,
			created_at     timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE status = 'pending'`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate orders schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) CreateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o.Ticket = strings.ToUpper(o.Ticket)

	items, plating, err := encodeMaps(o)
	if err != nil {
		return domain.Order{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, ticket, call_number, items, total, payment, progress, plating, created_at, updated_at, created_by)
		VALUES ($1, $2, nextval('order_call_numbers'), $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING call_number`,
		o.ID, o.Ticket, items, o.Total, o.Payment, o.Progress, plating, nullTime(o.CreatedAt), o.UpdatedAt, o.CreatedBy).
		Scan(&o.CallNumber)
	if err != nil {
		return domain.Order{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_lookup (ticket, order_id, call_number, payment, progress, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		o.Ticket, o.ID, o.CallNumber, o.Payment, o.Progress, o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}

	if err = insertOutbox(ctx, tx, o.ID, eventType, payload); err != nil {
		return domain.Order{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) UpdateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	items, plating, err := encodeMaps(o)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET items=$2, total=$3, payment=$4, progress=$5, plating=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, items, o.Total, o.Payment, o.Progress, plating, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE order_lookup SET payment=$2, progress=$3, updated_at=$4 WHERE order_id=$1`,
		o.ID, o.Payment, o.Progress, o.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, o.ID, eventType, payload); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrder+` WHERE id=$1`, id)
	return scanOrder(row)
}

func (r *Repository) GetByTicket(ctx context.Context, ticket string) (domain.Order, error) {
	ticket = strings.ToUpper(strings.TrimSpace(ticket))
	var id string
	err := r.pool.QueryRow(ctx, `SELECT order_id FROM order_lookup WHERE ticket=$1`, ticket).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` ORDER BY call_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const selectOrder = `SELECT id, ticket, call_number, items, total, payment, progress, plating, created_at, updated_at, created_by FROM orders`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o       domain.Order
		items   []byte
		plating []byte
		created *time.Time
	)
	err := row.Scan(&o.ID, &o.Ticket, &o.CallNumber, &items, &o.Total, &o.Payment, &o.Progress, &plating, &created, &o.UpdatedAt, &o.CreatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if created != nil {
		o.CreatedAt = *created
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(plating, &o.Plating); err != nil {
		return domain.Order{}, fmt.Errorf("decode order plating: %w", err)
	}
	return o, nil
}

func encodeMaps(o domain.Order) (items, plating []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, fmt.Errorf("encode order items: %w", err)
	}
	if plating, err = json.Marshal(o.Plating); err != nil {
		return nil, nil, fmt.Errorf("encode order plating: %w", err)
	}
	return items, plating, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, orderID, eventType string, payload []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent)
		VALUES ('order', $1, $2, $3, $4)`,
		orderID, eventType, payload, carrier["traceparent"])
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// OutboxStore implements outbox.Store over the same pool. Rows are
// claimed with FOR UPDATE SKIP LOCKED so multiple relays can run.
type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, traceparent, created_at
		FROM outbox
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var ev outbox.Event
		if err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload, &ev.Traceparent, &ev.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	_, err = tx.Exec(ctx, `
		UPDATE outbox SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval
		WHERE id = ANY($3)`, relayID, lease.String(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox SET status='failed', last_error=$2, retry_count=retry_count+1 WHERE id=$1`,
		id, errMsg)
	return err
}
