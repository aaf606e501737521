package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNotMigrated is returned when the journal table does not exist.
var ErrNotMigrated = errors.New("store: delivery journal table missing, run Migrate")

const schema = `CREATE TABLE IF NOT EXISTS notification_deliveries (
    id            TEXT PRIMARY KEY,
    channel       TEXT NOT NULL,
    payload       TEXT NOT NULL,
    status        TEXT NOT NULL,
    attempts      INTEGER NOT NULL DEFAULT 0,
    response_code INTEGER NOT NULL DEFAULT 0,
    latency_ms    INTEGER NOT NULL DEFAULT 0,
    last_error    TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS notification_deliveries_status_idx ON notification_deliveries (status, id);`

// Postgres journals deliveries in a single table. IDs are time-ordered
// (UUIDv7), so ordering by id is chronological.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the journal table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) SaveDelivery(ctx context.Context, d Delivery) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO notification_deliveries (id, channel, payload, status, attempts, response_code, latency_ms, last_error, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, attempts=EXCLUDED.attempts, response_code=EXCLUDED.response_code,
            latency_ms=EXCLUDED.latency_ms, last_error=EXCLUDED.last_error, updated_at=EXCLUDED.updated_at`,
		d.ID, d.Channel, d.Payload, d.Status, d.Attempts, d.ResponseCode, d.LatencyMs, nullIfEmpty(d.LastError), d.CreatedAt, d.UpdatedAt)
	return classify(err)
}

func (p *Postgres) GetDelivery(ctx context.Context, id string) (Delivery, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM notification_deliveries WHERE id=$1`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Delivery{}, ErrNotFound
	}
	return d, classify(err)
}

func (p *Postgres) ListDeliveries(ctx context.Context, status, cursor string, limit int) ([]Delivery, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM notification_deliveries
        WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id > $2) ORDER BY id LIMIT $3`, status, cursor, limit)
	if err != nil {
		return nil, "", classify(err)
	}
	defer rows.Close()
	out := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

const deliveryColumns = `id, channel, payload, status, attempts, response_code, latency_ms, COALESCE(last_error,''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(s scanner) (Delivery, error) {
	var d Delivery
	err := s.Scan(&d.ID, &d.Channel, &d.Payload, &d.Status, &d.Attempts, &d.ResponseCode, &d.LatencyMs, &d.LastError, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %v", ErrNotMigrated, err)
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
