package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
  id          TEXT PRIMARY KEY,
  seq         BIGSERIAL,
  parent_id   TEXT NOT NULL DEFAULT '',
  path_id     TEXT NOT NULL,
  step        BIGINT NOT NULL,
  exchange    TEXT NOT NULL,
  pair        TEXT NOT NULL,
  side        TEXT NOT NULL,
  type        TEXT NOT NULL,
  status      TEXT NOT NULL,
  record      JSONB NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_status_idx ON orders(status);

CREATE TABLE IF NOT EXISTS fills (
  id          TEXT PRIMARY KEY,
  seq         BIGSERIAL,
  order_id    TEXT NOT NULL,
  step        BIGINT NOT NULL,
  record      JSONB NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fills_order_idx ON fills(order_id);

CREATE TABLE IF NOT EXISTS portfolio_snapshots (
  id             TEXT PRIMARY KEY,
  step           BIGINT NOT NULL,
  snapshot_json  JSONB NOT NULL,
  created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_orders (
  snapshot_id  TEXT NOT NULL REFERENCES portfolio_snapshots(id) ON DELETE CASCADE,
  position     INT NOT NULL,
  record       JSONB NOT NULL,
  PRIMARY KEY (snapshot_id, position)
);
`

type PgRepo struct {
	pool *pgxpool.Pool
}

// call Close when finish to work with database.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (p *PgRepo) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pg: migrate: %w", err)
	}
	return nil
}

func (p *PgRepo) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveOrder(ctx context.Context, o *domain.OrderRecord) error {
	if o == nil {
		return errors.New("nil order")
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO orders(id, parent_id, path_id, step, exchange, pair, side, type, status, record, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  record = EXCLUDED.record,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.ParentID, o.PathID, o.Step, o.Exchange, o.Pair, string(o.Side), string(o.Type),
		string(o.Status), string(b), o.UpdatedAt)
	return err
}

// LoadOrders returns every order in first-saved order.
func (p *PgRepo) LoadOrders(ctx context.Context) ([]*domain.OrderRecord, error) {
	rows, err := p.pool.Query(ctx, `SELECT record FROM orders ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.OrderRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var o domain.OrderRecord
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, err
		}
		res = append(res, &o)
	}
	return res, rows.Err()
}

func (p *PgRepo) SaveFill(ctx context.Context, f *domain.Fill) error {
	if f == nil {
		return errors.New("nil fill")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO fills(id, order_id, step, record, created_at)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING
`, f.ID, f.OrderID, f.Step, string(b), f.Timestamp)
	return err
}

// LoadFills returns fills for one order, or all fills when orderID is empty.
func (p *PgRepo) LoadFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	rows, err := p.pool.Query(ctx, `
SELECT record FROM fills
WHERE $1 = '' OR order_id = $1
ORDER BY seq ASC
`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Fill
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var f domain.Fill
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, err
		}
		res = append(res, &f)
	}
	return res, rows.Err()
}

// SaveSnapshot writes the snapshot row and its orders in one transaction.
func (p *PgRepo) SaveSnapshot(ctx context.Context, s *domain.Snapshot) error {
	if s == nil {
		return errors.New("nil snapshot")
	}
	head := *s
	head.Orders = nil
	b, err := json.Marshal(head)
	if err != nil {
		return err
	}
	return withTx(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO portfolio_snapshots(id, step, snapshot_json, created_at)
VALUES($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET snapshot_json = EXCLUDED.snapshot_json, step = EXCLUDED.step
`, s.ID, s.Step, string(b), s.Timestamp); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM snapshot_orders WHERE snapshot_id = $1`, s.ID); err != nil {
			return err
		}
		if len(s.Orders) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for i, o := range s.Orders {
			ob, err := json.Marshal(o)
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO snapshot_orders(snapshot_id, position, record) VALUES($1,$2,$3)`, s.ID, i, string(ob))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *PgRepo) LoadSnapshot(ctx context.Context, snapshotID string) (*domain.Snapshot, error) {
	var data string
	err := p.pool.QueryRow(ctx, `SELECT snapshot_json FROM portfolio_snapshots WHERE id = $1`, snapshotID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, snapshotID)
	}
	if err != nil {
		return nil, err
	}
	var s domain.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `SELECT record FROM snapshot_orders WHERE snapshot_id = $1 ORDER BY position ASC`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec string
		if err := rows.Scan(&rec); err != nil {
			return nil, err
		}
		var o domain.OrderRecord
		if err := json.Unmarshal([]byte(rec), &o); err != nil {
			return nil, err
		}
		s.Orders = append(s.Orders, o)
	}
	return &s, rows.Err()
}
