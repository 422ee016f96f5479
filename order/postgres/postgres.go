// Package postgres is the pgx-backed store of record for the order
// coordinator.
//
// Expected schema:
//
//	CREATE TABLE offers (
//	    id       BIGINT PRIMARY KEY,
//	    stock    INTEGER NOT NULL CHECK (stock >= 0),
//	    start_at TIMESTAMPTZ NOT NULL,
//	    end_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE orders (
//	    id         BIGINT PRIMARY KEY,
//	    user_id    BIGINT NOT NULL,
//	    offer_id   BIGINT NOT NULL REFERENCES offers (id),
//	    created_at TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surgekit/surge/order"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ order.Store = (*Store)(nil)

func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Offer(ctx context.Context, offerID int64) (order.Offer, bool, error) {
	var o order.Offer
	err := s.pool.QueryRow(ctx,
		`SELECT id, stock, start_at, end_at FROM offers WHERE id = $1`,
		offerID,
	).Scan(&o.ID, &o.Stock, &o.StartAt, &o.EndAt)
	if err == pgx.ErrNoRows {
		return order.Offer{}, false, nil
	}
	if err != nil {
		return order.Offer{}, false, err
	}
	return o, true, nil
}

func (s *Store) HasOrder(ctx context.Context, userID, offerID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND offer_id = $2)`,
		userID, offerID,
	).Scan(&exists)
	return exists, err
}

// Create runs the guarded decrement and the order insert in one
// transaction. A zero-row decrement means a concurrent purchase took the
// last unit; the transaction is rolled back and ErrStockExhausted returned.
func (s *Store) Create(ctx context.Context, o order.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE offers SET stock = stock - 1 WHERE id = $1 AND stock > 0`,
		o.OfferID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrStockExhausted
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, user_id, offer_id, created_at) VALUES ($1, $2, $3, $4)`,
		int64(o.ID), o.UserID, o.OfferID, o.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}
