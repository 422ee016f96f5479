package order

import (
	"context"
	"errors"
)

// ErrStockExhausted is returned by Store.Create when the guarded decrement
// matches zero rows: another purchase took the last unit between this
// attempt's pre-check and its commit.
var ErrStockExhausted = errors.New("order: stock exhausted")

// Store is the relational store of record behind the coordinator. It is the
// only collaborator that needs a multi-statement transaction.
type Store interface {
	// Offer returns the current offer row; ok=false when it does not exist.
	Offer(ctx context.Context, offerID int64) (Offer, bool, error)

	// HasOrder reports whether an order already exists for (userID, offerID).
	HasOrder(ctx context.Context, userID, offerID int64) (bool, error)

	// Create atomically decrements the offer's stock iff it is positive and
	// inserts o, as one transaction - a crash can never leave decremented
	// stock without an order row. Returns ErrStockExhausted when the
	// decrement matches no rows.
	Create(ctx context.Context, o Order) error
}
