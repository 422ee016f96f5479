// Package order coordinates flash-sale purchases: one order per user per
// offer, enforced cluster-wide behind the shared lock manager, with stock
// decremented through a guarded conditional update at the store of record.
package order

import (
	"errors"
	"time"
)

// Offer is a time-boxed, finite-inventory sale item.
type Offer struct {
	ID      int64
	Stock   int
	StartAt time.Time
	EndAt   time.Time
}

// Order is immutable once created; this core never updates or deletes it.
type Order struct {
	ID        uint64
	UserID    int64
	OfferID   int64
	CreatedAt time.Time
}

// Reason classifies a business rejection.
type Reason string

const (
	ReasonNotStarted       Reason = "not_started"
	ReasonEnded            Reason = "ended"
	ReasonOutOfStock       Reason = "out_of_stock"
	ReasonAlreadyPurchased Reason = "already_purchased"
	ReasonContended        Reason = "contended"
)

// Rejection is an expected business outcome, not a fault. It is returned as
// a typed error so callers can branch with errors.Is against the package
// sentinels; infrastructure failures are returned as ordinary wrapped
// errors and never match a Rejection.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string { return "order: rejected: " + string(r.Reason) }

var (
	ErrNotStarted       = &Rejection{Reason: ReasonNotStarted}
	ErrEnded            = &Rejection{Reason: ReasonEnded}
	ErrOutOfStock       = &Rejection{Reason: ReasonOutOfStock}
	ErrAlreadyPurchased = &Rejection{Reason: ReasonAlreadyPurchased}
	// ErrContended marks a purchase attempt that could not take the
	// per-user lock within its wait budget.
	ErrContended = &Rejection{Reason: ReasonContended}
)

// ErrUnknownOffer is returned when the offer does not exist at all; unlike
// a Rejection this usually indicates a caller bug.
var ErrUnknownOffer = errors.New("order: unknown offer")

// IsRejection reports whether err is a business rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
