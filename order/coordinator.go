package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/surgekit/surge"
	"github.com/surgekit/surge/idgen"
	"github.com/surgekit/surge/lock"
)

// idNamespace scopes the daily order-id counter on the shared store.
const idNamespace = "order"

// Coordinator runs one purchase intent through
// validate -> lock -> deduplicate -> decrement -> commit, failing out to a
// typed Rejection at every step.
type Coordinator struct {
	store Store
	locks *lock.Manager
	ids   *idgen.Generator
	log   surge.Logger

	lockTTL     time.Duration
	lockWait    time.Duration
	lockBackoff time.Duration

	now func() time.Time
}

type Options struct {
	// Required
	Store Store
	Locks *lock.Manager
	IDs   *idgen.Generator

	Logger      surge.Logger  // if nil, logging is disabled
	LockTTL     time.Duration // per-user lock lifetime; 0 => 10s
	LockWait    time.Duration // wait budget before rejecting as contended; 0 => 500ms
	LockBackoff time.Duration // retry pause while waiting; 0 => 50ms
}

func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("order: store is required")
	}
	if opts.Locks == nil {
		return nil, fmt.Errorf("order: lock manager is required")
	}
	if opts.IDs == nil {
		return nil, fmt.Errorf("order: id generator is required")
	}

	c := &Coordinator{
		store: opts.Store,
		locks: opts.Locks,
		ids:   opts.IDs,
		now:   time.Now,
	}
	c.log = opts.Logger
	if c.log == nil {
		c.log = surge.NopLogger{}
	}
	c.lockTTL = opts.LockTTL
	if c.lockTTL == 0 {
		c.lockTTL = 10 * time.Second
	}
	c.lockWait = opts.LockWait
	if c.lockWait == 0 {
		c.lockWait = 500 * time.Millisecond
	}
	c.lockBackoff = opts.LockBackoff
	if c.lockBackoff == 0 {
		c.lockBackoff = 50 * time.Millisecond
	}
	return c, nil
}

// Purchase attempts to buy one unit of offerID for userID. Business
// rejections come back as *Rejection; anything else is an infrastructure
// failure.
func (c *Coordinator) Purchase(ctx context.Context, userID, offerID int64) (Order, error) {
	offer, ok, err := c.store.Offer(ctx, offerID)
	if err != nil {
		return Order{}, fmt.Errorf("order: load offer %d: %w", offerID, err)
	}
	if !ok {
		return Order{}, fmt.Errorf("%w: %d", ErrUnknownOffer, offerID)
	}

	now := c.now()
	if now.Before(offer.StartAt) {
		return Order{}, ErrNotStarted
	}
	if now.After(offer.EndAt) {
		return Order{}, ErrEnded
	}
	if offer.Stock < 1 {
		return Order{}, ErrOutOfStock
	}

	// Serialize this user's attempts cluster-wide so two concurrent
	// requests cannot both pass the uniqueness check before either commits.
	lockKey := "order:user:" + strconv.FormatInt(userID, 10)
	token, got, err := c.locks.AcquireWait(ctx, lockKey, c.lockTTL, c.lockWait, c.lockBackoff)
	if err != nil {
		return Order{}, fmt.Errorf("order: user lock: %w", err)
	}
	if !got {
		return Order{}, ErrContended
	}
	defer func() {
		if _, rerr := c.locks.Release(ctx, lockKey, token); rerr != nil {
			c.log.Warn("user lock release failed", surge.Fields{"key": lockKey, "err": rerr})
		}
	}()

	// authoritative uniqueness gate, inside the critical section
	exists, err := c.store.HasOrder(ctx, userID, offerID)
	if err != nil {
		return Order{}, fmt.Errorf("order: uniqueness check: %w", err)
	}
	if exists {
		return Order{}, ErrAlreadyPurchased
	}

	id, err := c.ids.Next(ctx, idNamespace)
	if err != nil {
		return Order{}, fmt.Errorf("order: id: %w", err)
	}

	o := Order{ID: id, UserID: userID, OfferID: offerID, CreatedAt: now.UTC()}
	if err := c.store.Create(ctx, o); err != nil {
		if errors.Is(err, ErrStockExhausted) {
			// the guard, not the earlier stock check, is the real boundary
			c.log.Info("stock race lost", surge.Fields{"offer": offerID, "user": userID})
			return Order{}, ErrOutOfStock
		}
		return Order{}, fmt.Errorf("order: create: %w", err)
	}
	return o, nil
}
