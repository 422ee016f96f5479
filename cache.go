package surge

import (
	"context"
	"fmt"
	"time"

	"github.com/surgekit/surge/codec"
	"github.com/surgekit/surge/internal/wire"
	"github.com/surgekit/surge/lock"
	pr "github.com/surgekit/surge/provider"
	"github.com/surgekit/surge/rebuild"
)

const (
	defaultTTL     = 30 * time.Minute
	defaultAbsence = 2 * time.Minute
	defaultLockTTL = 10 * time.Second
)

type cache[V any] struct {
	ns        string
	provider  pr.Provider
	codec     codec.Codec[V]
	locks     *lock.Manager
	scheduler *rebuild.Pool
	log       Logger
	hooks     Hooks
	enabled   bool

	defaultTTL  time.Duration
	absenceTTL  time.Duration
	lockTTL     time.Duration
	lockWait    time.Duration
	lockBackoff time.Duration

	now func() time.Time
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("surge: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("surge: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("surge: namespace is required")
	}

	c := &cache[V]{
		ns:        opts.Namespace,
		provider:  opts.Provider,
		codec:     opts.Codec,
		locks:     opts.Locks,
		scheduler: opts.Scheduler,
		enabled:   !opts.Disabled,
		now:       time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultTTL)
	c.absenceTTL = coalesce[time.Duration](opts.AbsenceTTL, defaultAbsence)
	c.lockTTL = coalesce[time.Duration](opts.LockTTL, defaultLockTTL)
	c.lockWait = coalesce[time.Duration](opts.LockWait, time.Second)
	c.lockBackoff = coalesce[time.Duration](opts.LockBackoff, 50*time.Millisecond)

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

// Close shuts the rebuild scheduler down first so in-flight refills finish
// and release their locks before the provider goes away.
func (c *cache[V]) Close(ctx context.Context) error {
	if c.scheduler != nil {
		c.scheduler.Close()
	}
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Get(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (V, bool, error) {
	var zero V
	if load == nil {
		return zero, false, fmt.Errorf("surge: loader is required")
	}
	if !c.enabled {
		return load(ctx, key)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	k := c.storageKey(key)

	if v, st, err := c.readRecord(ctx, k); err != nil {
		return zero, false, err
	} else if st == recordHit {
		return v, true, nil
	} else if st == recordAbsent {
		return zero, false, nil
	}

	// cold miss; concurrent callers all reach the loader here
	v, ok, err := load(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		c.cacheAbsence(ctx, k)
		return zero, false, nil
	}
	c.writeValue(ctx, k, v, 0, ttl)
	return v, true, nil
}

func (c *cache[V]) GetLocked(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (V, bool, error) {
	var zero V
	if load == nil {
		return zero, false, fmt.Errorf("surge: loader is required")
	}
	if c.locks == nil {
		return zero, false, fmt.Errorf("surge: lock manager is required for GetLocked")
	}
	if !c.enabled {
		return load(ctx, key)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	k := c.storageKey(key)

	if v, st, err := c.readRecord(ctx, k); err != nil {
		return zero, false, err
	} else if st == recordHit {
		return v, true, nil
	} else if st == recordAbsent {
		return zero, false, nil
	}

	// miss: serialize the rebuild cluster-wide
	lk := c.lockKey(key)
	token, got, err := c.locks.AcquireWait(ctx, lk, c.lockTTL, c.lockWait, c.lockBackoff)
	if err != nil {
		return zero, false, err
	}
	if !got {
		return zero, false, ErrLockWaitExpired
	}
	defer func() {
		if _, rerr := c.locks.Release(ctx, lk, token); rerr != nil {
			c.log.Warn("lock release failed", Fields{"key": lk, "err": rerr})
		}
	}()

	// double-check: the previous holder likely filled the cache
	if v, st, err := c.readRecord(ctx, k); err != nil {
		return zero, false, err
	} else if st == recordHit {
		return v, true, nil
	} else if st == recordAbsent {
		return zero, false, nil
	}

	v, ok, err := load(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		c.cacheAbsence(ctx, k)
		return zero, false, nil
	}
	c.writeValue(ctx, k, v, 0, ttl)
	return v, true, nil
}

func (c *cache[V]) GetStale(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (V, bool, error) {
	var zero V
	if load == nil {
		return zero, false, fmt.Errorf("surge: loader is required")
	}
	if c.locks == nil || c.scheduler == nil {
		return zero, false, fmt.Errorf("surge: lock manager and scheduler are required for GetStale")
	}
	if !c.enabled {
		return load(ctx, key)
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	k := c.storageKey(key)

	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		return zero, false, &StoreError{Op: "get", Key: k, Err: err}
	}
	if !ok {
		// never self-populates; a cold key is seeded out-of-band via Warm
		return zero, false, nil
	}
	if wire.IsAbsent(raw) {
		return zero, false, nil
	}
	expireAt, payload, err := wire.DecodeValue(raw)
	if err != nil {
		c.selfHeal(ctx, k, "corrupt")
		return zero, false, nil
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, k, "value_decode")
		return zero, false, nil
	}
	if expireAt == 0 || c.now().Unix() < expireAt {
		return v, true, nil // fresh; stale reads impossible in this branch
	}

	// stale: serve it as-is and refresh in the background
	c.scheduleRebuild(ctx, key, k, ttl, load)
	return v, true, nil
}

// scheduleRebuild hands a refill for key to the worker pool under a per-key
// lock. The lock bounds the refill to one in flight per key; the job
// releases it whatever happens, and a failed submission releases it inline.
func (c *cache[V]) scheduleRebuild(ctx context.Context, key, storageKey string, ttl time.Duration, load Loader[V]) {
	lk := c.lockKey(key)
	token, got, err := c.locks.Acquire(ctx, lk, c.lockTTL)
	if err != nil {
		c.log.Warn("rebuild lock acquire failed", Fields{"key": lk, "err": err})
		return
	}
	if !got {
		c.hooks.LockContended(storageKey)
		return
	}

	job := func() {
		// detached from the triggering request; bounded by the lock TTL
		jctx, cancel := context.WithTimeout(context.Background(), c.lockTTL)
		defer cancel()
		defer func() {
			if _, rerr := c.locks.Release(jctx, lk, token); rerr != nil {
				c.log.Warn("rebuild lock release failed", Fields{"key": lk, "err": rerr})
			}
		}()

		v, ok, err := load(jctx, key)
		if err != nil {
			c.hooks.RebuildFailed(storageKey, err)
			c.log.Error("rebuild failed; stale record kept", Fields{"key": storageKey, "err": err})
			return
		}
		if !ok {
			c.cacheAbsence(jctx, storageKey)
			return
		}
		if err := c.writeValue(jctx, storageKey, v, c.now().Add(ttl).Unix(), 0); err != nil {
			c.hooks.RebuildFailed(storageKey, err)
			c.log.Error("rebuild write-back failed", Fields{"key": storageKey, "err": err})
		}
	}

	if !c.scheduler.TrySubmit(job) {
		c.hooks.RebuildRejected(storageKey)
		c.log.Warn("rebuild pool saturated; skipping refresh", Fields{"key": storageKey})
		if _, rerr := c.locks.Release(ctx, lk, token); rerr != nil {
			c.log.Warn("rebuild lock release failed", Fields{"key": lk, "err": rerr})
		}
		return
	}
	c.hooks.RebuildScheduled(storageKey)
}

func (c *cache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	return c.writeValue(ctx, c.storageKey(key), value, 0, ttl)
}

func (c *cache[V]) Warm(ctx context.Context, key string, value V, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	// logical records carry their expiry inline and no store TTL
	return c.writeValue(ctx, c.storageKey(key), value, c.now().Add(ttl).Unix(), 0)
}

func (c *cache[V]) Invalidate(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	k := c.storageKey(key)
	if err := c.provider.Del(ctx, k); err != nil {
		return &StoreError{Op: "del", Key: k, Err: err}
	}
	return nil
}

type recordState int

const (
	recordMiss recordState = iota
	recordHit
	recordAbsent
)

// readRecord fetches and validates the record at storageKey, ignoring any
// embedded logical expiry (the passthrough paths rely on the store TTL).
// Corrupt or undecodable records are deleted and reported as misses.
func (c *cache[V]) readRecord(ctx context.Context, storageKey string) (V, recordState, error) {
	var zero V
	raw, ok, err := c.provider.Get(ctx, storageKey)
	if err != nil {
		return zero, recordMiss, &StoreError{Op: "get", Key: storageKey, Err: err}
	}
	if !ok {
		return zero, recordMiss, nil
	}
	if wire.IsAbsent(raw) {
		return zero, recordAbsent, nil
	}
	_, payload, err := wire.DecodeValue(raw)
	if err != nil {
		c.selfHeal(ctx, storageKey, "corrupt")
		return zero, recordMiss, nil
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, storageKey, "value_decode")
		return zero, recordMiss, nil
	}
	return v, recordHit, nil
}

func (c *cache[V]) writeValue(ctx context.Context, storageKey string, value V, expireAt int64, ttl time.Duration) error {
	payload, err := c.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("surge: encode %q: %w", storageKey, err)
	}
	ok, err := c.provider.Set(ctx, storageKey, wire.EncodeValue(expireAt, payload), ttl)
	if err != nil {
		return &StoreError{Op: "set", Key: storageKey, Err: err}
	}
	if !ok {
		c.log.Debug("set rejected by provider (pressure)", Fields{"key": storageKey})
	}
	return nil
}

func (c *cache[V]) cacheAbsence(ctx context.Context, storageKey string) {
	if _, err := c.provider.Set(ctx, storageKey, wire.EncodeAbsent(), c.absenceTTL); err != nil {
		c.log.Warn("absence marker write failed", Fields{"key": storageKey, "err": err})
		return
	}
	c.hooks.AbsenceCached(storageKey)
}

func (c *cache[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.hooks.SelfHeal(storageKey, reason)
}

func (c *cache[V]) storageKey(userKey string) string {
	// isolate by namespace; lock keys live under a different prefix
	return "cache:" + c.ns + ":" + userKey
}

func (c *cache[V]) lockKey(userKey string) string {
	return c.ns + ":" + userKey
}
