package surge

import (
	"context"
	"time"

	c "github.com/surgekit/surge/codec"
	"github.com/surgekit/surge/lock"
	pr "github.com/surgekit/surge/provider"
	"github.com/surgekit/surge/rebuild"
)

// Loader fetches the value for key from the store of record. ok=false with
// a nil error means the key has no backing data. Loaders must be idempotent
// and safe to call concurrently - the passthrough path may invoke a loader
// redundantly under concurrent cold misses.
type Loader[V any] func(ctx context.Context, key string) (v V, ok bool, err error)

// Cache is the high-level, provider-agnostic cache API.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Get is read-through with null caching. ttl==0 uses Options.DefaultTTL.
	// Loader misses are cached as an absence marker for Options.AbsenceTTL.
	Get(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (v V, ok bool, err error)

	// GetLocked is read-through with the rebuild serialized behind a
	// per-key lock: on a miss, the caller waits (bounded) for the lock,
	// re-checks the cache, and only then hits the loader.
	GetLocked(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (v V, ok bool, err error)

	// GetStale serves logical-expiration records. Missing keys are misses
	// (seed with Warm); stale hits return the stale value immediately and
	// trigger at most one asynchronous rebuild, which rewrites the record
	// with a logical expiry of now+ttl.
	GetStale(ctx context.Context, key string, ttl time.Duration, load Loader[V]) (v V, ok bool, err error)

	// Set writes a plain record whose lifetime is the store TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Warm writes a logical-expiration record valid for ttl. The record is
	// never physically evicted; GetStale decides freshness by the embedded
	// expiry.
	Warm(ctx context.Context, key string, value V, ttl time.Duration) error

	// Invalidate drops the record (cache-aside write path: update the
	// store of record first, then invalidate).
	Invalidate(ctx context.Context, key string) error
}

// Options tune the behavior of the generic cache.
// Namespace, Provider and Codec are required; Locks and Scheduler are
// required for GetStale/GetLocked; others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "shop", "offer"
	Provider  pr.Provider
	Codec     c.Codec[V]

	// Required for GetStale and GetLocked.
	Locks     *lock.Manager
	Scheduler *rebuild.Pool // required for GetStale only

	Logger      Logger        // if nil, NopLogger is used
	Hooks       Hooks         // if nil, NopHooks is used
	DefaultTTL  time.Duration // 0 => 30m
	AbsenceTTL  time.Duration // null-caching window; 0 => 2m
	LockTTL     time.Duration // rebuild lock lifetime; 0 => 10s
	LockWait    time.Duration // GetLocked wait budget; 0 => 1s
	LockBackoff time.Duration // GetLocked retry pause; 0 => 50ms
	Disabled    bool          // default false (enabled); disabled caches call loaders directly
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
