// Package provider defines the storage abstraction used by surge.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Set.
//
// Important: the keyspaces "cache:<ns>:", "lock:" and "seq:" are owned by
// surge. External code MUST NOT write values under these prefixes. Foreign
// writes may be treated as corruption by strict wire-format validation and
// deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Atomic extends Provider with the single-key atomic primitives the lock
// manager and the id generator are built on. The store shared by all
// service instances must implement Atomic; payload-only local stores
// (BigCache, Ristretto) implement just Provider.
type Atomic interface {
	Provider

	// SetNX stores value with ttl iff the key does not already exist.
	// Returns true when the write happened.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// DelIfEqual deletes key iff its current value equals expect.
	// The compare and the delete are a single atomic step.
	// Returns true when the key was deleted.
	DelIfEqual(ctx context.Context, key string, expect []byte) (bool, error)

	// Incr atomically increments the integer value at key (missing => 0)
	// and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}
