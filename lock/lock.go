// Package lock implements short-lived mutual exclusion on the shared store.
//
// A lock is a key holding a random holder token with a TTL. Acquire is a
// single atomic set-if-absent attempt; Release is a compare-and-delete on
// the token, so a holder whose lock already expired cannot drop a lock that
// a second party legitimately re-acquired. A crashed holder's lock
// self-heals when the TTL elapses.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pr "github.com/surgekit/surge/provider"
)

const DefaultPrefix = "lock:"

type Manager struct {
	store  pr.Atomic
	prefix string
}

// New builds a Manager over store. prefix namespaces lock keys away from
// payload keys; empty means DefaultPrefix.
func New(store pr.Atomic, prefix string) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("lock: store is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Manager{store: store, prefix: prefix}, nil
}

func (m *Manager) storageKey(key string) string { return m.prefix + key }

// Acquire makes a single attempt to take the lock for key with the given
// TTL. On success it returns the holder token needed to release. ok=false
// with a nil error means another holder currently has the lock; the caller
// decides whether to retry.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	if ttl <= 0 {
		return "", false, fmt.Errorf("lock: non-positive ttl for %q", key)
	}
	token = uuid.NewString()
	ok, err = m.store.SetNX(ctx, m.storageKey(key), []byte(token), ttl)
	if err != nil {
		return "", false, fmt.Errorf("lock: acquire %q: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// AcquireWait retries Acquire with a fixed backoff until it succeeds, the
// wait budget is spent, or ctx is done. Contention past the budget is
// reported as ok=false, never as an error; the caller treats it as a
// rejection. The loop is iterative and capped - there is no recursion and
// no unbounded spin.
func (m *Manager) AcquireWait(ctx context.Context, key string, ttl, wait, backoff time.Duration) (token string, ok bool, err error) {
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		token, ok, err = m.Acquire(ctx, key, ttl)
		if err != nil || ok {
			return token, ok, err
		}
		if time.Now().Add(backoff).After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Release drops the lock iff token still identifies the current holder.
// released=false with a nil error means the lock already expired or was
// re-acquired by someone else; nothing was deleted.
func (m *Manager) Release(ctx context.Context, key, token string) (released bool, err error) {
	released, err = m.store.DelIfEqual(ctx, m.storageKey(key), []byte(token))
	if err != nil {
		return false, fmt.Errorf("lock: release %q: %w", key, err)
	}
	return released, nil
}
