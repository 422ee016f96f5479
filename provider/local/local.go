// Package local is an in-process Atomic provider. It backs tests and
// single-instance deployments; the atomic primitives hold the same contracts
// as the Redis implementation, scoped to one process.
package local

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	pr "github.com/surgekit/surge/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Local struct {
	mu sync.Mutex
	m  map[string]entry
}

var _ pr.Atomic = (*Local)(nil)

func New() *Local { return &Local{m: make(map[string]entry)} }

// live returns the entry for key if present and unexpired, pruning it lazily
// otherwise. Caller must hold mu.
func (p *Local) live(key string) (entry, bool) {
	e, ok := p.m[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return entry{}, false
	}
	return e, true
}

func (p *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live(key)
	if !ok {
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.mu.Lock()
	p.m[key] = entry{v: value, exp: exp}
	p.mu.Unlock()
	return true, nil
}

func (p *Local) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live(key); ok {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = entry{v: value, exp: exp}
	return true, nil
}

func (p *Local) DelIfEqual(_ context.Context, key string, expect []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live(key)
	if !ok || !bytes.Equal(e.v, expect) {
		return false, nil
	}
	delete(p.m, key)
	return true, nil
}

func (p *Local) Incr(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	if e, ok := p.live(key); ok {
		v, err := strconv.ParseInt(string(e.v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("local incr %q: %w", key, err)
		}
		n = v
	}
	n++
	e := p.m[key] // keep any existing expiry
	e.v = []byte(strconv.FormatInt(n, 10))
	p.m[key] = e
	return n, nil
}

func (p *Local) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *Local) Close(context.Context) error { return nil }

// Len reports the number of stored keys, expired entries included until
// their next touch. For tests.
func (p *Local) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
