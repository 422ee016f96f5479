// Package idgen produces 64-bit identifiers from a timestamp and a daily
// counter kept on the shared store: high 32 bits are seconds since the
// service epoch, low 32 bits are an atomic per-(namespace, UTC day) counter.
// Ids are unique as long as the counter increment is atomic and a namespace
// stays under 2^32 ids per day, and they sort by generation time across
// seconds.
package idgen

import (
	"context"
	"fmt"
	"time"

	pr "github.com/surgekit/surge/provider"
)

// epochAnchor is 2025-01-01T00:00:00Z, the logical epoch of the id space.
// Changing it invalidates ordering against already-issued ids.
const epochAnchor int64 = 1735689600

const counterBits = 32

const bucketLayout = "2006:01:02"

type Generator struct {
	store pr.Atomic
	now   func() time.Time
}

func New(store pr.Atomic) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("idgen: store is required")
	}
	return &Generator{store: store, now: time.Now}, nil
}

// Next returns a fresh id for namespace. The counter key rolls over at UTC
// midnight; the counter itself is never reset mid-day.
//
// No correction is applied if the wall clock moves backward: ids stay
// unique (the counter alone guarantees that within a day) but may briefly
// sort out of order.
func (g *Generator) Next(ctx context.Context, namespace string) (uint64, error) {
	if namespace == "" {
		return 0, fmt.Errorf("idgen: namespace is required")
	}
	now := g.now().UTC()
	seconds := now.Unix() - epochAnchor

	key := "seq:" + namespace + ":" + now.Format(bucketLayout)
	count, err := g.store.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("idgen: counter %q: %w", key, err)
	}

	return uint64(seconds)<<counterBits | uint64(count)&(1<<counterBits-1), nil
}
