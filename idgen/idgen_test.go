package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/surgekit/surge/provider/local"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIdShape(t *testing.T) {
	ctx := context.Background()
	g, err := New(local.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(at)

	id, err := g.Next(ctx, "order")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	wantHigh := uint64(at.Unix() - epochAnchor)
	if id>>counterBits != wantHigh {
		t.Fatalf("timestamp bits = %d, want %d", id>>counterBits, wantHigh)
	}
	if low := id & (1<<counterBits - 1); low != 1 {
		t.Fatalf("counter bits = %d, want 1", low)
	}

	// same second, counter advances
	id2, err := g.Next(ctx, "order")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if id2 != id+1 {
		t.Fatalf("want consecutive ids within one second, got %d then %d", id, id2)
	}
}

func TestConcurrentIdsDistinct(t *testing.T) {
	ctx := context.Background()
	g, err := New(local.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const k = 200
	ids := make(chan uint64, k)
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			id, err := g.Next(ctx, "order")
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]struct{}, k)
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != k {
		t.Fatalf("got %d distinct ids, want %d", len(seen), k)
	}
}

func TestDayOrderingAndCounterReset(t *testing.T) {
	ctx := context.Background()
	g, err := New(local.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dayOne := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)
	g.now = fixedClock(dayOne)
	var dayOneIds []uint64
	for i := 0; i < 5; i++ {
		id, err := g.Next(ctx, "order")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		dayOneIds = append(dayOneIds, id)
	}

	dayTwo := dayOne.Add(time.Second) // crosses UTC midnight
	g.now = fixedClock(dayTwo)
	id, err := g.Next(ctx, "order")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	// the date bucket changed, so the counter restarted at 1
	if low := id & (1<<counterBits - 1); low != 1 {
		t.Fatalf("day-two counter = %d, want 1", low)
	}
	for _, prev := range dayOneIds {
		if id <= prev {
			t.Fatalf("day-two id %d not greater than day-one id %d", id, prev)
		}
	}
}

func TestNamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	g, err := New(local.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	g.now = fixedClock(at)

	a, _ := g.Next(ctx, "order")
	b, _ := g.Next(ctx, "refund")
	if a&(1<<counterBits-1) != 1 || b&(1<<counterBits-1) != 1 {
		t.Fatalf("namespaces must carry independent counters: %d %d", a, b)
	}
}
