package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/surgekit/surge/provider/local"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(local.New(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	token, ok, err := m.Acquire(ctx, "shop:1", time.Second)
	if err != nil || !ok || token == "" {
		t.Fatalf("first Acquire: token=%q ok=%v err=%v", token, ok, err)
	}
	if _, ok, err := m.Acquire(ctx, "shop:1", time.Second); err != nil || ok {
		t.Fatalf("second Acquire must lose: ok=%v err=%v", ok, err)
	}
	// a different key is unaffected
	if _, ok, err := m.Acquire(ctx, "shop:2", time.Second); err != nil || !ok {
		t.Fatalf("unrelated key: ok=%v err=%v", ok, err)
	}
}

func TestReleaseRequiresToken(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	token, _, err := m.Acquire(ctx, "shop:1", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if released, _ := m.Release(ctx, "shop:1", "not-the-token"); released {
		t.Fatalf("foreign token must not release")
	}
	if _, ok, _ := m.Acquire(ctx, "shop:1", time.Second); ok {
		t.Fatalf("lock must still be held after foreign release attempt")
	}

	if released, err := m.Release(ctx, "shop:1", token); err != nil || !released {
		t.Fatalf("holder release: released=%v err=%v", released, err)
	}
	if _, ok, _ := m.Acquire(ctx, "shop:1", time.Second); !ok {
		t.Fatalf("lock must be free after holder release")
	}
}

func TestTTLSelfHeal(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	staleToken, _, err := m.Acquire(ctx, "shop:1", 15*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	// orphaned lock self-healed; a second party takes it
	if _, ok, _ := m.Acquire(ctx, "shop:1", time.Second); !ok {
		t.Fatalf("expected acquire after TTL expiry")
	}
	// the delayed first party's release must not drop the new holder's lock
	if released, _ := m.Release(ctx, "shop:1", staleToken); released {
		t.Fatalf("stale token released a re-acquired lock")
	}
	if _, ok, _ := m.Acquire(ctx, "shop:1", time.Second); ok {
		t.Fatalf("new holder's lock was lost")
	}
}

func TestAcquireWaitBounded(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	holder, _, err := m.Acquire(ctx, "user:7", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// budget too small to outlast the holder
	start := time.Now()
	_, ok, err := m.AcquireWait(ctx, "user:7", time.Second, 40*time.Millisecond, 10*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("AcquireWait should time out: ok=%v err=%v", ok, err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("wait was not bounded: %v", elapsed)
	}

	// release mid-wait; a waiter should get through
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok, err := m.AcquireWait(ctx, "user:7", time.Second, time.Second, 10*time.Millisecond)
		if err != nil || !ok {
			t.Errorf("AcquireWait after release: ok=%v err=%v", ok, err)
		}
	}()
	time.Sleep(30 * time.Millisecond)
	if _, err := m.Release(ctx, "user:7", holder); err != nil {
		t.Fatalf("Release: %v", err)
	}
	<-done
}

func TestAcquireWaitHonorsContext(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	if _, _, err := m.Acquire(ctx, "user:7", time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, ok, err := m.AcquireWait(cctx, "user:7", time.Second, time.Second, 10*time.Millisecond); ok || err == nil {
		t.Fatalf("expected ctx error, got ok=%v err=%v", ok, err)
	}
}

// Under N contenders, exactly one acquire wins per release cycle.
func TestAcquireContention(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	const n = 32
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, ok, err := m.Acquire(ctx, "hot", time.Second); err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
}
