// Package asynchook decouples hook sinks from the cache's hot paths: events
// are queued to a small worker set and dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:  10, // sample logs: ~every 10th self-heal
//	    ContentionEvery: 1, // log every lock contention
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := surge.New[Shop](surge.Options[Shop]{
//	    Namespace: "shop",
//	    Provider:  provider,
//	    Codec:     codec.JSON[Shop]{},
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/surgekit/surge"
)

type Hooks struct {
	inner surge.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ surge.Hooks = (*Hooks)(nil)

func New(inner surge.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)      { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) AbsenceCached(k string)    { h.try(func() { h.inner.AbsenceCached(k) }) }
func (h *Hooks) RebuildScheduled(k string) { h.try(func() { h.inner.RebuildScheduled(k) }) }
func (h *Hooks) RebuildFailed(k string, err error) {
	h.try(func() { h.inner.RebuildFailed(k, err) })
}
func (h *Hooks) RebuildRejected(k string) { h.try(func() { h.inner.RebuildRejected(k) }) }
func (h *Hooks) LockContended(k string)   { h.try(func() { h.inner.LockContended(k) }) }
