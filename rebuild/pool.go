// Package rebuild runs cache-refill jobs on a small fixed pool of workers
// so readers are never blocked on an upstream reload. The pool is an
// explicit value the cache engine owns and shuts down; there is no package
// singleton.
package rebuild

import "sync"

type Pool struct {
	q    chan func()
	wg   sync.WaitGroup
	once sync.Once
}

// NewPool starts workers goroutines draining a queue of qlen jobs.
// workers <= 0 defaults to 1; qlen <= 0 defaults to 256.
func NewPool(workers, qlen int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 256
	}

	p := &Pool{q: make(chan func(), qlen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for f := range p.q {
				f()
			}
		}()
	}
	return p
}

// TrySubmit enqueues f without blocking. It returns false when the queue is
// full; the caller is responsible for whatever cleanup the dropped job
// would have done (e.g. releasing a rebuild lock).
func (p *Pool) TrySubmit(f func()) bool {
	select {
	case p.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
// Safe to call multiple times.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.q)
		p.wg.Wait()
	})
}
