package runner

import "sync"

// Guard is the process-wide "processing in progress" lease. Only one batch
// run or single retry may own the browser at a time; everyone else gets a
// busy answer instead of queueing.
type Guard struct {
	mu   sync.Mutex
	busy bool
}

// TryAcquire claims the lease. The returned release func is idempotent and
// must be deferred immediately, so the lease is dropped on every exit path.
func (g *Guard) TryAcquire() (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return nil, false
	}
	g.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.busy = false
			g.mu.Unlock()
		})
	}, true
}

// Busy reports whether a run currently holds the lease.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
