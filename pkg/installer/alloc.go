package installer

import (
	"sync"
	"sync/atomic"
)

// NodeError ties a failure to the package key whose unit of work raised it.
type NodeError struct {
	Key string
	Err error
}

func (e NodeError) Error() string { return e.Key + ": " + e.Err.Error() }
func (e NodeError) Unwrap() error { return e.Err }

// Allocator is the concurrency harness for an install run. It is the single
// place that knows how many units of work are outstanding: the counter is
// incremented before a unit starts and decremented after it fully returns,
// including the synchronous spawning of its children (children run and count
// independently). Wait blocks until the whole task graph has drained.
//
// Failures do not tear down the run; each unit's error is recorded against
// its key and reported together once quiescent, so unrelated subtrees
// finish even when one branch fails.
type Allocator struct {
	wg     sync.WaitGroup
	active atomic.Int64

	mu       sync.Mutex
	failures []NodeError
}

// NewAllocator creates an allocator with no outstanding work.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Go runs fn as one concurrent unit of work attributed to key. A non-nil
// return is recorded as that key's failure.
func (a *Allocator) Go(key string, fn func() error) {
	a.wg.Add(1)
	a.active.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.active.Add(-1)
		if err := fn(); err != nil {
			a.fail(key, err)
		}
	}()
}

// fail records a unit failure without stopping other units.
func (a *Allocator) fail(key string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, NodeError{Key: key, Err: err})
}

// Active returns the number of units currently outstanding.
func (a *Allocator) Active() int64 {
	return a.active.Load()
}

// Wait blocks until every spawned unit has completed, then returns all
// recorded failures in spawn-completion order.
func (a *Allocator) Wait() []NodeError {
	a.wg.Wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]NodeError(nil), a.failures...)
}
