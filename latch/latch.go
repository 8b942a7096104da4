// Package latch provides a countdown latch for waiting on a dynamic set of
// asynchronous operations.
//
// Unlike sync.WaitGroup, a Latch constructed at zero is already released, the
// count may grow while waiters block, and waiting honors context cancelation.
package latch

import (
	"context"
	"sync"
)

// Latch counts down to zero and releases all waiters.
type Latch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// New creates a Latch with the given initial count. A count of zero is
// already released.
func New(count int) *Latch {
	l := &Latch{count: count, done: make(chan struct{})}
	if count <= 0 {
		close(l.done)
	}
	return l
}

// Add increases the count by delta. Adding to a released latch panics:
// waiters may already have proceeded.
func (l *Latch) Add(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count <= 0 {
		panic("latch: Add on released latch")
	}
	l.count += delta
}

// Done decrements the count, releasing all waiters when it reaches zero.
// Decrements past zero are ignored.
func (l *Latch) Done() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count <= 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Wait blocks until the count reaches zero or the context is canceled.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the current count.
func (l *Latch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
