package centavo

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultLockWait bounds how long an atomic section waits for a contended
// key before giving up with ErrBusy.
const DefaultLockWait = 2 * time.Second

// lockTable hands out one exclusive section per key. Acquisition happens
// in canonical key order, so sections sharing keys cannot deadlock, and
// every wait is bounded.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	wait  time.Duration
}

func newLockTable(wait time.Duration) *lockTable {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	return &lockTable{locks: make(map[string]chan struct{}), wait: wait}
}

func (t *lockTable) lock(key string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[key] = ch
	}
	return ch
}

// acquire takes the sections for all keys, already canonicalized. It
// returns a release function, or ErrBusy when a key stays contended past
// the table's wait. Cancellation is honored here, before the section is
// entered; a section that has fully acquired never aborts mid-flight.
func (t *lockTable) acquire(ctx context.Context, keys []string) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lock acquisition: %w", err)
	}

	held := make([]chan struct{}, 0, len(keys))
	unwind := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	timer := time.NewTimer(t.wait)
	defer timer.Stop()

	for _, key := range keys {
		ch := t.lock(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			unwind()
			return nil, fmt.Errorf("lock acquisition: %w", ctx.Err())
		case <-timer.C:
			unwind()
			return nil, fmt.Errorf("key %q contended for %s: %w", key, t.wait, ErrBusy)
		}
	}
	return unwind, nil
}
