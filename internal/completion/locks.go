// ABOUTME: Per-session exclusive locks built on weighted semaphores
// ABOUTME: Entries are reference counted and dropped once no request holds or waits on them

package completion

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type sessionLock struct {
	sem  *semaphore.Weighted
	refs int
}

// sessionLocks hands out one semaphore per session key. A nil *sessionLocks
// never blocks.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until key is free or ctx is done. The returned func must be
// called exactly once on success.
func (l *sessionLocks) acquire(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}

	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &sessionLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = lk
	}
	lk.refs++
	l.mu.Unlock()

	if err := lk.sem.Acquire(ctx, 1); err != nil {
		l.unref(key, lk)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.sem.Release(1)
			l.unref(key, lk)
		})
	}, nil
}

func (l *sessionLocks) unref(key string, lk *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports how many keys currently have holders or waiters.
func (l *sessionLocks) size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
