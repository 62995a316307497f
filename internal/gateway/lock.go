package gateway

import (
	"context"
	"sync"

	"github.com/roach88/stepsync/internal/model"
)

// keyedLocks hands out one lock per entry key. Locks are created on first
// use and dropped when no submission holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[model.EntryKey]*keyLock
}

type keyLock struct {
	ch   chan struct{} // holds a token while locked
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[model.EntryKey]*keyLock)}
}

// lock blocks until key is free or ctx is done. Waiters are granted the
// lock in no particular order.
func (k *keyedLocks) lock(ctx context.Context, key model.EntryKey) (unlock func(), err error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			k.release(key, l)
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) release(key model.EntryKey, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// size returns the number of live locks.
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
