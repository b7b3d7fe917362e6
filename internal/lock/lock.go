package lock

import (
	"context"
	"sync"
)

// Locker hands out mutual exclusion per key across concurrent requests.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func OwnerKey(ownerID string) string { return "lock:owner:" + ownerID }

func PaymentKey(jobID string) string { return "lock:payment:" + jobID }

type entry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serialises callers inside one process. Used in tests and
// when LOCK_BACKEND=local.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: map[string]*entry{}}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}
