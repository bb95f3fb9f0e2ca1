package lock

import (
	"context"
	"sync"
)

// Locker serializes writers per key. Release must be called exactly once
// after a successful Acquire; extra calls are ignored.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Waiting honours ctx cancellation.
// Idle keys are dropped so the map only holds keys with holders or waiters.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports tracked keys; used by tests.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
