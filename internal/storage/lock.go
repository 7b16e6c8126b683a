package storage

import (
	"context"
	"sort"
	"sync"
)

// Locks hands out one exclusive in-process lock per path. Holders of
// different paths never contend; waiters give up when their context ends.
type Locks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int // holders plus waiters; the entry is dropped at zero
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]*lockEntry)}
}

// Acquire blocks until the lock for path is held or ctx is done.
// The returned release func is idempotent.
func (l *Locks) Acquire(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	e, ok := l.held[path]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.held[path] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(path, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(path, e)
		})
	}, nil
}

// AcquireMany locks every distinct path in sorted order, so concurrent
// callers locking overlapping sets cannot deadlock.
func (l *Locks) AcquireMany(ctx context.Context, paths ...string) (func(), error) {
	keys := append([]string(nil), paths...)
	sort.Strings(keys)

	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		release, err := l.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (l *Locks) unref(path string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 && l.held[path] == e {
		delete(l.held, path)
	}
}

// Len returns the number of paths currently locked or waited on.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
