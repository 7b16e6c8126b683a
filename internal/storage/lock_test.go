package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocksSerialiseSamePath(t *testing.T) {
	l := NewLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "/v/a.md")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxInside)
	assert.Equal(t, 0, l.Len())
}

func TestLocksDifferentPathsIndependent(t *testing.T) {
	l := NewLocks()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocksHonourCancellation(t *testing.T) {
	l := NewLocks()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent
	assert.Equal(t, 0, l.Len())
}

func TestAcquireManyDedupesAndOrders(t *testing.T) {
	l := NewLocks()
	release, err := l.AcquireMany(context.Background(), "b", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	release()
	assert.Equal(t, 0, l.Len())

	// Opposite orders from two goroutines must not deadlock.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := l.AcquireMany(context.Background(), "x", "y")
			if assert.NoError(t, err) {
				r()
			}
		}()
		go func() {
			defer wg.Done()
			r, err := l.AcquireMany(context.Background(), "y", "x")
			if assert.NoError(t, err) {
				r()
			}
		}()
	}
	wg.Wait()
}
