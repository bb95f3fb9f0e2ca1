package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "invoice:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.size())
}

func TestLocalLockerKeysAreIndependent(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "invoice:a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := l.Acquire(ctx, "invoice:b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}

func TestLocalLockerHonoursCancellation(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "invoice:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "invoice:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op
	assert.Equal(t, 0, l.size())

	again, err := l.Acquire(context.Background(), "invoice:1")
	require.NoError(t, err)
	again()
}
