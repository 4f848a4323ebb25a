package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmat/order-api/internal/lock"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := lock.NewMemoryLocker()
	key := lock.OrderKey(12)

	release, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, lock.ErrLocked)

	_, err = l.Acquire(ctx, lock.OrderKey(13), time.Minute)
	assert.NoError(t, err, "other orders are independent")

	release()
	release()

	again, err := l.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_Expires(t *testing.T) {
	ctx := context.Background()
	l := lock.NewMemoryLocker()

	stale, err := l.Acquire(ctx, "k", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	stale()
	_, err = l.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, lock.ErrLocked, "stale release must not free the new holder")
	fresh()
}

func TestMemoryLocker_SingleFlight(t *testing.T) {
	ctx := context.Background()
	l := lock.NewMemoryLocker()

	var wg sync.WaitGroup
	var acquired int32
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.Acquire(ctx, lock.OrderKey(1), time.Minute); err == nil {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), acquired)
}
