package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocks_Exclusive(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	unlock, err := locks.Lock(ctx, 1)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := locks.Lock(ctx, 1)
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}

	require.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, 10*time.Millisecond)
}

func TestKeyedLocks_IndependentKeys(t *testing.T) {
	locks := newKeyedLocks()
	ctx := context.Background()

	u1, err := locks.Lock(ctx, 1)
	require.NoError(t, err)
	u2, err := locks.Lock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, locks.size())

	u1()
	u2()
	assert.Equal(t, 0, locks.size())
}

func TestKeyedLocks_CancelledWaiter(t *testing.T) {
	locks := newKeyedLocks()

	unlock, err := locks.Lock(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locks.Lock(ctx, 7)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.size())

	unlock()
	assert.Equal(t, 0, locks.size())
}

func TestKeyedLocks_UnlockIsIdempotent(t *testing.T) {
	locks := newKeyedLocks()

	unlock, err := locks.Lock(context.Background(), 3)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Equal(t, 0, locks.size())
	u, err := locks.Lock(context.Background(), 3)
	require.NoError(t, err)
	u()
}
