package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockSingleWinner(t *testing.T) {
	_, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	const contenders = 16

	var (
		wins int64
		wg   sync.WaitGroup
	)
	for i := range contenders {
		wg.Add(1)
		go func(rideID int64) {
			defer wg.Done()
			ok, err := locks.TryLock(ctx, 7, rideID, 30*time.Second)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestHoldsProposal(t *testing.T) {
	_, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	held, err := locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.False(t, held, "no lock yet")

	ok, err := locks.TryLock(ctx, 7, 42, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	held, err = locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = locks.HoldsProposal(ctx, 7, 99)
	require.NoError(t, err)
	assert.False(t, held, "lock belongs to another ride")
}

func TestReleaseProposalGuardsValue(t *testing.T) {
	_, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	ok, err := locks.TryLock(ctx, 7, 42, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Чужая поездка не снимает лок.
	released, err := locks.ReleaseProposal(ctx, 7, 99)
	require.NoError(t, err)
	assert.False(t, released)

	held, err := locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, held)

	released, err = locks.ReleaseProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, released)

	held, err = locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPromoteDropsTTL(t *testing.T) {
	mr, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	ok, err := locks.TryLock(ctx, 7, 42, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, mr.TTL("driver_lock:7"), time.Duration(0))

	promoted, err := locks.Promote(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, promoted)

	val, err := client.Get(ctx, "driver_lock:7").Result()
	require.NoError(t, err)
	assert.Equal(t, "assigned:42", val)
	assert.Equal(t, time.Duration(0), mr.TTL("driver_lock:7"))

	// Прежнее значение уже не действует.
	released, err := locks.ReleaseProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = locks.ReleaseAssigned(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, released)
}

func TestPromoteGuardsValue(t *testing.T) {
	_, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	ok, err := locks.TryLock(ctx, 7, 42, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	promoted, err := locks.Promote(ctx, 7, 99)
	require.NoError(t, err)
	assert.False(t, promoted)

	held, err := locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestLockExpires(t *testing.T) {
	mr, client := newTestClient(t)
	locks := NewLocks(client)
	ctx := context.Background()

	ok, err := locks.TryLock(ctx, 7, 42, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	held, err := locks.HoldsProposal(ctx, 7, 42)
	require.NoError(t, err)
	assert.False(t, held)

	// После истечения лок свободен для следующей заявки.
	ok, err = locks.TryLock(ctx, 7, 43, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
