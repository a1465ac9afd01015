package matching

import (
	"context"
	"testing"
	"time"

	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReaper(st *stack) *Reaper {
	return NewReaper(st.timeouts, st.locks, st.streams, testConfig(), testLogger())
}

func TestReaperRequeuesExpiredProposal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	reaper := newTestReaper(st)

	ok, err := st.locks.TryLock(ctx, 7, 1, cfg.Matching.DriverLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	p := models.Proposal{RideID: 1, DriverID: 7}
	require.NoError(t, st.timeouts.Schedule(ctx, p, time.Now().Add(-time.Second)))

	reaper.tick(ctx, time.Now())

	// Лок снят, поездка вернулась в очередь с исключённым водителем.
	assert.False(t, st.mr.Exists("driver_lock:7"))

	ev := readOne(t, st)
	assert.Equal(t, types.EventRetryRide, ev.Kind)
	assert.EqualValues(t, 1, ev.RideID)
	assert.Equal(t, []int64{7}, ev.Exclude)

	// Дедлайн уже не в индексе.
	n, err := st.client.ZCard(ctx, "proposal_timeouts").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestReaperLeavesAcceptedProposalAlone(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	reaper := newTestReaper(st)

	ok, err := st.locks.TryLock(ctx, 7, 1, cfg.Matching.DriverLockTTL)
	require.NoError(t, err)
	require.True(t, ok)

	// Водитель принял заказ до того, как реапер добрался до дедлайна.
	promoted, err := st.locks.Promote(ctx, 7, 1)
	require.NoError(t, err)
	require.True(t, promoted)

	require.NoError(t, st.timeouts.Schedule(ctx, models.Proposal{RideID: 1, DriverID: 7}, time.Now().Add(-time.Second)))

	reaper.tick(ctx, time.Now())

	val, err := st.client.Get(ctx, "driver_lock:7").Result()
	require.NoError(t, err)
	assert.Equal(t, "assigned:1", val)

	n, err := st.client.XLen(ctx, redisadapter.StreamRetryEvents).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "accepted ride must not be requeued")
}

func TestReaperIgnoresFutureDeadlines(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	reaper := newTestReaper(st)

	ok, err := st.locks.TryLock(ctx, 7, 1, cfg.Matching.DriverLockTTL)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, st.timeouts.Schedule(ctx, models.Proposal{RideID: 1, DriverID: 7}, time.Now().Add(time.Hour)))

	reaper.tick(ctx, time.Now())

	assert.True(t, st.mr.Exists("driver_lock:7"))

	n, err := st.client.ZCard(ctx, "proposal_timeouts").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReaperHandlesAlreadyExpiredLock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	reaper := newTestReaper(st)

	// Лок истёк сам по себе, остался только дедлайн.
	require.NoError(t, st.timeouts.Schedule(ctx, models.Proposal{RideID: 1, DriverID: 7}, time.Now().Add(-time.Second)))

	reaper.tick(ctx, time.Now())

	n, err := st.client.XLen(ctx, redisadapter.StreamRetryEvents).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "requeue happens via the lock holder path only")
}
