package matching

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, msgs <-chan *goredis.Message) models.Envelope {
	t.Helper()

	select {
	case msg := <-msgs:
		var env models.Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no notification arrived")
		return models.Envelope{}
	}
}

func pendingCount(t *testing.T, st *stack, stream string) int64 {
	t.Helper()

	res, err := st.client.XPending(context.Background(), stream, redisadapter.MatchingGroup).Result()
	require.NoError(t, err)
	return res.Count
}

func TestWorkerProposesToNearestDriver(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)

	ride := pendingRide(1, models.Cell{X: 2, Y: 3})
	w := newTestWorker(st, cfg, newFakeRides(ride))

	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 4, Y: 4}, types.DriverOnline))
	msgs := subscribeChannel(t, st.client, redisadapter.ChannelDriver)

	require.NoError(t, st.streams.AppendNewRide(ctx, models.NewRideEvent{
		RideID: 1,
		Start:  ride.Start,
		End:    ride.End,
		Price:  ride.Price,
	}))

	w.handle(ctx, readOne(t, st))

	// Водитель залочен на поездку.
	val, err := st.client.Get(ctx, "driver_lock:7").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	// Дедлайн предложения запланирован.
	members, err := st.client.ZRange(ctx, "proposal_timeouts", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1:7"}, members)

	// Водителю ушло предложение.
	env := decodeEnvelope(t, msgs)
	assert.Equal(t, types.NotifyNewOrderProposal, env.Type)
	assert.EqualValues(t, 7, env.RecipientUserID)

	var payload models.ProposalPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.EqualValues(t, 1, payload.RideID)
	assert.Equal(t, 2, payload.StartX)
	assert.Equal(t, 3, payload.StartY)
	assert.Equal(t, 9, payload.EndX)
	assert.Equal(t, 9, payload.EndY)
	assert.EqualValues(t, 150, payload.Price)

	// Запись подтверждена.
	assert.EqualValues(t, 0, pendingCount(t, st, redisadapter.StreamOrderEvents))
}

func TestWorkerNoDriversNotifiesAndRequeues(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)

	ride := pendingRide(5, models.Cell{X: 2, Y: 3})
	w := newTestWorker(st, cfg, newFakeRides(ride))

	msgs := subscribeChannel(t, st.client, redisadapter.ChannelPassenger)

	require.NoError(t, st.streams.AppendNewRide(ctx, models.NewRideEvent{
		RideID: 5,
		Start:  ride.Start,
		End:    ride.End,
		Price:  ride.Price,
	}))

	w.handle(ctx, readOne(t, st))

	env := decodeEnvelope(t, msgs)
	assert.Equal(t, types.NotifyNoDriversAvailable, env.Type)
	assert.EqualValues(t, ride.PassengerID, env.RecipientUserID)

	var payload models.NoDriversPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.EqualValues(t, 5, payload.RideID)

	assert.EqualValues(t, 0, pendingCount(t, st, redisadapter.StreamOrderEvents))

	// Отложенный повтор без исключений появляется после RetryDelay.
	require.Eventually(t, func() bool {
		return st.client.XLen(ctx, redisadapter.StreamRetryEvents).Val() == 1
	}, time.Second, 5*time.Millisecond)

	ev := readOne(t, st)
	assert.Equal(t, types.EventRetryRide, ev.Kind)
	assert.EqualValues(t, 5, ev.RideID)
	assert.Empty(t, ev.Exclude)
}

func TestWorkerRetryEventHonorsExclusion(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)

	ride := pendingRide(1, models.Cell{X: 5, Y: 5})
	w := newTestWorker(st, cfg, newFakeRides(ride))

	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 5, Y: 5}, types.DriverOnline))
	require.NoError(t, st.presence.Heartbeat(ctx, 9, models.Cell{X: 6, Y: 5}, types.DriverOnline))

	require.NoError(t, st.streams.AppendRetry(ctx, models.RetryRideEvent{
		RideID:  1,
		Exclude: []int64{7},
	}))

	w.handle(ctx, readOne(t, st))

	val, err := st.client.Get(ctx, "driver_lock:9").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", val)
	assert.False(t, st.mr.Exists("driver_lock:7"))
}

func TestWorkerAcksPoisonEntry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	w := newTestWorker(st, cfg, newFakeRides())

	_, err := st.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: redisadapter.StreamOrderEvents,
		Values: map[string]any{"ride_id": "garbage"},
	}).Result()
	require.NoError(t, err)

	ev := readOne(t, st)
	require.True(t, ev.Poison())

	w.handle(ctx, ev)

	assert.EqualValues(t, 0, pendingCount(t, st, redisadapter.StreamOrderEvents))
	keys := st.mr.Keys()
	for _, k := range keys {
		assert.NotContains(t, k, "driver_lock")
	}
}

func TestWorkerSkipsNonPendingRide(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)

	ride := pendingRide(1, models.Cell{X: 5, Y: 5})
	ride.Status = types.StatusCancelled
	w := newTestWorker(st, cfg, newFakeRides(ride))

	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 5, Y: 5}, types.DriverOnline))

	require.NoError(t, st.streams.AppendNewRide(ctx, models.NewRideEvent{
		RideID: 1,
		Start:  ride.Start,
		End:    ride.End,
		Price:  ride.Price,
	}))

	w.handle(ctx, readOne(t, st))

	assert.False(t, st.mr.Exists("driver_lock:7"))
	assert.EqualValues(t, 0, pendingCount(t, st, redisadapter.StreamOrderEvents))
}

func TestWorkerSkipsVanishedRide(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	w := newTestWorker(st, cfg, newFakeRides())

	require.NoError(t, st.streams.AppendNewRide(ctx, models.NewRideEvent{
		RideID: 404,
		Start:  models.Cell{X: 1, Y: 1},
		End:    models.Cell{X: 2, Y: 2},
		Price:  150,
	}))

	w.handle(ctx, readOne(t, st))

	assert.EqualValues(t, 0, pendingCount(t, st, redisadapter.StreamOrderEvents))
}
