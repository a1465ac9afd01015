package ride

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvent(t *testing.T, st *rideStack) *models.RideEvent {
	t.Helper()

	events, err := st.streams.Read(context.Background(), "test-consumer")
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func expectEnvelope(t *testing.T, msgs <-chan *goredis.Message, want types.NotificationType) models.Envelope {
	t.Helper()

	select {
	case msg := <-msgs:
		var env models.Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		require.Equal(t, want, env.Type)
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no %s notification arrived", want)
		return models.Envelope{}
	}
}

func TestCreateRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride, err := st.svc.Create(ctx, 100, models.Cell{X: 2, Y: 3}, models.Cell{X: 8, Y: 8})
	require.NoError(t, err)

	assert.EqualValues(t, 1, ride.ID)
	assert.Equal(t, types.StatusPending, ride.Status)
	// Манхэттен 11 клеток: 100 + 11*15 = 265.
	assert.EqualValues(t, 265, ride.Price)

	ev := readEvent(t, st)
	assert.Equal(t, types.EventNewRide, ev.Kind)
	assert.Equal(t, ride.ID, ev.RideID)
	assert.Equal(t, models.Cell{X: 2, Y: 3}, ev.Start)
	assert.Equal(t, models.Cell{X: 8, Y: 8}, ev.End)
	assert.EqualValues(t, 265, ev.Price)
}

func TestCreateShortRideGetsMinimumFare(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride, err := st.svc.Create(ctx, 100, models.Cell{X: 2, Y: 3}, models.Cell{X: 3, Y: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 150, ride.Price)
}

func TestCreateRejectsSecondActiveRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	seedPending(t, st, 100)

	_, err := st.svc.Create(ctx, 100, models.Cell{X: 1, Y: 1}, models.Cell{X: 2, Y: 2})
	assert.ErrorIs(t, err, types.ErrActiveRideExists)

	n, err := st.client.XLen(ctx, redisadapter.StreamOrderEvents).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestCreateRejectsBadCoordinates(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	_, err := st.svc.Create(ctx, 100, models.Cell{X: -1, Y: 3}, models.Cell{X: 8, Y: 8})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)

	_, err = st.svc.Create(ctx, 100, models.Cell{X: 1, Y: 3}, models.Cell{X: 80, Y: 8})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinate)
}

func TestAcceptAssignsRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	holdProposal(t, st, 7, ride.ID)
	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 4, Y: 4}, types.DriverOnline))

	msgs := subscribeChannel(t, st.client, redisadapter.ChannelPassenger)

	accepted, err := st.svc.Accept(ctx, 7, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDriverAssigned, accepted.Status)
	require.NotNil(t, accepted.DriverID)
	assert.EqualValues(t, 7, *accepted.DriverID)

	// Лок переведён в assigned и больше не истекает.
	val, err := st.client.Get(ctx, "driver_lock:7").Result()
	require.NoError(t, err)
	assert.Equal(t, "assigned:1", val)
	assert.Equal(t, time.Duration(0), st.mr.TTL("driver_lock:7"))

	// Дедлайн предложения снят.
	n, err := st.client.ZCard(ctx, "proposal_timeouts").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	// Водитель занят в обоих индексах.
	occupants, err := st.presence.CellOccupants(ctx, models.Cell{X: 4, Y: 4})
	require.NoError(t, err)
	require.Len(t, occupants, 1)
	assert.Equal(t, types.DriverBusy, occupants[0].Status)
	status, ok := st.mirror.status(7)
	require.True(t, ok)
	assert.Equal(t, types.DriverBusy, status)

	env := expectEnvelope(t, msgs, types.NotifyRideAccepted)
	assert.EqualValues(t, 100, env.RecipientUserID)

	var payload models.RideAcceptedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, ride.ID, payload.RideID)
	assert.EqualValues(t, 7, payload.DriverID)
	assert.Equal(t, "driver_assigned", payload.Status)
}

func TestAcceptWithoutProposal(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	_, err := st.svc.Accept(ctx, 7, ride.ID)
	assert.ErrorIs(t, err, types.ErrProposalNotHeld)
}

func TestAcceptLosesToConcurrentAssignment(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 9))

	holdProposal(t, st, 7, ride.ID)
	_, err := st.svc.Accept(ctx, 7, ride.ID)
	assert.ErrorIs(t, err, types.ErrRideStateConflict)
}

func TestAcceptSecondRideForBusyDriver(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	first := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, first.ID, 7))

	second := seedPending(t, st, 200)
	holdProposal(t, st, 7, second.ID)

	_, err := st.svc.Accept(ctx, 7, second.ID)
	assert.ErrorIs(t, err, types.ErrActiveRideExists)
}

func TestRejectRequeuesWithExclusion(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	holdProposal(t, st, 7, ride.ID)

	require.NoError(t, st.svc.Reject(ctx, 7, ride.ID))

	assert.False(t, st.mr.Exists("driver_lock:7"))

	n, err := st.client.ZCard(ctx, "proposal_timeouts").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	ev := readEvent(t, st)
	assert.Equal(t, types.EventRetryRide, ev.Kind)
	assert.Equal(t, ride.ID, ev.RideID)
	assert.Equal(t, []int64{7}, ev.Exclude)
}

func TestRejectWithoutProposal(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	err := st.svc.Reject(ctx, 7, ride.ID)
	assert.ErrorIs(t, err, types.ErrProposalNotHeld)

	n, err := st.client.XLen(ctx, redisadapter.StreamRetryEvents).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestCancelPendingRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	cancelled, err := st.svc.Cancel(ctx, 100, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)
	assert.Equal(t, 2, cancelled.Version)
}

func TestCancelAssignedRideReleasesDriver(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	holdProposal(t, st, 7, ride.ID)
	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 4, Y: 4}, types.DriverOnline))

	_, err := st.svc.Accept(ctx, 7, ride.ID)
	require.NoError(t, err)

	msgs := subscribeChannel(t, st.client, redisadapter.ChannelDriver)

	cancelled, err := st.svc.Cancel(ctx, 100, ride.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCancelled, cancelled.Status)

	env := expectEnvelope(t, msgs, types.NotifyRideCancelled)
	assert.EqualValues(t, 7, env.RecipientUserID)

	// Назначенный лок снят, водитель снова свободен.
	assert.False(t, st.mr.Exists("driver_lock:7"))
	occupants, err := st.presence.CellOccupants(ctx, models.Cell{X: 4, Y: 4})
	require.NoError(t, err)
	require.Len(t, occupants, 1)
	assert.Equal(t, types.DriverOnline, occupants[0].Status)
	status, _ := st.mirror.status(7)
	assert.Equal(t, types.DriverOnline, status)
}

func TestCancelRejectsForeignRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	_, err := st.svc.Cancel(ctx, 200, ride.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestCancelTerminalRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	_, err := st.svc.Cancel(ctx, 100, ride.ID)
	require.NoError(t, err)

	_, err = st.svc.Cancel(ctx, 100, ride.ID)
	assert.ErrorIs(t, err, types.ErrRideStateConflict)
}

func TestCancelUnknownRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	_, err := st.svc.Cancel(ctx, 100, 404)
	assert.ErrorIs(t, err, types.ErrRideNotFound)
}

// Гонка accept против cancel: назначение после отмены невозможно, победитель
// ровно один.
func TestCancelAcceptRace(t *testing.T) {
	ctx := context.Background()

	for range 20 {
		st := newRideStack(t)
		ride := seedPending(t, st, 100)
		holdProposal(t, st, 7, ride.ID)

		var (
			wg         sync.WaitGroup
			errA, errC error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errA = st.svc.Accept(ctx, 7, ride.ID)
		}()
		go func() {
			defer wg.Done()
			_, errC = st.svc.Cancel(ctx, 100, ride.ID)
		}()
		wg.Wait()

		final, err := st.repo.GetByID(ctx, ride.ID)
		require.NoError(t, err)

		switch final.Status {
		case types.StatusCancelled:
			// Либо отмена выиграла гонку, либо прошла уже после назначения.
		case types.StatusDriverAssigned:
			require.Error(t, errC, "assigned ride must mean the cancel lost")
			require.NoError(t, errA)
		default:
			t.Fatalf("unexpected final status %s", final.Status)
		}
	}
}

func TestUpdateStatusForwardChain(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	holdProposal(t, st, 7, ride.ID)
	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 4, Y: 4}, types.DriverOnline))
	_, err := st.svc.Accept(ctx, 7, ride.ID)
	require.NoError(t, err)

	for _, next := range []types.RideStatus{
		types.StatusDriverArrived,
		types.StatusPassengerOnboard,
		types.StatusInProgress,
		types.StatusCompleted,
	} {
		updated, err := st.svc.UpdateStatus(ctx, 7, ride.ID, next)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, next, updated.Status)
	}

	// Завершение вернуло водителя в пул.
	assert.False(t, st.mr.Exists("driver_lock:7"))
	occupants, err := st.presence.CellOccupants(ctx, models.Cell{X: 4, Y: 4})
	require.NoError(t, err)
	require.Len(t, occupants, 1)
	assert.Equal(t, types.DriverOnline, occupants[0].Status)
}

func TestUpdateStatusRejectsSkips(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))

	_, err := st.svc.UpdateStatus(ctx, 7, ride.ID, types.StatusInProgress)
	assert.ErrorIs(t, err, types.ErrRideStateConflict)
}

func TestUpdateStatusRejectsForeignDriver(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))

	_, err := st.svc.UpdateStatus(ctx, 9, ride.ID, types.StatusDriverArrived)
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestUpdateStatusNotifiesPassenger(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))

	msgs := subscribeChannel(t, st.client, redisadapter.ChannelPassenger)

	_, err := st.svc.UpdateStatus(ctx, 7, ride.ID, types.StatusDriverArrived)
	require.NoError(t, err)

	env := expectEnvelope(t, msgs, types.NotifyRideStatusUpdate)
	assert.EqualValues(t, 100, env.RecipientUserID)

	var payload models.RideStatusPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, ride.ID, payload.RideID)
	assert.Equal(t, "driver_arrived", payload.Status)
}
