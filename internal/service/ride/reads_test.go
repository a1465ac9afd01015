package ride

import (
	"context"
	"testing"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestETAForAssignedRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))
	require.NoError(t, st.presence.Heartbeat(ctx, 7, models.Cell{X: 4, Y: 4}, types.DriverBusy))

	eta, pos, err := st.svc.ETA(ctx, ride.ID)
	require.NoError(t, err)

	// От (4,4) до (2,3) три клетки по 30 секунд.
	assert.Equal(t, 90*time.Second, eta)
	assert.Equal(t, models.Cell{X: 4, Y: 4}, pos)
}

func TestETAPendingRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)
	ride := seedPending(t, st, 100)

	_, _, err := st.svc.ETA(ctx, ride.ID)
	assert.ErrorIs(t, err, types.ErrDriverNotFound)
}

func TestETATerminalRide(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	_, err := st.svc.Cancel(ctx, 100, ride.ID)
	require.NoError(t, err)

	_, _, err = st.svc.ETA(ctx, ride.ID)
	assert.ErrorIs(t, err, types.ErrNoActiveRide)
}

func TestETADriverWentDark(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))

	// Водитель назначен, но его heartbeat уже истёк.
	_, _, err := st.svc.ETA(ctx, ride.ID)
	assert.ErrorIs(t, err, types.ErrDriverNotFound)
}

func TestGetByIDUnknownRide(t *testing.T) {
	st := newRideStack(t)

	_, err := st.svc.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, types.ErrRideNotFound)
}

func TestActiveByDriver(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	_, err := st.svc.ActiveByDriver(ctx, 7)
	assert.ErrorIs(t, err, types.ErrNoActiveRide)

	ride := seedPending(t, st, 100)
	require.NoError(t, st.repo.AssignDriver(ctx, ride.ID, 7))

	active, err := st.svc.ActiveByDriver(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, ride.ID, active.ID)
}

func TestListByPassengerPagination(t *testing.T) {
	ctx := context.Background()
	st := newRideStack(t)

	for i := 0; i < 5; i++ {
		ride := seedPending(t, st, 100)
		_, err := st.svc.Cancel(ctx, 100, ride.ID)
		require.NoError(t, err)
	}

	page, err := st.svc.ListByPassenger(ctx, 100, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 5, page[0].ID)
	assert.EqualValues(t, 4, page[1].ID)

	page, err = st.svc.ListByPassenger(ctx, 100, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.EqualValues(t, 3, page[0].ID)

	// Нулевой лимит заменяется дефолтным.
	page, err = st.svc.ListByPassenger(ctx, 100, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 5)
}

func TestClampPage(t *testing.T) {
	limit, offset := clampPage(0, 0)
	assert.Equal(t, defaultListLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = clampPage(-3, -7)
	assert.Equal(t, defaultListLimit, limit)
	assert.Equal(t, 0, offset)

	limit, _ = clampPage(1000, 10)
	assert.Equal(t, maxListLimit, limit)

	limit, offset = clampPage(50, 5)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 5, offset)
}
