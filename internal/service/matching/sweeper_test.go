package matching

import (
	"context"
	"testing"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesStaleDrivers(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	mirror := newFakeMirror()
	sweeper := NewSweeper(st.presence, mirror, cfg, testLogger())

	require.NoError(t, st.presence.Heartbeat(ctx, 1, models.Cell{X: 2, Y: 2}, types.DriverOnline))

	// Хартбит водителя 1 протухает, водитель 2 регистрируется после перемотки.
	st.mr.FastForward(cfg.Matching.HeartbeatTTL + time.Second)
	require.NoError(t, st.presence.Heartbeat(ctx, 2, models.Cell{X: 3, Y: 3}, types.DriverOnline))

	sweeper.sweep(ctx)

	_, ok, err := st.presence.Location(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "stale driver must leave the live index")

	occupants, err := st.presence.CellOccupants(ctx, models.Cell{X: 2, Y: 2})
	require.NoError(t, err)
	assert.Empty(t, occupants)

	status, recorded := mirror.status(1)
	assert.True(t, recorded)
	assert.Equal(t, types.DriverOffline, status)

	// Живой водитель не тронут.
	_, ok, err = st.presence.Location(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	_, recorded = mirror.status(2)
	assert.False(t, recorded)
}

func TestSweepEmptyIndexIsNoop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	st := newStack(t, cfg)
	mirror := newFakeMirror()
	sweeper := NewSweeper(st.presence, mirror, cfg, testLogger())

	sweeper.sweep(ctx)

	assert.Empty(t, mirror.statuses)
}
