package matching

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gridcab/dispatch/config"
	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode: types.MatcherService,
		Grid: config.GridConfig{SizeX: 10, SizeY: 10},
		Matching: config.MatchingConfig{
			MaxSearchRadius: 5,
			ProposalTimeout: 25 * time.Second,
			DriverLockTTL:   30 * time.Second,
			RetryDelay:      20 * time.Millisecond,
			ReaperInterval:  time.Second,
			SweepInterval:   time.Second,
			HeartbeatTTL:    10 * time.Second,
			Workers:         1,
		},
	}
}

func testLogger() logger.Logger {
	return logger.InitLogger("test", logger.LevelError)
}

// stack bundles the real substrate adapters on an in-process Redis.
type stack struct {
	mr       *miniredis.Miniredis
	client   *goredis.Client
	presence *redisadapter.Presence
	locks    *redisadapter.Locks
	streams  *redisadapter.Streams
	timeouts *redisadapter.Timeouts
	bus      *redisadapter.Bus
}

func newStack(t *testing.T, cfg *config.Config) *stack {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	streams := redisadapter.NewStreams(client, -1)
	require.NoError(t, streams.EnsureGroup(context.Background()))

	return &stack{
		mr:       mr,
		client:   client,
		presence: redisadapter.NewPresence(client, cfg.Matching.HeartbeatTTL),
		locks:    redisadapter.NewLocks(client),
		streams:  streams,
		timeouts: redisadapter.NewTimeouts(client),
		bus:      redisadapter.NewBus(client, "test"),
	}
}

func newTestWorker(st *stack, cfg *config.Config, rides RideLoader) *Worker {
	search := NewSearch(st.presence, st.locks, cfg, testLogger())
	return NewWorker(st.streams, rides, search, st.timeouts, st.bus, cfg, testLogger())
}

// readOne fetches the next stream entry for the test consumer.
func readOne(t *testing.T, st *stack) *models.RideEvent {
	t.Helper()

	events, err := st.streams.Read(context.Background(), "test-consumer")
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func subscribeChannel(t *testing.T, client *goredis.Client, channel string) <-chan *goredis.Message {
	t.Helper()

	pubsub := client.Subscribe(context.Background(), channel)
	t.Cleanup(func() { _ = pubsub.Close() })

	_, err := pubsub.Receive(context.Background())
	require.NoError(t, err)
	return pubsub.Channel()
}

type fakeRides struct {
	mu    sync.Mutex
	rides map[int64]*models.Ride
}

func newFakeRides(rides ...*models.Ride) *fakeRides {
	f := &fakeRides{rides: make(map[int64]*models.Ride)}
	for _, r := range rides {
		f.rides[r.ID] = r
	}
	return f
}

func (f *fakeRides) GetByID(_ context.Context, id int64) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rides[id]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

type fakeMirror struct {
	mu       sync.Mutex
	statuses map[int64]types.DriverStatus
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{statuses: make(map[int64]types.DriverStatus)}
}

func (f *fakeMirror) SetStatus(_ context.Context, driverID int64, status types.DriverStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[driverID] = status
	return nil
}

func (f *fakeMirror) status(driverID int64) (types.DriverStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[driverID]
	return s, ok
}
