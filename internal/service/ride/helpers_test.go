package ride

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gridcab/dispatch/config"
	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	ridecalc "github.com/gridcab/dispatch/internal/service/calculator"
	"github.com/gridcab/dispatch/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// fakeRideRepo mimics the guarded UPDATE semantics of the real repo,
// including the partial unique index on active rides per driver.
type fakeRideRepo struct {
	mu     sync.Mutex
	nextID int64
	rides  map[int64]*models.Ride
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{rides: make(map[int64]*models.Ride)}
}

func (f *fakeRideRepo) Create(_ context.Context, ride *models.Ride) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	now := time.Now()

	stored := *ride
	stored.ID = f.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.Version = 1
	f.rides[stored.ID] = &stored

	cp := stored
	return &cp, nil
}

func (f *fakeRideRepo) GetByID(_ context.Context, rideID int64) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRideRepo) AssignDriver(_ context.Context, rideID, driverID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.rides {
		if o.ID != rideID && o.DriverID != nil && *o.DriverID == driverID && !o.Status.Terminal() {
			return types.ErrActiveRideExists
		}
	}

	r, ok := f.rides[rideID]
	if !ok || r.Status != types.StatusPending {
		return types.ErrRideStateConflict
	}

	r.Status = types.StatusDriverAssigned
	r.DriverID = &driverID
	r.UpdatedAt = time.Now()
	r.Version++
	return nil
}

func (f *fakeRideRepo) UpdateStatus(_ context.Context, rideID int64, from, to types.RideStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rides[rideID]
	if !ok || r.Status != from {
		return types.ErrRideStateConflict
	}

	r.Status = to
	r.UpdatedAt = time.Now()
	r.Version++
	return nil
}

func (f *fakeRideRepo) ActiveByPassenger(_ context.Context, passengerID int64) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rides {
		if r.PassengerID == passengerID && !r.Status.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, types.ErrNoActiveRide
}

func (f *fakeRideRepo) ActiveByDriver(_ context.Context, driverID int64) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rides {
		if r.DriverID != nil && *r.DriverID == driverID && !r.Status.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, types.ErrNoActiveRide
}

func (f *fakeRideRepo) ListByPassenger(_ context.Context, passengerID int64, limit, offset int) ([]models.Ride, error) {
	return f.list(func(r *models.Ride) bool { return r.PassengerID == passengerID }, limit, offset), nil
}

func (f *fakeRideRepo) ListByDriver(_ context.Context, driverID int64, limit, offset int) ([]models.Ride, error) {
	return f.list(func(r *models.Ride) bool { return r.DriverID != nil && *r.DriverID == driverID }, limit, offset), nil
}

func (f *fakeRideRepo) list(match func(*models.Ride) bool, limit, offset int) []models.Ride {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Ride, 0)
	// ids растут монотонно, обход от новых к старым
	for id := f.nextID; id > 0; id-- {
		r, ok := f.rides[id]
		if !ok || !match(r) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, *r)
	}
	return out
}

// fakeTrm runs the closure without a real transaction.
type fakeTrm struct{}

func (fakeTrm) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
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

type rideStack struct {
	mr       *miniredis.Miniredis
	client   *goredis.Client
	repo     *fakeRideRepo
	locks    *redisadapter.Locks
	streams  *redisadapter.Streams
	timeouts *redisadapter.Timeouts
	presence *redisadapter.Presence
	mirror   *fakeMirror
	svc      *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Mode: types.GatewayService,
		Grid: config.GridConfig{SizeX: 10, SizeY: 10},
		Matching: config.MatchingConfig{
			MaxSearchRadius: 5,
			ProposalTimeout: 25 * time.Second,
			DriverLockTTL:   30 * time.Second,
			HeartbeatTTL:    10 * time.Second,
		},
		Fare: config.FareConfig{
			BaseFare:     100,
			PricePerCell: 15,
			MinFare:      150,
			TimePerCell:  30 * time.Second,
		},
	}
}

func newRideStack(t *testing.T) *rideStack {
	t.Helper()

	cfg := testConfig()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	streams := redisadapter.NewStreams(client, -1)
	require.NoError(t, streams.EnsureGroup(context.Background()))

	st := &rideStack{
		mr:       mr,
		client:   client,
		repo:     newFakeRideRepo(),
		locks:    redisadapter.NewLocks(client),
		streams:  streams,
		timeouts: redisadapter.NewTimeouts(client),
		presence: redisadapter.NewPresence(client, cfg.Matching.HeartbeatTTL),
		mirror:   newFakeMirror(),
	}

	st.svc = New(
		st.repo,
		st.locks,
		st.streams,
		st.timeouts,
		st.presence,
		st.mirror,
		redisadapter.NewBus(client, "test"),
		ridecalc.New(cfg.Fare),
		fakeTrm{},
		cfg,
		logger.InitLogger("test", logger.LevelError),
	)
	return st
}

// seedPending inserts a pending ride directly through the repo.
func seedPending(t *testing.T, st *rideStack, passengerID int64) *models.Ride {
	t.Helper()

	ride, err := st.repo.Create(context.Background(), &models.Ride{
		PassengerID: passengerID,
		Status:      types.StatusPending,
		Start:       models.Cell{X: 2, Y: 3},
		End:         models.Cell{X: 8, Y: 8},
		Price:       265,
	})
	require.NoError(t, err)
	return ride
}

// holdProposal locks the driver for the ride and schedules the deadline,
// mirroring what the matching worker does.
func holdProposal(t *testing.T, st *rideStack, driverID, rideID int64) {
	t.Helper()
	ctx := context.Background()

	ok, err := st.locks.TryLock(ctx, driverID, rideID, 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, st.timeouts.Schedule(ctx, models.Proposal{RideID: rideID, DriverID: driverID}, time.Now().Add(25*time.Second)))
}

func subscribeChannel(t *testing.T, client *goredis.Client, channel string) <-chan *goredis.Message {
	t.Helper()

	pubsub := client.Subscribe(context.Background(), channel)
	t.Cleanup(func() { _ = pubsub.Close() })

	_, err := pubsub.Receive(context.Background())
	require.NoError(t, err)
	return pubsub.Channel()
}
