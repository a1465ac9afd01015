package matching

import (
	"context"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
)

/*=================Presence Index==========================*/

type PresenceIndex interface {
	CellsOccupants(ctx context.Context, cells []models.Cell) ([][]models.Occupant, error)
	Alive(ctx context.Context, driverID int64) (bool, error)
	Offline(ctx context.Context, driverID int64) error
	ScanLocations(ctx context.Context) (map[int64]models.Cell, error)
}

/*=================Lock Manager============================*/

type LockManager interface {
	TryLock(ctx context.Context, driverID, rideID int64, ttl time.Duration) (bool, error)
	ReleaseProposal(ctx context.Context, driverID, rideID int64) (bool, error)
}

/*=================Event Stream============================*/

type EventStream interface {
	Read(ctx context.Context, consumer string) ([]*models.RideEvent, error)
	Ack(ctx context.Context, ev *models.RideEvent) error
	AppendRetry(ctx context.Context, ev models.RetryRideEvent) error
	ClaimPending(ctx context.Context, consumer string, minIdle time.Duration) ([]*models.RideEvent, error)
}

/*=================Proposal Timeouts=======================*/

type ProposalTimeouts interface {
	Schedule(ctx context.Context, p models.Proposal, deadline time.Time) error
	PopDue(ctx context.Context, now time.Time) ([]models.Proposal, error)
}

/*=================Notifier================================*/

type Notifier interface {
	PublishDriver(ctx context.Context, env models.Envelope) error
	PublishPassenger(ctx context.Context, env models.Envelope) error
}

/*=================Ride Loader=============================*/

type RideLoader interface {
	GetByID(ctx context.Context, rideID int64) (*models.Ride, error)
}

/*=================Driver Mirror===========================*/

type DriverMirror interface {
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error
}
