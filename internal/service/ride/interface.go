package ride

import (
	"context"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
)

/*=====================Ride Repository============================*/

type RideRepo interface {
	Create(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetByID(ctx context.Context, rideID int64) (*models.Ride, error)
	AssignDriver(ctx context.Context, rideID, driverID int64) error
	UpdateStatus(ctx context.Context, rideID int64, from, to types.RideStatus) error
	ActiveByPassenger(ctx context.Context, passengerID int64) (*models.Ride, error)
	ActiveByDriver(ctx context.Context, driverID int64) (*models.Ride, error)
	ListByPassenger(ctx context.Context, passengerID int64, limit, offset int) ([]models.Ride, error)
	ListByDriver(ctx context.Context, driverID int64, limit, offset int) ([]models.Ride, error)
}

/*=====================Lock Manager===============================*/

type LockManager interface {
	HoldsProposal(ctx context.Context, driverID, rideID int64) (bool, error)
	ReleaseProposal(ctx context.Context, driverID, rideID int64) (bool, error)
	Promote(ctx context.Context, driverID, rideID int64) (bool, error)
	ReleaseAssigned(ctx context.Context, driverID, rideID int64) (bool, error)
}

/*=====================Event Stream===============================*/

type EventStream interface {
	AppendNewRide(ctx context.Context, ev models.NewRideEvent) error
	AppendRetry(ctx context.Context, ev models.RetryRideEvent) error
}

/*=====================Proposal Timeouts==========================*/

type ProposalTimeouts interface {
	Cancel(ctx context.Context, p models.Proposal) error
}

/*=====================Presence Index=============================*/

type PresenceIndex interface {
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error
	Location(ctx context.Context, driverID int64) (models.Cell, bool, error)
}

/*=====================Driver Mirror==============================*/

type DriverMirror interface {
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error
}

/*=====================Notifier===================================*/

type Notifier interface {
	PublishDriver(ctx context.Context, env models.Envelope) error
	PublishPassenger(ctx context.Context, env models.Envelope) error
}
