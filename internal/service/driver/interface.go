package driver

import (
	"context"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
)

/*=====================Presence Index=============================*/

type PresenceIndex interface {
	Heartbeat(ctx context.Context, driverID int64, cell models.Cell, status types.DriverStatus) error
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error
	Offline(ctx context.Context, driverID int64) error
	Location(ctx context.Context, driverID int64) (models.Cell, bool, error)
	CellOccupants(ctx context.Context, cell models.Cell) ([]models.Occupant, error)
	CellsOccupants(ctx context.Context, cells []models.Cell) ([][]models.Occupant, error)
}

/*=====================Driver Mirror==============================*/

type DriverMirror interface {
	Upsert(ctx context.Context, driver models.Driver) error
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus) error
}
