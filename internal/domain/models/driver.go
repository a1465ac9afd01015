package models

import (
	"time"

	"github.com/gridcab/dispatch/internal/domain/types"
)

// Occupant is one driver entry of a cell bucket hash: field = driver id,
// value = presence status.
type Occupant struct {
	DriverID int64
	Status   types.DriverStatus
}

// Driver — реляционное зеркало живого индекса присутствия.
// Источник истины для матчинга остаётся в substrate, строка в базе
// нужна для истории и операционных запросов.
type Driver struct {
	ID         int64
	Status     types.DriverStatus
	Cell       Cell
	LastOnline *time.Time
}

// NearbyDriver is one row of the nearby-drivers query: an occupant plus the
// cell it was found in and the ring distance from the query point.
type NearbyDriver struct {
	DriverID int64
	Status   types.DriverStatus
	Cell     Cell
	Distance int
}
