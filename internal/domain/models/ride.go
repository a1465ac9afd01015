package models

import (
	"time"

	"github.com/gridcab/dispatch/internal/domain/types"
)

// Ride is the persistent ride record. Version is bumped on every status
// transition; guarded UPDATEs use the expected current status, so a stale
// writer loses instead of overwriting.
type Ride struct {
	ID          int64
	PassengerID int64
	DriverID    *int64
	Status      types.RideStatus
	Start       Cell
	End         Cell
	Price       float64

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
}

// Active возвращает false для терминальных статусов: завершённые и
// отменённые поездки больше не блокируют пассажира и водителя.
func (r *Ride) Active() bool {
	return !r.Status.Terminal()
}

// Quote — расчётные поля поездки, в базе не хранятся.
type Quote struct {
	Distance int           `json:"distance"`
	Price    float64       `json:"estimated_price"`
	Duration time.Duration `json:"-"`
}
