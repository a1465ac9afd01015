package ride

import (
	"context"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (s *Service) GetByID(ctx context.Context, rideID int64) (*models.Ride, error) {
	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ride, nil
}

func (s *Service) ActiveByPassenger(ctx context.Context, passengerID int64) (*models.Ride, error) {
	ride, err := s.rides.ActiveByPassenger(ctx, passengerID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ride, nil
}

func (s *Service) ActiveByDriver(ctx context.Context, driverID int64) (*models.Ride, error) {
	ride, err := s.rides.ActiveByDriver(ctx, driverID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return ride, nil
}

func (s *Service) ListByPassenger(ctx context.Context, passengerID int64, limit, offset int) ([]models.Ride, error) {
	limit, offset = clampPage(limit, offset)
	rides, err := s.rides.ListByPassenger(ctx, passengerID, limit, offset)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return rides, nil
}

func (s *Service) ListByDriver(ctx context.Context, driverID int64, limit, offset int) ([]models.Ride, error) {
	limit, offset = clampPage(limit, offset)
	rides, err := s.rides.ListByDriver(ctx, driverID, limit, offset)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	return rides, nil
}

// ETA reports how far the assigned driver is from the pickup cell.
func (s *Service) ETA(ctx context.Context, rideID int64) (time.Duration, models.Cell, error) {
	ctx = wrap.WithAction(ctx, "ride_eta")
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(rideID, 10))

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return 0, models.Cell{}, wrap.Error(ctx, err)
	}
	if ride.Status.Terminal() {
		return 0, models.Cell{}, wrap.Error(ctx, types.ErrNoActiveRide)
	}
	if ride.DriverID == nil {
		return 0, models.Cell{}, wrap.Error(ctx, types.ErrDriverNotFound)
	}

	pos, ok, err := s.presence.Location(ctx, *ride.DriverID)
	if err != nil {
		return 0, models.Cell{}, wrap.Error(ctx, err)
	}
	if !ok {
		return 0, models.Cell{}, wrap.Error(ctx, types.ErrDriverNotFound)
	}

	return s.calc.ETA(pos, ride.Start), pos, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
