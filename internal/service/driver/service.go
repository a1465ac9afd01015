package driver

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/internal/service/matching"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"
)

/*
Service keeps the live presence index and the relational mirror in step.
The index is the source of truth for matching; the mirror row only feeds
history and operational queries, so mirror writes are best-effort.
*/
type Service struct {
	presence PresenceIndex
	mirror   DriverMirror
	l        logger.Logger

	gridX     int
	gridY     int
	maxRadius int
	service   string
}

func New(presence PresenceIndex, mirror DriverMirror, cfg *config.Config, l logger.Logger) *Service {
	return &Service{
		presence:  presence,
		mirror:    mirror,
		l:         l,
		gridX:     cfg.Grid.SizeX,
		gridY:     cfg.Grid.SizeY,
		maxRadius: cfg.Matching.MaxSearchRadius,
		service:   string(cfg.Mode),
	}
}

// Heartbeat registers the driver at a cell and refreshes liveness.
// Status online or busy; going offline is a SetStatus call.
func (s *Service) Heartbeat(ctx context.Context, driverID int64, cell models.Cell, status types.DriverStatus) error {
	ctx = wrap.WithAction(ctx, "driver_heartbeat")
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	return s.heartbeat(ctx, driverID, cell, status)
}

// SetLocation moves the driver keeping the current presence status.
func (s *Service) SetLocation(ctx context.Context, driverID int64, cell models.Cell) error {
	ctx = wrap.WithAction(ctx, "driver_set_location")
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	return s.heartbeat(ctx, driverID, cell, s.currentStatus(ctx, driverID))
}

// SetStatus switches the driver between offline, online and busy. Going
// online requires coordinates when the driver is not in the index yet.
func (s *Service) SetStatus(ctx context.Context, driverID int64, status types.DriverStatus, at *models.Cell) error {
	ctx = wrap.WithAction(ctx, "driver_set_status")
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	switch status {
	case types.DriverOffline:
		if err := s.presence.Offline(ctx, driverID); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.mirror.SetStatus(ctx, driverID, types.DriverOffline); err != nil {
			s.l.Warn(ctx, "driver mirror update failed", "error", err.Error())
		}
		s.l.Info(ctx, "driver went offline")
		return nil

	case types.DriverOnline, types.DriverBusy:
		if at != nil {
			return s.heartbeat(ctx, driverID, *at, status)
		}
		if err := s.presence.SetStatus(ctx, driverID, status); err != nil {
			return wrap.Error(ctx, err)
		}
		if err := s.mirror.SetStatus(ctx, driverID, status); err != nil {
			s.l.Warn(ctx, "driver mirror update failed", "error", err.Error())
		}
		return nil

	default:
		return wrap.Error(ctx, fmt.Errorf("driver: SetStatus: unknown status %q", status))
	}
}

// Nearby lists drivers ring by ring around a cell, nearest first. The
// radius is capped by the matching search radius.
func (s *Service) Nearby(ctx context.Context, at models.Cell, radius int) ([]models.NearbyDriver, error) {
	ctx = wrap.WithAction(ctx, "drivers_nearby")

	if !at.InBounds(s.gridX, s.gridY) {
		return nil, wrap.Error(ctx, types.ErrInvalidCoordinate)
	}
	if radius < 0 {
		radius = 0
	}
	if radius > s.maxRadius {
		radius = s.maxRadius
	}

	found := make([]models.NearbyDriver, 0)
	seen := make(map[int64]bool)

	for r := 0; r <= radius; r++ {
		cells := matching.RingCells(at, r, s.gridX, s.gridY)
		if len(cells) == 0 {
			break
		}

		buckets, err := s.presence.CellsOccupants(ctx, cells)
		if err != nil {
			return nil, wrap.Error(ctx, err)
		}

		ring := make([]models.NearbyDriver, 0)
		for i, occupants := range buckets {
			for _, o := range occupants {
				if seen[o.DriverID] {
					continue
				}
				seen[o.DriverID] = true
				ring = append(ring, models.NearbyDriver{
					DriverID: o.DriverID,
					Status:   o.Status,
					Cell:     cells[i],
					Distance: r,
				})
			}
		}

		// Внутри кольца порядок обхода хэшей случайный.
		slices.SortFunc(ring, func(a, b models.NearbyDriver) int {
			return int(a.DriverID - b.DriverID)
		})
		found = append(found, ring...)
	}

	return found, nil
}

// Location returns the driver's live cell.
func (s *Service) Location(ctx context.Context, driverID int64) (models.Cell, error) {
	cell, ok, err := s.presence.Location(ctx, driverID)
	if err != nil {
		return models.Cell{}, wrap.Error(ctx, err)
	}
	if !ok {
		return models.Cell{}, wrap.Error(ctx, types.ErrDriverNotFound)
	}
	return cell, nil
}

func (s *Service) heartbeat(ctx context.Context, driverID int64, cell models.Cell, status types.DriverStatus) error {
	if !cell.InBounds(s.gridX, s.gridY) {
		return wrap.Error(ctx, types.ErrInvalidCoordinate)
	}
	if status != types.DriverOnline && status != types.DriverBusy {
		return wrap.Error(ctx, fmt.Errorf("driver: heartbeat with status %q", status))
	}

	if err := s.presence.Heartbeat(ctx, driverID, cell, status); err != nil {
		return wrap.Error(ctx, err)
	}

	now := time.Now()
	if err := s.mirror.Upsert(ctx, models.Driver{
		ID:         driverID,
		Status:     status,
		Cell:       cell,
		LastOnline: &now,
	}); err != nil {
		// Живой индекс уже обновлён, зеркало догонит на следующем heartbeat.
		s.l.Warn(ctx, "driver mirror upsert failed", "error", err.Error())
	}

	metrics.HeartbeatsTotal.WithLabelValues(s.service).Inc()
	return nil
}

// currentStatus читает статус водителя из его текущей ячейки. Водитель без
// живой локации получает online, как при первом heartbeat.
func (s *Service) currentStatus(ctx context.Context, driverID int64) types.DriverStatus {
	cell, ok, err := s.presence.Location(ctx, driverID)
	if err != nil || !ok {
		return types.DriverOnline
	}

	occupants, err := s.presence.CellOccupants(ctx, cell)
	if err != nil {
		return types.DriverOnline
	}
	for _, o := range occupants {
		if o.DriverID == driverID {
			return o.Status
		}
	}
	return types.DriverOnline
}
