package matching

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
	"github.com/gridcab/dispatch/pkg/metrics"

	"github.com/samber/lo"
)

// Search ищет ближайшего свободного водителя: кольца Чебышёва от точки
// подачи наружу, в каждом кольце кандидаты в порядке возрастания id.
type Search struct {
	presence PresenceIndex
	locks    LockManager
	log      logger.Logger

	gridX     int
	gridY     int
	maxRadius int
	lockTTL   time.Duration
	service   string
}

func NewSearch(presence PresenceIndex, locks LockManager, cfg *config.Config, l logger.Logger) *Search {
	return &Search{
		presence:  presence,
		locks:     locks,
		log:       l,
		gridX:     cfg.Grid.SizeX,
		gridY:     cfg.Grid.SizeY,
		maxRadius: cfg.Matching.MaxSearchRadius,
		lockTTL:   cfg.Matching.DriverLockTTL,
		service:   string(cfg.Mode),
	}
}

// FindAndLock walks the rings outward from the pickup cell and takes the
// first driver lock it can. A ring where every candidate is already locked
// does not stop the walk. Returns the driver and the winning radius, or
// ErrNoDriverFound after the last ring.
func (s *Search) FindAndLock(ctx context.Context, ride *models.Ride, exclude []int64) (int64, int, error) {
	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	for r := 0; r <= s.maxRadius; r++ {
		cells := RingCells(ride.Start, r, s.gridX, s.gridY)
		if len(cells) == 0 {
			break // кольцо целиком за сеткой, дальше только пустые
		}

		buckets, err := s.presence.CellsOccupants(ctx, cells)
		if err != nil {
			return 0, 0, fmt.Errorf("matching search: %w", err)
		}

		for _, driverID := range candidates(buckets, excluded) {
			ok, err := s.locks.TryLock(ctx, driverID, ride.ID, s.lockTTL)
			if err != nil {
				return 0, 0, fmt.Errorf("matching search: %w", err)
			}
			if !ok {
				continue // лок держит другая поездка
			}

			metrics.MatchingAttemptsTotal.WithLabelValues(s.service, "matched").Inc()
			metrics.SearchRadiusWon.WithLabelValues(s.service).Observe(float64(r))
			return driverID, r, nil
		}
	}

	metrics.MatchingAttemptsTotal.WithLabelValues(s.service, "no_driver").Inc()
	return 0, 0, types.ErrNoDriverFound
}

// candidates flattens ring buckets into a deterministic list of lockable
// drivers: online only, exclusions removed, deduplicated, ascending id.
func candidates(buckets [][]models.Occupant, excluded map[int64]struct{}) []int64 {
	ids := lo.Uniq(lo.FilterMap(lo.Flatten(buckets), func(occ models.Occupant, _ int) (int64, bool) {
		if occ.Status != types.DriverOnline {
			return 0, false
		}
		if _, banned := excluded[occ.DriverID]; banned {
			return 0, false
		}
		return occ.DriverID, true
	}))

	slices.Sort(ids)
	return ids
}
