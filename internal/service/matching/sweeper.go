package matching

import (
	"context"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

// Sweeper removes drivers whose heartbeat key expired from the live index,
// so crashed drivers stop receiving proposals. The relational mirror is
// flipped to offline as well.
type Sweeper struct {
	presence PresenceIndex
	drivers  DriverMirror
	log      logger.Logger

	interval time.Duration
}

func NewSweeper(presence PresenceIndex, drivers DriverMirror, cfg *config.Config, l logger.Logger) *Sweeper {
	return &Sweeper{
		presence: presence,
		drivers:  drivers,
		log:      l,
		interval: cfg.Matching.SweepInterval,
	}
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(ctx, "presence sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "presence sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	locations, err := s.presence.ScanLocations(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to scan driver locations", err)
		return
	}

	for driverID := range locations {
		alive, err := s.presence.Alive(ctx, driverID)
		if err != nil {
			s.log.Error(ctx, "failed to check driver liveness", err)
			continue
		}
		if alive {
			continue
		}

		dctx := wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

		if err := s.presence.Offline(dctx, driverID); err != nil {
			s.log.Error(dctx, "failed to sweep stale driver", err)
			continue
		}
		if err := s.drivers.SetStatus(dctx, driverID, types.DriverOffline); err != nil {
			// Зеркало догонит на следующем heartbeat.
			s.log.Warn(dctx, "failed to mirror swept driver", "error", err.Error())
		}

		s.log.Info(dctx, "stale driver swept offline")
	}
}
