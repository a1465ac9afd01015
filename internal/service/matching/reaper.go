package matching

import (
	"context"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"
)

// Reaper expires unanswered proposals: release the proposal lock, requeue
// the ride with the silent driver excluded. Safe to run on every replica,
// PopDue hands each due pair to exactly one of them.
type Reaper struct {
	timeouts ProposalTimeouts
	locks    LockManager
	streams  EventStream
	log      logger.Logger

	interval time.Duration
	service  string
}

func NewReaper(timeouts ProposalTimeouts, locks LockManager, streams EventStream, cfg *config.Config, l logger.Logger) *Reaper {
	return &Reaper{
		timeouts: timeouts,
		locks:    locks,
		streams:  streams,
		log:      l,
		interval: cfg.Matching.ReaperInterval,
		service:  string(cfg.Mode),
	}
}

func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info(ctx, "timeout reaper started", "interval", r.interval.String())

	for {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "timeout reaper stopped")
			return nil
		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *Reaper) tick(ctx context.Context, now time.Time) {
	due, err := r.timeouts.PopDue(ctx, now)
	if err != nil {
		r.log.Error(ctx, "failed to pop due proposals", err)
		return
	}

	for _, p := range due {
		r.expire(ctx, p)
	}
}

// expire handles one timed-out proposal. The conditional release is the
// whole correctness story: if the driver accepted in the meantime the lock
// value moved to assigned:{ride} and the release quietly fails.
func (r *Reaper) expire(ctx context.Context, p models.Proposal) {
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(p.RideID, 10))
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(p.DriverID, 10))

	released, err := r.locks.ReleaseProposal(ctx, p.DriverID, p.RideID)
	if err != nil {
		r.log.Error(ctx, "failed to release timed-out proposal lock", err)
		return
	}
	if !released {
		// Принято, отклонено или лок успел истечь.
		return
	}

	err = r.streams.AppendRetry(ctx, models.RetryRideEvent{
		RideID:  p.RideID,
		Exclude: []int64{p.DriverID},
	})
	if err != nil {
		r.log.Error(ctx, "failed to requeue ride after timeout", err)
		return
	}

	metrics.ReapedTimeoutsTotal.WithLabelValues(r.service).Inc()
	r.log.Info(ctx, "proposal timed out, ride requeued")
}
