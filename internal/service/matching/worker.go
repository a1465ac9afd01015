package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"

	"github.com/avast/retry-go/v4"
)

// Worker consumes ride events and runs the proposal cycle: search, lock,
// notify, schedule the timeout. Several workers share the consumer group,
// each under its own consumer name.
type Worker struct {
	streams  EventStream
	rides    RideLoader
	search   *Search
	timeouts ProposalTimeouts
	bus      Notifier
	log      logger.Logger

	proposalTimeout time.Duration
	retryDelay      time.Duration
	claimMinIdle    time.Duration
	service         string
}

func NewWorker(
	streams EventStream,
	rides RideLoader,
	search *Search,
	timeouts ProposalTimeouts,
	bus Notifier,
	cfg *config.Config,
	l logger.Logger,
) *Worker {
	return &Worker{
		streams:         streams,
		rides:           rides,
		search:          search,
		timeouts:        timeouts,
		bus:             bus,
		log:             l,
		proposalTimeout: cfg.Matching.ProposalTimeout,
		retryDelay:      cfg.Matching.RetryDelay,
		claimMinIdle:    cfg.Matching.ClaimMinIdle,
		service:         string(cfg.Mode),
	}
}

// Run is the worker loop. It returns nil on context cancellation and an
// error when the substrate stays unreachable after retries.
func (w *Worker) Run(ctx context.Context, consumer string) error {
	w.log.Info(ctx, "matching worker started", "consumer", consumer)

	for {
		if ctx.Err() != nil {
			w.log.Info(ctx, "matching worker stopped", "consumer", consumer)
			return nil
		}

		events, err := w.read(ctx, consumer)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.log.Info(ctx, "matching worker stopped", "consumer", consumer)
				return nil
			}
			return err
		}

		for _, ev := range events {
			w.handle(ctx, ev)
		}
	}
}

// read wraps one blocking group read with capped exponential backoff, so a
// substrate hiccup does not kill the worker.
func (w *Worker) read(ctx context.Context, consumer string) ([]*models.RideEvent, error) {
	var events []*models.RideEvent

	err := retry.Do(
		func() error {
			var err error
			events, err = w.streams.Read(ctx, consumer)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			w.log.Warn(wrap.WithAction(ctx, types.ActionSubstrateUnavailable),
				"stream read failed, retrying", "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", types.ErrSubstrateFatal, err)
	}

	return events, nil
}

// handle processes one stream entry end to end. Entries are acked on every
// terminal outcome; transient failures leave the entry pending so the
// claimer picks it up later.
func (w *Worker) handle(ctx context.Context, ev *models.RideEvent) {
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(ev.RideID, 10))

	if ev.Poison() {
		w.log.Error(ctx, "dropping malformed stream entry", types.ErrPoisonEvent,
			"stream", ev.Stream, "entry_id", ev.ID)
		metrics.RecordStreamEvent(w.service, ev.Stream, "poison")
		w.ack(ctx, ev)
		return
	}

	ride, err := w.rides.GetByID(ctx, ev.RideID)
	switch {
	case errors.Is(err, types.ErrRideNotFound):
		w.log.Warn(ctx, "event for unknown ride, skipping")
		metrics.RecordStreamEvent(w.service, ev.Stream, "skipped")
		w.ack(ctx, ev)
		return
	case err != nil:
		// Не подтверждаем: запись вернётся через claimer.
		w.log.Error(ctx, "failed to load ride", err)
		return
	}

	if ride.Status != types.StatusPending {
		w.log.Info(ctx, "ride no longer pending, skipping", "status", ride.Status.String())
		metrics.RecordStreamEvent(w.service, ev.Stream, "skipped")
		w.ack(ctx, ev)
		return
	}

	driverID, radius, err := w.search.FindAndLock(ctx, ride, ev.Exclude)
	switch {
	case errors.Is(err, types.ErrNoDriverFound):
		w.noDrivers(ctx, ev, ride)
		return
	case err != nil:
		w.log.Error(ctx, "driver search failed", err)
		return
	}

	w.propose(ctx, ev, ride, driverID, radius)
}

// propose sends the offer and arms its timeout. The lock TTL outlives the
// proposal timeout, so the reaper always finds the lock still in place.
func (w *Worker) propose(ctx context.Context, ev *models.RideEvent, ride *models.Ride, driverID int64, radius int) {
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	env, err := models.NewEnvelope(types.NotifyNewOrderProposal, driverID, models.ProposalPayload{
		RideID: ride.ID,
		StartX: ride.Start.X,
		StartY: ride.Start.Y,
		EndX:   ride.End.X,
		EndY:   ride.End.Y,
		Price:  ride.Price,
	})
	if err != nil {
		w.log.Error(ctx, "failed to build proposal envelope", err)
		return
	}

	if err := w.bus.PublishDriver(ctx, env); err != nil {
		// Лок истечёт по TTL, запись переиграет claimer.
		w.log.Error(ctx, "failed to publish proposal", err)
		return
	}

	deadline := time.Now().Add(w.proposalTimeout)
	if err := w.timeouts.Schedule(ctx, models.Proposal{RideID: ride.ID, DriverID: driverID}, deadline); err != nil {
		w.log.Error(ctx, "failed to schedule proposal timeout", err)
		return
	}

	w.ack(ctx, ev)
	metrics.ProposalsTotal.WithLabelValues(w.service).Inc()
	metrics.RecordStreamEvent(w.service, ev.Stream, "proposed")
	w.log.Info(ctx, "proposal sent", "radius", radius)
}

// noDrivers tells the passenger and schedules a fresh search after the
// retry delay. The delayed event carries no exclusions: exclusion binds a
// single attempt, and a full failed pass starts over from everyone.
func (w *Worker) noDrivers(ctx context.Context, ev *models.RideEvent, ride *models.Ride) {
	env, err := models.NewEnvelope(types.NotifyNoDriversAvailable, ride.PassengerID, models.NoDriversPayload{
		RideID: ride.ID,
	})
	if err != nil {
		w.log.Error(ctx, "failed to build no-drivers envelope", err)
	} else if err := w.bus.PublishPassenger(ctx, env); err != nil {
		w.log.Error(ctx, "failed to publish no-drivers notification", err)
	}

	w.ack(ctx, ev)
	metrics.RecordStreamEvent(w.service, ev.Stream, "no_driver")

	rideID := ride.ID
	time.AfterFunc(w.retryDelay, func() {
		if ctx.Err() != nil {
			// Процесс останавливается, ретрай теряем осознанно: поездка
			// остаётся видимой как pending.
			return
		}
		if err := w.streams.AppendRetry(ctx, models.RetryRideEvent{RideID: rideID}); err != nil {
			w.log.Error(ctx, "failed to append delayed retry", err)
		}
	})
}

// RunClaimer periodically transfers entries stuck on dead consumers to this
// worker and runs them through the normal handler.
func (w *Worker) RunClaimer(ctx context.Context, consumer string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info(ctx, "pending-entry claimer started", "consumer", consumer, "min_idle", w.claimMinIdle.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			events, err := w.streams.ClaimPending(ctx, consumer, w.claimMinIdle)
			if err != nil {
				w.log.Error(ctx, "failed to claim pending entries", err)
				continue
			}
			for _, ev := range events {
				metrics.RecordStreamEvent(w.service, ev.Stream, "claimed")
				w.handle(ctx, ev)
			}
		}
	}
}

func (w *Worker) ack(ctx context.Context, ev *models.RideEvent) {
	if err := w.streams.Ack(ctx, ev); err != nil {
		w.log.Error(ctx, "failed to ack stream entry", err, "stream", ev.Stream, "entry_id", ev.ID)
	}
}
