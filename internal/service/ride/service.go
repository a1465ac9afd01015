package ride

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	ridecalc "github.com/gridcab/dispatch/internal/service/calculator"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"
	"github.com/gridcab/dispatch/pkg/trm"

	"github.com/avast/retry-go/v4"
)

/*
Service owns the ride lifecycle: create, proposal accept/reject, cancel
and driver-driven forward transitions. The rides table is the source of
truth; everything on the substrate (locks, deadlines, notifications)
follows the committed row.
*/
type Service struct {
	rides    RideRepo
	locks    LockManager
	streams  EventStream
	timeouts ProposalTimeouts
	presence PresenceIndex
	mirror   DriverMirror
	bus      Notifier
	calc     ridecalc.Calculator
	trm      trm.TxManager
	l        logger.Logger

	gridX   int
	gridY   int
	service string
}

func New(
	rides RideRepo,
	locks LockManager,
	streams EventStream,
	timeouts ProposalTimeouts,
	presence PresenceIndex,
	mirror DriverMirror,
	bus Notifier,
	calc ridecalc.Calculator,
	trm trm.TxManager,
	cfg *config.Config,
	l logger.Logger,
) *Service {
	return &Service{
		rides:    rides,
		locks:    locks,
		streams:  streams,
		timeouts: timeouts,
		presence: presence,
		mirror:   mirror,
		bus:      bus,
		calc:     calc,
		trm:      trm,
		l:        l,
		gridX:    cfg.Grid.SizeX,
		gridY:    cfg.Grid.SizeY,
		service:  string(cfg.Mode),
	}
}

// Create validates the route, prices it, inserts the pending ride and
// enqueues a new_ride event for the matching workers.
func (s *Service) Create(ctx context.Context, passengerID int64, start, end models.Cell) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "create_ride")
	ctx = wrap.WithUserID(ctx, strconv.FormatInt(passengerID, 10))

	if !start.InBounds(s.gridX, s.gridY) || !end.InBounds(s.gridX, s.gridY) {
		return nil, wrap.Error(ctx, types.ErrInvalidCoordinate)
	}

	if _, err := s.rides.ActiveByPassenger(ctx, passengerID); err == nil {
		return nil, wrap.Error(ctx, types.ErrActiveRideExists)
	} else if !errors.Is(err, types.ErrNoActiveRide) {
		return nil, wrap.Error(ctx, fmt.Errorf("could not check active ride: %w", err))
	}

	quote := s.calc.Quote(start, end)

	ride := &models.Ride{
		PassengerID: passengerID,
		Status:      types.StatusPending,
		Start:       start,
		End:         end,
		Price:       quote.Price,
	}

	err := s.trm.Do(ctx, func(ctx context.Context) error {
		created, err := s.rides.Create(ctx, ride)
		if err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not create ride: %w", err))
		}
		ride = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = wrap.WithRideID(ctx, strconv.FormatInt(ride.ID, 10))

	// XADD идёт после коммита: воркер не должен увидеть событие раньше,
	// чем строка станет видимой. Застрявшую без события поездку пассажир
	// снимает отменой.
	err = retry.Do(
		func() error {
			return s.streams.AppendNewRide(ctx, models.NewRideEvent{
				RideID: ride.ID,
				Start:  ride.Start,
				End:    ride.End,
				Price:  ride.Price,
			})
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.l.Error(ctx, "ride created but not enqueued", err)
		return nil, wrap.Error(ctx, fmt.Errorf("could not enqueue ride: %w", err))
	}

	metrics.RidesTotal.WithLabelValues(s.service, types.StatusPending.String()).Inc()
	s.l.Info(ctx, "ride created", "price", ride.Price, "distance", quote.Distance)

	return ride, nil
}

// Accept turns a held proposal into an assignment. The guarded UPDATE plus
// the partial unique index decide races; the lock promote only shields the
// row from the reaper afterwards.
func (s *Service) Accept(ctx context.Context, driverID, rideID int64) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "accept_ride")
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(rideID, 10))
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	held, err := s.locks.HoldsProposal(ctx, driverID, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not read driver lock: %w", err))
	}
	if !held {
		return nil, wrap.Error(ctx, types.ErrProposalNotHeld)
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.rides.AssignDriver(ctx, rideID, driverID); err != nil {
			return wrap.Error(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	promoted, err := s.locks.Promote(ctx, driverID, rideID)
	if err != nil {
		s.l.Warn(ctx, "failed to promote driver lock", "error", err.Error())
	} else if !promoted {
		// Лок истёк между проверкой и коммитом. Строка в базе главнее,
		// реапер увидит чужое значение и поездку не тронет.
		s.l.Warn(ctx, "proposal lock vanished before promote")
	}

	if err := s.timeouts.Cancel(ctx, models.Proposal{RideID: rideID, DriverID: driverID}); err != nil {
		s.l.Warn(ctx, "failed to drop proposal deadline", "error", err.Error())
	}

	if err := s.presence.SetStatus(ctx, driverID, types.DriverBusy); err != nil {
		s.l.Warn(ctx, "failed to mark driver busy", "error", err.Error())
	}
	if err := s.mirror.SetStatus(ctx, driverID, types.DriverBusy); err != nil {
		s.l.Warn(ctx, "driver mirror update failed", "error", err.Error())
	}

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.notifyPassenger(ctx, types.NotifyRideAccepted, ride.PassengerID, models.RideAcceptedPayload{
		RideID:   ride.ID,
		DriverID: driverID,
		Status:   ride.Status.String(),
	})

	metrics.RidesTotal.WithLabelValues(s.service, ride.Status.String()).Inc()
	s.l.Info(ctx, "ride accepted")

	return ride, nil
}

// Reject releases the proposal and puts the ride back into the queue with
// the rejecting driver excluded. The conditional release is the gate: only
// the party that actually removed the lock appends the retry event, so a
// racing reaper cannot double-enqueue.
func (s *Service) Reject(ctx context.Context, driverID, rideID int64) error {
	ctx = wrap.WithAction(ctx, "reject_ride")
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(rideID, 10))
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	released, err := s.locks.ReleaseProposal(ctx, driverID, rideID)
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("could not release driver lock: %w", err))
	}
	if !released {
		return wrap.Error(ctx, types.ErrProposalNotHeld)
	}

	if err := s.timeouts.Cancel(ctx, models.Proposal{RideID: rideID, DriverID: driverID}); err != nil {
		s.l.Warn(ctx, "failed to drop proposal deadline", "error", err.Error())
	}

	err = retry.Do(
		func() error {
			return s.streams.AppendRetry(ctx, models.RetryRideEvent{
				RideID:  rideID,
				Exclude: []int64{driverID},
			})
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.l.Error(ctx, "rejected ride not requeued", err)
		return wrap.Error(ctx, fmt.Errorf("could not requeue ride: %w", err))
	}

	s.l.Info(ctx, "ride rejected, requeued")
	return nil
}

// Cancel moves a non-terminal ride to cancelled. Races with accept resolve
// through the guarded UPDATE: exactly one side wins.
func (s *Service) Cancel(ctx context.Context, passengerID, rideID int64) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "cancel_ride")
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(rideID, 10))
	ctx = wrap.WithUserID(ctx, strconv.FormatInt(passengerID, 10))

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if ride.PassengerID != passengerID {
		return nil, wrap.Error(ctx, types.ErrForbidden)
	}
	if ride.Status.Terminal() {
		return nil, wrap.Error(ctx, types.ErrRideStateConflict)
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.rides.UpdateStatus(ctx, rideID, ride.Status, types.StatusCancelled); err != nil {
			return wrap.Error(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ride.DriverID != nil {
		s.releaseDriver(ctx, *ride.DriverID, rideID, types.NotifyRideCancelled, models.RideCancelledPayload{
			RideID: rideID,
			Status: types.StatusCancelled.String(),
		})
	}
	// Отмена pending-поездки с открытым предложением чужой лок не трогает:
	// воркер увидит отменённую строку и пропустит событие, просроченное
	// предложение снимет реапер.

	cancelled, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.RidesTotal.WithLabelValues(s.service, types.StatusCancelled.String()).Inc()
	s.l.Info(ctx, "ride cancelled")

	return cancelled, nil
}

// UpdateStatus applies one driver-driven forward transition
// (driver_assigned → driver_arrived → passenger_onboard → in_progress → completed).
func (s *Service) UpdateStatus(ctx context.Context, driverID, rideID int64, next types.RideStatus) (*models.Ride, error) {
	ctx = wrap.WithAction(ctx, "update_ride_status")
	ctx = wrap.WithRideID(ctx, strconv.FormatInt(rideID, 10))
	ctx = wrap.WithDriverID(ctx, strconv.FormatInt(driverID, 10))

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, wrap.Error(ctx, types.ErrForbidden)
	}

	want, ok := ride.Status.Next()
	if !ok || want != next {
		return nil, wrap.Error(ctx, types.ErrRideStateConflict)
	}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		if err := s.rides.UpdateStatus(ctx, rideID, ride.Status, next); err != nil {
			return wrap.Error(ctx, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if next == types.StatusCompleted {
		s.releaseDriver(ctx, driverID, rideID, "", nil)
	}

	s.notifyPassenger(ctx, types.NotifyRideStatusUpdate, ride.PassengerID, models.RideStatusPayload{
		RideID: rideID,
		Status: next.String(),
	})

	updated, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	metrics.RidesTotal.WithLabelValues(s.service, next.String()).Inc()
	s.l.Info(ctx, "ride status updated", "status", next.String())

	return updated, nil
}

// releaseDriver clears the assigned lock and returns the driver to the
// online pool. notifyType may carry a driver-facing envelope (cancel).
func (s *Service) releaseDriver(ctx context.Context, driverID, rideID int64, notifyType types.NotificationType, payload any) {
	if notifyType != "" {
		env, err := models.NewEnvelope(notifyType, driverID, payload)
		if err != nil {
			s.l.Warn(ctx, "failed to build driver notification", "error", err.Error())
		} else if err := s.bus.PublishDriver(ctx, env); err != nil {
			s.l.Warn(ctx, "failed to notify driver", "error", err.Error())
		}
	}

	released, err := s.locks.ReleaseAssigned(ctx, driverID, rideID)
	if err != nil {
		s.l.Warn(ctx, "failed to release assigned lock", "error", err.Error())
	} else if !released {
		s.l.Debug(ctx, "assigned lock already gone")
	}

	if err := s.presence.SetStatus(ctx, driverID, types.DriverOnline); err != nil {
		s.l.Warn(ctx, "failed to return driver to online pool", "error", err.Error())
	}
	if err := s.mirror.SetStatus(ctx, driverID, types.DriverOnline); err != nil {
		s.l.Warn(ctx, "driver mirror update failed", "error", err.Error())
	}
}

func (s *Service) notifyPassenger(ctx context.Context, t types.NotificationType, passengerID int64, payload any) {
	env, err := models.NewEnvelope(t, passengerID, payload)
	if err != nil {
		s.l.Warn(ctx, "failed to build passenger notification", "error", err.Error())
		return
	}
	if err := s.bus.PublishPassenger(ctx, env); err != nil {
		s.l.Warn(ctx, "failed to notify passenger", "error", err.Error())
	}
}
