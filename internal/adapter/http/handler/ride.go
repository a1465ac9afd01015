package handler

import (
	"context"
	"net/http"

	"github.com/gridcab/dispatch/internal/adapter/http/handler/dto"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/validator"
)

type Ride struct {
	service RideService
	l       logger.Logger
}

type RideService interface {
	Create(ctx context.Context, passengerID int64, start, end models.Cell) (*models.Ride, error)
	Cancel(ctx context.Context, passengerID, rideID int64) (*models.Ride, error)
	Accept(ctx context.Context, driverID, rideID int64) (*models.Ride, error)
	Reject(ctx context.Context, driverID, rideID int64) error
	UpdateStatus(ctx context.Context, driverID, rideID int64, next types.RideStatus) (*models.Ride, error)
	ActiveByPassenger(ctx context.Context, passengerID int64) (*models.Ride, error)
	ActiveByDriver(ctx context.Context, driverID int64) (*models.Ride, error)
	ListByPassenger(ctx context.Context, passengerID int64, limit, offset int) ([]models.Ride, error)
	ListByDriver(ctx context.Context, driverID int64, limit, offset int) ([]models.Ride, error)
}

func NewRide(service RideService, l logger.Logger) *Ride {
	return &Ride{
		service: service,
		l:       l,
	}
}

func (h *Ride) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")

	passengerID, err := readIDParam(r, "passenger_id")
	if err != nil {
		h.l.Warn(ctx, "invalid passenger id")
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.CreateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.Create(ctx, passengerID, req.Start(), req.End())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride created", "ride_id", ride.ID, "passenger_id", passengerID)
}

func (h *Ride) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_ride")

	passengerID, err := readIDParam(r, "passenger_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	rideID, err := readIDParam(r, "ride_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	ride, err := h.service.Cancel(ctx, passengerID, rideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride cancelled", "ride_id", rideID, "passenger_id", passengerID)
}

func (h *Ride) ListByPassenger(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_passenger_rides")

	passengerID, err := readIDParam(r, "passenger_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	limit, offset, ok := h.readPage(w, r)
	if !ok {
		return
	}

	rides, err := h.service.ListByPassenger(ctx, passengerID, limit, offset)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list rides", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rides": dto.NewRideList(rides)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}

func (h *Ride) ActiveByPassenger(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_active_passenger_ride")

	passengerID, err := readIDParam(r, "passenger_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	ride, err := h.service.ActiveByPassenger(ctx, passengerID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}

func (h *Ride) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_ride")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	rideID, err := readIDParam(r, "ride_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	ride, err := h.service.Accept(ctx, driverID, rideID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to accept ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride accepted", "ride_id", rideID, "driver_id", driverID)
}

func (h *Ride) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "reject_ride")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	rideID, err := readIDParam(r, "ride_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	if err := h.service.Reject(ctx, driverID, rideID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to reject ride", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"message": "ride rejected, search continues"}, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride rejected", "ride_id", rideID, "driver_id", driverID)
}

func (h *Ride) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_ride_status")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	rideID, err := readIDParam(r, "ride_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.UpdateRideStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	ride, err := h.service.UpdateStatus(ctx, driverID, rideID, req.ToStatus())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update ride status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "ride status updated", "ride_id", rideID, "status", ride.Status)
}

func (h *Ride) ListByDriver(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_driver_rides")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	limit, offset, ok := h.readPage(w, r)
	if !ok {
		return
	}

	rides, err := h.service.ListByDriver(ctx, driverID, limit, offset)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list rides", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"rides": dto.NewRideList(rides)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}

func (h *Ride) ActiveByDriver(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_active_driver_ride")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	ride, err := h.service.ActiveByDriver(ctx, driverID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"ride": dto.NewRideResponse(ride)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}

func (h *Ride) readPage(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := readInt(r, "limit", 0)
	if err != nil {
		badRequestResponse(w, err.Error())
		return 0, 0, false
	}
	offset, err = readInt(r, "offset", 0)
	if err != nil {
		badRequestResponse(w, err.Error())
		return 0, 0, false
	}
	return limit, offset, true
}
