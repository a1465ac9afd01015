package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gridcab/dispatch/internal/adapter/http/handler/dto"
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
)

// Location отвечает на гео-запросы: кто рядом и когда приедет водитель.
type Location struct {
	drivers NearbyService
	rides   ETAService
	l       logger.Logger
}

type NearbyService interface {
	Nearby(ctx context.Context, at models.Cell, radius int) ([]models.NearbyDriver, error)
}

type ETAService interface {
	ETA(ctx context.Context, rideID int64) (time.Duration, models.Cell, error)
}

func NewLocation(drivers NearbyService, rides ETAService, l logger.Logger) *Location {
	return &Location{
		drivers: drivers,
		rides:   rides,
		l:       l,
	}
}

func (h *Location) Nearby(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "nearby_drivers")

	x, err := readInt(r, "x", -1)
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	y, err := readInt(r, "y", -1)
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}
	radius, err := readInt(r, "radius", 0)
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	drivers, err := h.drivers.Nearby(ctx, models.Cell{X: x, Y: y}, radius)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to find nearby drivers", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"drivers": dto.NewNearbyList(drivers)}, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}

func (h *Location) RideETA(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ride_eta")

	rideID, err := readIDParam(r, "ride_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	eta, pos, err := h.rides.ETA(ctx, rideID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"ride_id":     rideID,
		"eta_seconds": int(eta.Seconds()),
		"driver_at":   pos,
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		internalErrorResponse(w, err.Error())
	}
}
