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

type Driver struct {
	service DriverService
	l       logger.Logger
}

type DriverService interface {
	SetStatus(ctx context.Context, driverID int64, status types.DriverStatus, at *models.Cell) error
	SetLocation(ctx context.Context, driverID int64, cell models.Cell) error
}

func NewDriver(service DriverService, l logger.Logger) *Driver {
	return &Driver{
		service: service,
		l:       l,
	}
}

func (h *Driver) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_status")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.DriverStatusRequest
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

	if err := h.service.SetStatus(ctx, driverID, req.ToStatus(), req.Cell()); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)

	h.l.Info(ctx, "driver status set", "driver_id", driverID, "status", req.Status)
}

func (h *Driver) SetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "set_driver_location")

	driverID, err := readIDParam(r, "driver_id")
	if err != nil {
		badRequestResponse(w, err.Error())
		return
	}

	var req dto.DriverLocationRequest
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

	if err := h.service.SetLocation(ctx, driverID, req.ToCell()); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to set driver location", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
