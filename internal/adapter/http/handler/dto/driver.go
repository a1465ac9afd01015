package dto

import (
	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/validator"
)

type DriverStatusRequest struct {
	Status string `json:"status"`
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
}

func (r *DriverStatusRequest) Validate(v *validator.Validator) {
	v.Check(r.Status != "", "status", "must be provided")
	if r.Status != "" {
		v.Check(validator.PermittedValue(r.Status, "online", "busy", "offline"),
			"status", "must be one of online, busy or offline")
	}
	v.Check((r.X == nil) == (r.Y == nil), "x", "x and y must be provided together")
}

func (r *DriverStatusRequest) ToStatus() types.DriverStatus {
	return types.DriverStatus(r.Status)
}

// Cell returns the optional position carried with the status flip.
func (r *DriverStatusRequest) Cell() *models.Cell {
	if r.X == nil || r.Y == nil {
		return nil
	}
	return &models.Cell{X: *r.X, Y: *r.Y}
}

type DriverLocationRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (r *DriverLocationRequest) Validate(v *validator.Validator) {
	v.Check(r.X != nil, "x", "must be provided")
	v.Check(r.Y != nil, "y", "must be provided")
}

func (r *DriverLocationRequest) ToCell() models.Cell {
	return models.Cell{X: *r.X, Y: *r.Y}
}

type NearbyDriverResponse struct {
	DriverID int64       `json:"driver_id"`
	Status   string      `json:"status"`
	Cell     models.Cell `json:"cell"`
	Distance int         `json:"distance"`
}

func NewNearbyList(drivers []models.NearbyDriver) []NearbyDriverResponse {
	out := make([]NearbyDriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, NearbyDriverResponse{
			DriverID: d.DriverID,
			Status:   d.Status.String(),
			Cell:     d.Cell,
			Distance: d.Distance,
		})
	}
	return out
}
