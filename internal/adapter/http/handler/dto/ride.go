package dto

import (
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/validator"
)

// Координаты приходят указателями, чтобы отличать пропущенное поле от нуля:
// (0,0) — валидная клетка сетки.
type CreateRideRequest struct {
	StartX *int `json:"start_x"`
	StartY *int `json:"start_y"`
	EndX   *int `json:"end_x"`
	EndY   *int `json:"end_y"`
}

func (r *CreateRideRequest) Validate(v *validator.Validator) {
	v.Check(r.StartX != nil, "start_x", "must be provided")
	v.Check(r.StartY != nil, "start_y", "must be provided")
	v.Check(r.EndX != nil, "end_x", "must be provided")
	v.Check(r.EndY != nil, "end_y", "must be provided")
}

func (r *CreateRideRequest) Start() models.Cell {
	return models.Cell{X: *r.StartX, Y: *r.StartY}
}

func (r *CreateRideRequest) End() models.Cell {
	return models.Cell{X: *r.EndX, Y: *r.EndY}
}

type UpdateRideStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateRideStatusRequest) Validate(v *validator.Validator) {
	v.Check(r.Status != "", "status", "must be provided")
	if r.Status != "" {
		v.Check(
			validator.PermittedValue(r.Status, "driver_arrived", "passenger_onboard", "in_progress", "completed"),
			"status", "must be one of driver_arrived, passenger_onboard, in_progress or completed",
		)
	}
}

func (r *UpdateRideStatusRequest) ToStatus() types.RideStatus {
	return types.RideStatus(r.Status)
}

type RideResponse struct {
	ID          int64       `json:"ride_id"`
	PassengerID int64       `json:"passenger_id"`
	DriverID    *int64      `json:"driver_id,omitempty"`
	Status      string      `json:"status"`
	Start       models.Cell `json:"start"`
	End         models.Cell `json:"end"`
	Price       float64     `json:"price"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func NewRideResponse(r *models.Ride) RideResponse {
	return RideResponse{
		ID:          r.ID,
		PassengerID: r.PassengerID,
		DriverID:    r.DriverID,
		Status:      r.Status.String(),
		Start:       r.Start,
		End:         r.End,
		Price:       r.Price,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func NewRideList(rides []models.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for i := range rides {
		out = append(out, NewRideResponse(&rides[i]))
	}
	return out
}
