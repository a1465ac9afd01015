package models

import (
	"encoding/json"
	"fmt"

	"github.com/gridcab/dispatch/internal/domain/types"
)

// Envelope is one message on the notification bus. Data carries the
// kind-specific payload, discriminated by Type. The gateway forwards the
// whole envelope to the recipient's WebSocket as-is.
type Envelope struct {
	Type            types.NotificationType `json:"type"`
	RecipientUserID int64                  `json:"recipient_user_id"`
	Data            json.RawMessage        `json:"data"`
}

// NewEnvelope marshals payload into a typed envelope.
func NewEnvelope(t types.NotificationType, recipient int64, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}

	return Envelope{
		Type:            t,
		RecipientUserID: recipient,
		Data:            data,
	}, nil
}

// ProposalPayload предлагает водителю новый заказ.
type ProposalPayload struct {
	RideID int64   `json:"ride_id"`
	StartX int     `json:"start_x"`
	StartY int     `json:"start_y"`
	EndX   int     `json:"end_x"`
	EndY   int     `json:"end_y"`
	Price  float64 `json:"price"`
}

// RideAcceptedPayload сообщает пассажиру, что водитель принял заказ.
type RideAcceptedPayload struct {
	RideID   int64  `json:"ride_id"`
	DriverID int64  `json:"driver_id"`
	Status   string `json:"status"`
}

// RideCancelledPayload уходит назначенному водителю при отмене поездки.
type RideCancelledPayload struct {
	RideID int64  `json:"ride_id"`
	Status string `json:"status"`
}

// RideStatusPayload сообщает пассажиру о смене статуса поездки.
type RideStatusPayload struct {
	RideID int64  `json:"ride_id"`
	Status string `json:"status"`
}

// NoDriversPayload сообщает пассажиру, что свободных водителей нет.
type NoDriversPayload struct {
	RideID int64 `json:"ride_id"`
}
