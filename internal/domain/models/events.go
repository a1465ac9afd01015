package models

import (
	"github.com/gridcab/dispatch/internal/domain/types"
)

// NewRideEvent is appended to the order_events stream when a ride is created.
type NewRideEvent struct {
	RideID int64
	Start  Cell
	End    Cell
	Price  float64
}

// RetryRideEvent is appended to the retry_search_events stream when a search
// pass must run again. Exclude carries every driver that already declined or
// timed out, so re-search never proposes to them twice.
type RetryRideEvent struct {
	RideID  int64
	Exclude []int64
}

// RideEvent is one parsed entry read from either matching stream.
// Stream and ID address the entry for XACK.
type RideEvent struct {
	Stream string
	ID     string
	Kind   types.StreamEvent

	RideID  int64
	Start   Cell
	End     Cell
	Price   float64
	Exclude []int64 // только для retry_ride
}

// Poison reports whether the entry failed to parse. Poison entries still
// carry Stream and ID so the consumer can ack them out of the group.
func (e *RideEvent) Poison() bool {
	return e.Kind == ""
}

// Proposal identifies one outstanding ride offer to one driver. Scheduled
// into the timeout index when the offer goes out, removed on accept, reject
// or expiry.
type Proposal struct {
	RideID   int64
	DriverID int64
}
