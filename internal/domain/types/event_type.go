package types

// NotificationType tags envelopes on the notification bus.
type NotificationType string

func (t NotificationType) String() string {
	return string(t)
}

const (
	NotifyNewOrderProposal   NotificationType = "NEW_ORDER_PROPOSAL"
	NotifyRideAccepted       NotificationType = "RIDE_ACCEPTED"
	NotifyRideCancelled      NotificationType = "RIDE_CANCELLED"
	NotifyRideStatusUpdate   NotificationType = "RIDE_STATUS_UPDATE"
	NotifyNoDriversAvailable NotificationType = "NO_DRIVERS_AVAILABLE"
)

// StreamEvent distinguishes the two ride event shapes on the substrate streams.
type StreamEvent string

const (
	EventNewRide   StreamEvent = "new_ride"
	EventRetryRide StreamEvent = "retry_ride"
)
