package types

type ServiceMode string

// Gateway - HTTP/WebSocket surface plus the notification fan-out listener
// Matcher - matching workers, timeout reaper and presence sweeper
// All - both task sets in a single process (single-node and development runs)
const (
	GatewayService ServiceMode = "gateway"
	MatcherService ServiceMode = "matcher"
	AllInOne       ServiceMode = "all"
)

// Ride lifecycle statuses. Stored lowercase in the rides table and on the wire.
type RideStatus string

func (s RideStatus) String() string {
	return string(s)
}

const (
	StatusPending          RideStatus = "pending"
	StatusDriverAssigned   RideStatus = "driver_assigned"
	StatusDriverArrived    RideStatus = "driver_arrived"
	StatusPassengerOnboard RideStatus = "passenger_onboard"
	StatusInProgress       RideStatus = "in_progress"
	StatusCompleted        RideStatus = "completed"
	StatusCancelled        RideStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Next returns the single allowed forward transition for driver-driven updates.
// Cancellation is handled separately and is allowed from any non-terminal status.
func (s RideStatus) Next() (RideStatus, bool) {
	switch s {
	case StatusDriverAssigned:
		return StatusDriverArrived, true
	case StatusDriverArrived:
		return StatusPassengerOnboard, true
	case StatusPassengerOnboard:
		return StatusInProgress, true
	case StatusInProgress:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Driver presence status as stored in cell bucket hashes.
type DriverStatus string

func (s DriverStatus) String() string {
	return string(s)
}

const (
	DriverOffline DriverStatus = "offline"
	DriverOnline  DriverStatus = "online"
	DriverBusy    DriverStatus = "busy"
)

// Enum для роли пользователя (из JWT)
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	PassengerRole UserRole = "passenger"
	DriverRole    UserRole = "driver"
)
