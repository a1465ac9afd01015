package redis

import (
	"fmt"
	"strconv"

	"github.com/gridcab/dispatch/internal/domain/models"
)

// Substrate key layout. Every process talking to the same Redis relies on
// these exact formats, so they live in one place.
const (
	StreamOrderEvents = "order_events"
	StreamRetryEvents = "retry_search_events"
	MatchingGroup     = "matching_group"

	ChannelDriver    = "driver_notifications"
	ChannelPassenger = "passenger_notifications"

	keyProposalTimeouts = "proposal_timeouts"

	locationKeyPrefix = "driver_location:"
)

func cellKey(c models.Cell) string {
	return fmt.Sprintf("cell:%d:%d", c.X, c.Y)
}

func locationKey(driverID int64) string {
	return locationKeyPrefix + strconv.FormatInt(driverID, 10)
}

func lockKey(driverID int64) string {
	return "driver_lock:" + strconv.FormatInt(driverID, 10)
}

func lastSeenKey(driverID int64) string {
	return "driver_last_seen:" + strconv.FormatInt(driverID, 10)
}
