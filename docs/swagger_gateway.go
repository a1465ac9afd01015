package docs

// @title           Grid Dispatch Gateway API
// @version         1.0
// @description     Gateway for the grid-world dispatch service. Passengers request and track rides, drivers report presence and work proposals, both sides receive real-time notifications over WebSocket.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// ============================================
// PASSENGER ENDPOINTS (@Tags rides)
// ============================================

// CreateRide godoc
// @Summary      Request a ride
// @Description  Create a pending ride from start to end cell and start the driver search
// @Tags         rides
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        passenger_id path int true "Passenger ID (must match token subject)"
// @Param        request body dto.CreateRideRequest true "Route coordinates"
// @Success      201 {object} map[string]interface{} "Created ride"
// @Failure      400 {object} map[string]interface{} "Coordinates out of grid or active ride exists"
// @Failure      403 {object} map[string]interface{} "Token subject mismatch"
// @Failure      422 {object} map[string]interface{} "Validation error"
// @Router       /passengers/{passenger_id}/rides [post]

// CancelRide godoc
// @Summary      Cancel a ride
// @Description  Cancel own non-terminal ride; an assigned driver is released and notified
// @Tags         rides
// @Produce      json
// @Security     BearerAuth
// @Param        passenger_id path int true "Passenger ID"
// @Param        ride_id path int true "Ride ID"
// @Success      200 {object} map[string]interface{} "Cancelled ride"
// @Failure      400 {object} map[string]interface{} "Ride already terminal"
// @Failure      403 {object} map[string]interface{} "Not the ride owner"
// @Failure      404 {object} map[string]interface{} "Ride not found"
// @Router       /passengers/{passenger_id}/rides/{ride_id}/cancel [post]

// ============================================
// DRIVER ENDPOINTS (@Tags drivers)
// ============================================

// DriverStatus godoc
// @Summary      Update driver presence
// @Description  Go online at a cell, report busy or go offline
// @Tags         drivers
// @Accept       json
// @Security     BearerAuth
// @Param        driver_id path int true "Driver ID"
// @Param        request body dto.DriverStatusRequest true "New status and optional cell"
// @Success      204 "Status applied"
// @Failure      400 {object} map[string]interface{} "Cell out of grid"
// @Failure      422 {object} map[string]interface{} "Validation error"
// @Router       /drivers/{driver_id}/status [put]

// AcceptRide godoc
// @Summary      Accept a proposed ride
// @Description  Accept the proposal currently held by this driver; wins or loses atomically
// @Tags         drivers
// @Produce      json
// @Security     BearerAuth
// @Param        driver_id path int true "Driver ID"
// @Param        ride_id path int true "Ride ID"
// @Success      200 {object} map[string]interface{} "Assigned ride"
// @Failure      400 {object} map[string]interface{} "Proposal expired or ride taken"
// @Failure      404 {object} map[string]interface{} "Ride not found"
// @Router       /drivers/{driver_id}/rides/{ride_id}/accept [post]

// ============================================
// LOCATION ENDPOINTS (@Tags location)
// ============================================

// NearbyDrivers godoc
// @Summary      List nearby online drivers
// @Description  Drivers within a Chebyshev radius of a cell, closest ring first
// @Tags         location
// @Produce      json
// @Security     BearerAuth
// @Param        x query int true "Cell X"
// @Param        y query int true "Cell Y"
// @Param        radius query int false "Search radius (clamped to the configured maximum)"
// @Success      200 {object} map[string]interface{} "Drivers with distances"
// @Failure      400 {object} map[string]interface{} "Cell out of grid"
// @Router       /location/drivers/nearby [get]

// RideETA godoc
// @Summary      Estimate driver arrival
// @Description  Manhattan-distance ETA from the assigned driver's live position to pickup
// @Tags         location
// @Produce      json
// @Security     BearerAuth
// @Param        ride_id path int true "Ride ID"
// @Success      200 {object} map[string]interface{} "ETA in seconds and driver position"
// @Failure      404 {object} map[string]interface{} "No assigned driver or driver went dark"
// @Router       /location/rides/{ride_id}/eta [get]
