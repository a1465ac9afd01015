package server

import (
	"github.com/gridcab/dispatch/internal/domain/types"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes wires the gateway surface.
func (a *API) setupRoutes() {
	r := a.routes
	m := a.m

	// System
	a.mux.HandleFunc("GET /health", r.health.HealthCheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())
	a.mux.HandleFunc("/swagger/", httpSwagger.Handler(httpSwagger.InstanceName("gateway")))

	// Passenger rides
	a.mux.Handle("POST /passengers/{passenger_id}/rides", m.RequireSelf(types.PassengerRole, "passenger_id", r.ride.Create))
	a.mux.Handle("GET /passengers/{passenger_id}/rides", m.RequireSelf(types.PassengerRole, "passenger_id", r.ride.ListByPassenger))
	a.mux.Handle("GET /passengers/{passenger_id}/rides/active", m.RequireSelf(types.PassengerRole, "passenger_id", r.ride.ActiveByPassenger))
	a.mux.Handle("POST /passengers/{passenger_id}/rides/{ride_id}/cancel", m.RequireSelf(types.PassengerRole, "passenger_id", r.ride.Cancel))

	// Driver presence, status flips double as heartbeats
	a.mux.Handle("PUT /drivers/{driver_id}/status", m.RequireSelf(types.DriverRole, "driver_id", r.driver.SetStatus))
	a.mux.Handle("PUT /drivers/{driver_id}/location", m.RequireSelf(types.DriverRole, "driver_id", r.driver.SetLocation))

	// Driver side of the ride lifecycle
	a.mux.Handle("GET /drivers/{driver_id}/rides", m.RequireSelf(types.DriverRole, "driver_id", r.ride.ListByDriver))
	a.mux.Handle("GET /drivers/{driver_id}/rides/active", m.RequireSelf(types.DriverRole, "driver_id", r.ride.ActiveByDriver))
	a.mux.Handle("POST /drivers/{driver_id}/rides/{ride_id}/accept", m.RequireSelf(types.DriverRole, "driver_id", r.ride.Accept))
	a.mux.Handle("POST /drivers/{driver_id}/rides/{ride_id}/reject", m.RequireSelf(types.DriverRole, "driver_id", r.ride.Reject))
	a.mux.Handle("PUT /drivers/{driver_id}/rides/{ride_id}/status", m.RequireSelf(types.DriverRole, "driver_id", r.ride.UpdateStatus))

	// Location queries, open to any authenticated caller
	a.mux.Handle("GET /location/drivers/nearby", m.RequireAuth(r.location.Nearby))
	a.mux.Handle("GET /location/rides/{ride_id}/eta", m.RequireAuth(r.location.RideETA))

	// WebSocket push, auth via ?token= inside the handler
	a.mux.HandleFunc("GET /notifications/ws", r.ws.Notifications)
}
