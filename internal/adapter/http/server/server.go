package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/adapter/http/handler"
	"github.com/gridcab/dispatch/internal/adapter/http/middleware"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	ws "github.com/gridcab/dispatch/pkg/wsHub"
)

const serverIPAddress = "%s:%d"

// RideBackend is everything the gateway needs from the ride service.
type RideBackend interface {
	handler.RideService
	handler.ETAService
}

// DriverBackend is everything the gateway needs from the driver service.
type DriverBackend interface {
	handler.DriverService
	handler.NearbyService
}

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	cfg  *config.Config
	log  logger.Logger
}

type handlers struct {
	ride     *handler.Ride
	driver   *handler.Driver
	location *handler.Location
	ws       *handler.WS
	health   *handler.Health
}

func New(
	cfg *config.Config,
	rides RideBackend,
	drivers DriverBackend,
	tokens middleware.TokenValidator,
	hub *ws.ConnectionHub,
	log logger.Logger,
) (*API, error) {
	if tokens == nil {
		return nil, errors.New("token validator is required")
	}

	addr := fmt.Sprintf(serverIPAddress, "0.0.0.0", cfg.HTTP.Port)
	service := string(cfg.Mode)

	api := &API{
		mux: http.NewServeMux(),
		routes: &handlers{
			ride:     handler.NewRide(rides, log),
			driver:   handler.NewDriver(drivers, log),
			location: handler.NewLocation(drivers, rides, log),
			ws:       handler.NewWS(hub, tokens, service, log),
			health:   handler.NewHealth(service, log),
		},
		m:    middleware.NewMiddleware(tokens, log),
		addr: addr,
		cfg:  cfg,
		log:  log,
	}

	api.setupRoutes()

	api.server = &http.Server{
		Addr:     api.addr,
		Handler:  api.withMiddleware(),
		ErrorLog: slog.NewLogLogger(log.GetSlogLogger().Handler(), slog.LevelError),

		// WebSocket-соединения живут на перехваченном (hijacked) TCP,
		// таймауты сервера на них не действуют.
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return api, nil
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

// withMiddleware applies the global middleware chain to the mux.
func (a *API) withMiddleware() http.Handler {
	service := string(a.cfg.Mode)
	return a.m.Recover(a.m.RequestID(a.m.Metrics(service)(a.m.Logging(a.m.Auth(a.mux)))))
}
