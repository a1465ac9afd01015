package microservices

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/adapter/http/server"
	repo "github.com/gridcab/dispatch/internal/adapter/postgres"
	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/internal/service/auth"
	ridecalc "github.com/gridcab/dispatch/internal/service/calculator"
	"github.com/gridcab/dispatch/internal/service/driver"
	"github.com/gridcab/dispatch/internal/service/notify"
	"github.com/gridcab/dispatch/internal/service/ride"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/postgres"
	"github.com/gridcab/dispatch/pkg/redisdb"
	"github.com/gridcab/dispatch/pkg/trm"
	ws "github.com/gridcab/dispatch/pkg/wsHub"

	goredis "github.com/redis/go-redis/v9"
)

// GatewayService is the client-facing half: REST API, WebSocket hub and
// the notification listener that pumps matcher decisions to connected
// clients.
type GatewayService struct {
	postgresDB *postgres.PostgreDB
	redisCli   *goredis.Client
	httpServer *server.API
	listener   *notify.Listener
	hub        *ws.ConnectionHub

	cfg *config.Config
	log logger.Logger
}

func NewGateway(ctx context.Context, cfg *config.Config, log logger.Logger) (*GatewayService, error) {
	postgresDB, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		log.Error(ctx, "failed to setup database", err)
		return nil, err
	}

	redisCli, err := redisdb.New(ctx, cfg.Redis)
	if err != nil {
		log.Error(ctx, "failed to setup redis client", err)
		postgresDB.Close()
		return nil, err
	}
	log.Info(wrap.WithAction(ctx, types.ActionSubstrateConnected), "connected to redis", "addr", cfg.Redis.RedisAddr())

	// repositories
	rideRepo := repo.NewRideRepo(postgresDB.Pool)
	driverRepo := repo.NewDriverRepo(postgresDB.Pool)
	txManager := trm.New(postgresDB.Pool)

	// substrate adapters
	presence := redisadapter.NewPresence(redisCli, cfg.Matching.HeartbeatTTL)
	locks := redisadapter.NewLocks(redisCli)
	streams := redisadapter.NewStreams(redisCli, cfg.Matching.ReadBlock)
	timeouts := redisadapter.NewTimeouts(redisCli)
	bus := redisadapter.NewBus(redisCli, string(cfg.Mode))

	// services
	calc := ridecalc.New(cfg.Fare)
	rideService := ride.New(rideRepo, locks, streams, timeouts, presence, driverRepo, bus, calc, txManager, cfg, log)
	driverService := driver.New(presence, driverRepo, cfg, log)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret)

	hub := ws.NewConnHub(log, cfg.HTTP.WSSendBuffer)
	listener := notify.NewListener(bus, hub, cfg, log)

	httpServer, err := server.New(cfg, rideService, driverService, tokens, hub, log)
	if err != nil {
		log.Error(ctx, "failed to setup http server", err)
		_ = redisCli.Close()
		postgresDB.Close()
		return nil, err
	}

	return &GatewayService{
		postgresDB: postgresDB,
		redisCli:   redisCli,
		httpServer: httpServer,
		listener:   listener,
		hub:        hub,
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *GatewayService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	s.httpServer.Run(runCtx, errCh)

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := s.listener.Run(runCtx); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	// Порядок остановки обратен приёму трафика: сначала HTTP-сервер,
	// потом рассыльщик уведомлений, потом соединения.
	defer func() {
		if err := s.httpServer.Stop(ctx); err != nil {
			s.log.Warn(ctx, "failed to gracefully close http server", "error", err.Error())
		}
		cancel()
		<-listenerDone
		s.close(ctx)
		s.log.Info(ctx, "gateway service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "gateway service started")

	select {
	case errRun := <-errCh:
		return errRun
	case <-ctx.Done():
		s.log.Info(ctx, "stopping on context cancellation")
		return nil
	case sig := <-shutdownCh:
		s.log.Info(ctx, "shutting down application", "signal", sig.String())
		return nil
	}
}

// close drops live connections and returns pooled resources.
func (s *GatewayService) close(ctx context.Context) {
	s.hub.Close()

	if s.redisCli != nil {
		if err := s.redisCli.Close(); err != nil {
			s.log.Warn(ctx, "failed to close redis client", "error", err.Error())
		}
	}
	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Close()
	}
}
