package microservices

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gridcab/dispatch/config"
	repo "github.com/gridcab/dispatch/internal/adapter/postgres"
	redisadapter "github.com/gridcab/dispatch/internal/adapter/redis"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/internal/service/matching"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/postgres"
	"github.com/gridcab/dispatch/pkg/redisdb"

	goredis "github.com/redis/go-redis/v9"
)

// MatcherService is the headless half: stream workers that search and
// propose, the proposal-timeout reaper and the presence sweeper. It serves
// no HTTP traffic.
type MatcherService struct {
	postgresDB *postgres.PostgreDB
	redisCli   *goredis.Client

	streams *redisadapter.Streams
	worker  *matching.Worker
	reaper  *matching.Reaper
	sweeper *matching.Sweeper

	cfg *config.Config
	log logger.Logger
}

func NewMatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*MatcherService, error) {
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

	// substrate adapters
	presence := redisadapter.NewPresence(redisCli, cfg.Matching.HeartbeatTTL)
	locks := redisadapter.NewLocks(redisCli)
	streams := redisadapter.NewStreams(redisCli, cfg.Matching.ReadBlock)
	timeouts := redisadapter.NewTimeouts(redisCli)
	bus := redisadapter.NewBus(redisCli, string(cfg.Mode))

	search := matching.NewSearch(presence, locks, cfg, log)

	return &MatcherService{
		postgresDB: postgresDB,
		redisCli:   redisCli,
		streams:    streams,
		worker:     matching.NewWorker(streams, rideRepo, search, timeouts, bus, cfg, log),
		reaper:     matching.NewReaper(timeouts, locks, streams, cfg, log),
		sweeper:    matching.NewSweeper(presence, driverRepo, cfg, log),
		cfg:        cfg,
		log:        log,
	}, nil
}

func (s *MatcherService) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.streams.EnsureGroup(runCtx); err != nil {
		s.close(ctx)
		return err
	}
	s.log.Info(wrap.WithAction(ctx, types.ActionConsumerGroupReady), "consumer group ready")

	host, err := os.Hostname()
	if err != nil {
		host = "matcher"
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	launch := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(runCtx); err != nil {
				select {
				case errCh <- fmt.Errorf("%s: %w", name, err):
				default:
				}
			}
		}()
	}

	// Воркеры делят consumer group, у каждого своё имя консьюмера.
	for i := range s.cfg.Matching.Workers {
		consumer := fmt.Sprintf("%s-%d", host, i)
		launch(consumer, func(ctx context.Context) error {
			return s.worker.Run(ctx, consumer)
		})
	}

	launch("claimer", func(ctx context.Context) error {
		return s.worker.RunClaimer(ctx, fmt.Sprintf("%s-claimer", host), s.cfg.Matching.ClaimMinIdle)
	})
	launch("reaper", s.reaper.Run)
	launch("sweeper", s.sweeper.Run)

	defer func() {
		cancel()
		wg.Wait()
		s.close(ctx)
		s.log.Info(ctx, "matcher service closed")
	}()

	// Waiting signal
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	s.log.Info(ctx, "matcher service started", "workers", s.cfg.Matching.Workers)

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

func (s *MatcherService) close(ctx context.Context) {
	if s.redisCli != nil {
		if err := s.redisCli.Close(); err != nil {
			s.log.Warn(ctx, "failed to close redis client", "error", err.Error())
		}
	}
	if s.postgresDB != nil && s.postgresDB.Pool != nil {
		s.postgresDB.Close()
	}
}
