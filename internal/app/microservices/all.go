package microservices

import (
	"context"
	"errors"
	"sync"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/pkg/logger"
)

// AllInOneService runs the gateway and the matcher inside one process.
// Удобно для локальной разработки и интеграционных прогонов, в проде
// половины живут отдельно и масштабируются независимо.
type AllInOneService struct {
	gateway *GatewayService
	matcher *MatcherService

	log logger.Logger
}

func NewAllInOne(ctx context.Context, cfg *config.Config, log logger.Logger) (*AllInOneService, error) {
	gateway, err := NewGateway(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	matcher, err := NewMatcher(ctx, cfg, log)
	if err != nil {
		gateway.close(ctx)
		return nil, err
	}

	return &AllInOneService{
		gateway: gateway,
		matcher: matcher,
		log:     log,
	}, nil
}

func (s *AllInOneService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         sync.WaitGroup
		gatewayErr error
		matcherErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel() // остановка одной половины гасит вторую
		gatewayErr = s.gateway.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		matcherErr = s.matcher.Start(ctx)
	}()
	wg.Wait()

	return errors.Join(gatewayErr, matcherErr)
}
