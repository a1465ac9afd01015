package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridcab/dispatch/config"
	"github.com/gridcab/dispatch/internal/app/microservices"
	"github.com/gridcab/dispatch/internal/domain/types"
	"github.com/gridcab/dispatch/pkg/logger"
)

var (
	ErrInvalidMode           = errors.New("invalid mode")
	ErrServiceNotInitialized = errors.New("service not initialized")
)

type Service interface {
	Start(ctx context.Context) error
}

// App resolves the configured mode into one of the runnable service
// compositions and runs it.
type App struct {
	service Service
}

func NewApplication(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	service, err := composeService(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &App{service: service}, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.service == nil {
		return ErrServiceNotInitialized
	}

	return a.service.Start(ctx)
}

func composeService(ctx context.Context, cfg *config.Config, log logger.Logger) (Service, error) {
	var (
		service Service
		err     error
	)
	switch cfg.Mode {
	case types.GatewayService:
		service, err = microservices.NewGateway(ctx, cfg, log)
	case types.MatcherService:
		service, err = microservices.NewMatcher(ctx, cfg, log)
	case types.AllInOne:
		service, err = microservices.NewAllInOne(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init %s: %w", cfg.Mode, err)
	}

	return service, nil
}
