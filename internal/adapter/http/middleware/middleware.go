package middleware

import (
	"context"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/pkg/logger"
)

type (
	TokenValidator interface {
		Validate(ctx context.Context, token string) (models.Identity, error)
	}

	Middleware struct {
		tokens TokenValidator
		log    logger.Logger
	}
)

func NewMiddleware(tokens TokenValidator, log logger.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		log:    log,
	}
}
