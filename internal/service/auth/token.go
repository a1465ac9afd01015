package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/internal/domain/types"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService проверяет подписанные HS256 токены и достаёт из них
// личность вызывающего. Выпуск боевых токенов живёт снаружи, Generate
// нужен тестам и локальной утилите.
type TokenService struct {
	secret string
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// Validate parses the token string and returns the caller identity.
func (s *TokenService) Validate(ctx context.Context, token string) (models.Identity, error) {
	ctx = wrap.WithAction(ctx, "validate_token")

	parsed, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(s.secret), nil
	})
	if err != nil || !parsed.Valid {
		return models.Identity{}, wrap.Error(ctx, ErrInvalidToken)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, wrap.Error(ctx, ErrInvalidToken)
	}

	userID, ok := claimInt64(mc, "user_id")
	if !ok || userID < 1 {
		return models.Identity{}, wrap.Error(ctx, fmt.Errorf("invalid or missing 'user_id' in token claims"))
	}

	role := types.UserRole(fmt.Sprint(mc["role"]))
	if role != types.PassengerRole && role != types.DriverRole {
		return models.Identity{}, wrap.Error(ctx, fmt.Errorf("invalid or missing 'role' in token claims"))
	}

	return models.Identity{UserID: userID, Role: role}, nil
}

// Generate signs a token carrying the identity, expiring after ttl.
func (s *TokenService) Generate(identity models.Identity, ttl time.Duration) (string, error) {
	issuedAt := time.Now().UTC()
	claims := jwt.MapClaims{
		"user_id": identity.UserID,
		"role":    identity.Role.String(),
		"iat":     issuedAt.Unix(),
		"exp":     issuedAt.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// user_id приходит как float64 из encoding/json, но строка и json.Number
// тоже принимаются.
func claimInt64(mc jwt.MapClaims, key string) (int64, bool) {
	switch v := mc[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
