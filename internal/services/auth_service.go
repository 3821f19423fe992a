package services

import (
	"context"
	"strings"

	"chatify-realtime/config"
	chatify_errors "chatify-realtime/pkg/errors"
	"chatify-realtime/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies access tokens issued by the account service. Tokens
// are HS256 signed with the shared JWT secret; the subject is the user id.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}
}

type AccessClaims struct {
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func (c AccessClaims) UserID() string {
	return strings.TrimSpace(c.Subject)
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chatify_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chatify_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return AccessClaims{}, chatify_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.UserID() == "" {
		return AccessClaims{}, chatify_errors.ErrUnauthorized
	}

	return *claims, nil
}

type ctxKey string

var claimsKey ctxKey = "access_claims"

// WithClaims stores the verified claims on ctx. The user id is also stored
// under the logger key so request logs carry it.
func WithClaims(ctx context.Context, claims AccessClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, logger.UserIdKey, claims.UserID())
}

func ClaimsFromContext(ctx context.Context) (AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(AccessClaims)
	return claims, ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID() == "" {
		return "", false
	}
	return claims.UserID(), true
}
