package service

import (
	"errors"
	"fmt"

	"github.com/acadex/examroom-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenType distinguishes student vs teacher tokens minted by the identity
// provider.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeTeacher TokenType = "teacher"
)

// Claims are the identity-provider claims this service relies on.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
}

// IdentityService verifies tokens issued by the external identity provider.
// Authentication itself (login, sessions, password handling) lives there;
// this service only checks the shared-secret signature and reads claims.
type IdentityService struct {
	cfg *config.Config
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(cfg *config.Config) *IdentityService {
	return &IdentityService{cfg: cfg}
}

// ValidateToken parses and verifies a JWT, returning its claims.
func (s *IdentityService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
