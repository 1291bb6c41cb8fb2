package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/credentia/certportal-backend/internal/model"
)

// Claims is the JWT payload issued by the identity provider and consumed by
// the API's auth middleware.
type Claims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// IdentityService validates access tokens. Token issuance lives in the
// identity provider; this service only verifies.
type IdentityService struct {
	secret []byte
	expiry time.Duration
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(secret string, expiry time.Duration) *IdentityService {
	return &IdentityService{secret: []byte(secret), expiry: expiry}
}

// ValidateToken parses and verifies a token string, returning its claims.
func (s *IdentityService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token missing user id")
	}
	return claims, nil
}
