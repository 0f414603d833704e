package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/antgonto/smart-contract/internal/db/models"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Address string        `json:"address"`
	Roles   []models.Role `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and parses the HS256 access tokens returned by the login
// endpoints. The roles claim is what the authorization middleware gates on.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenIssuer(secret string, lifetime time.Duration) *TokenIssuer {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &TokenIssuer{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

func (ti *TokenIssuer) Issue(address string, roles []models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Address: address,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ti.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) HasRole(role models.Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
