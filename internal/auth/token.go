package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates session bearer tokens. Tokens are signed
// HS256 JWTs carrying the MAC and role plus a 128-bit random token ID, and
// are opaque from the client's point of view.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the session token payload.
type Claims struct {
	MAC  string `json:"mac"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Generate builds and signs a token bound to the MAC and role, valid until
// expiresAt. Each call embeds a fresh random jti, so replacement logins
// always invalidate comparisons against earlier tokens.
func (tm *TokenManager) Generate(mac, role string, expiresAt time.Time) (string, error) {
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	claims := &Claims{
		MAC:  mac,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(jti),
			Subject:   mac,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Parse validates a token and returns its claims.
func (tm *TokenManager) Parse(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
