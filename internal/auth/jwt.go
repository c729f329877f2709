// Package auth issues and verifies the bearer token carried by the
// meta-queue Authenticate request (spec.md §3.4 "Meta queue").
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the authenticated user. The framework treats UserID
// as opaque — it is never interpreted, only carried and compared.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Manager issues and verifies tokens.
type Manager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewManager builds a Manager from a shared secret and a token lifetime.
func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{secretKey: []byte(secretKey), tokenDuration: tokenDuration}
}

// Issue creates a new signed token for userID.
func (m *Manager) Issue(userID string) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "odin",
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify validates tokenString and returns its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Verifier is the narrow surface the meta-queue's Authenticate handler
// depends on, so a deployment can swap in strict verification without the
// handler knowing about jwt.Manager directly.
type Verifier interface {
	Verify(tokenString string) (*Claims, error)
}
