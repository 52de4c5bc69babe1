package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

// BackendClaims are the claims the ticket backend puts in its bearer tokens.
type BackendClaims struct {
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// ParseBackendToken reads the claims of a backend token without verifying
// the signature. The backend keeps its signing key; the dashboard only needs
// the expiry and identity to size the session.
func ParseBackendToken(token string) (*BackendClaims, error) {
	claims := &BackendClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse backend token: %w", err)
	}
	return claims, nil
}

// BackendTokenExpiry returns the exp claim of a backend token, or the zero
// time when it is missing or unreadable.
func BackendTokenExpiry(token string) time.Time {
	claims, err := ParseBackendToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
