package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
)

// Claims defines the structured data we store in the dashboard JWT
type Claims struct {
	SessionID uuid.UUID   `json:"sid"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

const tokenIssuer = "armesa-dashboard"

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
}

// NewTokenManager creates a token manager. Tokens never outlive their
// session; ttl caps them further when positive.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secretKey: []byte(secret), ttl: ttl}
}

// ExpiresAt returns the expiry of a token generated now for session.
func (tm *TokenManager) ExpiresAt(session *domain.Session) time.Time {
	expirationTime := session.ExpiresAt
	if tm.ttl > 0 {
		if capped := time.Now().Add(tm.ttl); capped.Before(expirationTime) {
			expirationTime = capped
		}
	}
	return expirationTime
}

// GenerateToken creates a dashboard access token bound to the session
func (tm *TokenManager) GenerateToken(session *domain.Session) (string, error) {
	expirationTime := tm.ExpiresAt(session)

	claims := &Claims{
		SessionID: session.ID,
		Username:  session.User.Username,
		Role:      session.User.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   session.User.ID,
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ValidateToken parses and validates the token string
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secretKey, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.SessionID == uuid.Nil {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
