package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims identifies an admin session inside a bearer token.
type AdminClaims struct {
	SessionID string `json:"sid"`
	ClientKey string `json:"clientKey"`
	jwt.RegisteredClaims
}

// JWTManager signs and validates admin bearer tokens with HS256.
type JWTManager struct {
	secret []byte
	now    func() time.Time
}

// NewJWTManager creates a JWTManager. now may be nil (time.Now).
func NewJWTManager(secret string, now func() time.Time) *JWTManager {
	if now == nil {
		now = time.Now
	}
	return &JWTManager{secret: []byte(secret), now: now}
}

// GenerateJWT issues a token for sessionID valid from issuedAt for ttl.
func (m *JWTManager) GenerateJWT(sessionID, clientKey string, issuedAt time.Time, ttl time.Duration) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	claims := AdminClaims{
		SessionID: sessionID,
		ClientKey: clientKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ValidateJWT parses and verifies a token. An expired token is reported as
// ErrSessionExpired, any other failure as ErrInvalidToken.
func (m *JWTManager) ValidateJWT(token string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
