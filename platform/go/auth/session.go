package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "palmyra-tenancy"

// SessionClaims is the payload of locally issued session tokens.
type SessionClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role"`
	TenantID      string `json:"tenant_id"`
	PlatformAdmin bool   `json:"platformAdmin,omitempty"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies HS256 session tokens for the local identity provider.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions builds a session signer. The secret must be at least 32 bytes.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a session token for creds and returns it with its expiry.
func (s *Sessions) Issue(creds UserCredentials) (string, time.Time, error) {
	if creds.ID == "" {
		return "", time.Time{}, errMissingSubject
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := SessionClaims{
		Email:         creds.Email,
		EmailVerified: creds.EmailVerified,
		Name:          creds.Name,
		Role:          string(creds.Role),
		TenantID:      creds.TenantID,
		PlatformAdmin: creds.PlatformAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   creds.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expires, nil
}

// Verifier returns a VerifyFunc for the JWT middleware.
func (s *Sessions) Verifier() VerifyFunc {
	return func(_ context.Context, token string) (map[string]interface{}, error) {
		parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(sessionIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(s.now),
		)
		if err != nil {
			return nil, err
		}

		claims, ok := parsed.Claims.(*SessionClaims)
		if !ok || !parsed.Valid {
			return nil, errors.New("invalid session claims")
		}

		return map[string]interface{}{
			"uid":            claims.Subject,
			"email":          claims.Email,
			"email_verified": claims.EmailVerified,
			"name":           claims.Name,
			"role":           claims.Role,
			"tenant_id":      claims.TenantID,
			"platformAdmin":  claims.PlatformAdmin,
		}, nil
	}
}
