// Package identity creates and removes authentication identities. Two backends
// exist: Firebase Authentication and a local PostgreSQL-backed store used for
// development and self-hosted deployments.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrEmailExists is returned when the email is already registered.
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidCredentials is returned by Authenticate on a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotFound is returned when deleting an unknown identity.
	ErrNotFound = errors.New("identity not found")
)

// Claims are the custom claims stamped on every identity and read back from session tokens.
type Claims struct {
	Name     string
	Role     string
	TenantID string
}

// Map renders the claims in their token form.
func (c Claims) Map() map[string]any {
	return map[string]any{
		"name":      c.Name,
		"role":      c.Role,
		"tenant_id": c.TenantID,
	}
}

// ClaimsFromMap is the inverse of Claims.Map.
func ClaimsFromMap(m map[string]any) Claims {
	str := func(key string) string {
		v, _ := m[key].(string)
		return v
	}
	return Claims{Name: str("name"), Role: str("role"), TenantID: str("tenant_id")}
}

// NewIdentity describes an account to create.
type NewIdentity struct {
	Email         string
	Password      string
	DisplayName   string
	EmailVerified bool
	Claims        Claims
}

// Identity is a created or authenticated account.
type Identity struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
	Claims        Claims
}

// Provider creates and deletes identities.
type Provider interface {
	Create(ctx context.Context, in NewIdentity) (Identity, error)
	Delete(ctx context.Context, uid string) error
}

// Authenticator checks email/password pairs. Only the local provider
// implements it; Firebase clients authenticate directly against Firebase.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Identity, error)
}
