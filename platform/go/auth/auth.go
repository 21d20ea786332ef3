package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

type ctxKey string

const (
	ctxUserCredentials ctxKey = "PALMYRA_USER_CREDENTIALS"
)

// Role is the tenant-scoped role carried by a session.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// ParseRole accepts the role names case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// UserCredentials is the authenticated actor attached to a request.
type UserCredentials struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Role          Role
	TenantID      string
	PlatformAdmin bool
}

// IsPlatformAdmin reports whether the actor is an ADMIN carrying the
// platform administrator flag. The flag alone grants nothing.
func (c *UserCredentials) IsPlatformAdmin() bool {
	return c != nil && c.PlatformAdmin && c.Role == RoleAdmin
}

// CanAdminister reports whether the actor may manage data of tenantID: an
// ADMIN of that tenant, or a platform admin.
func (c *UserCredentials) CanAdminister(tenantID string) error {
	if c == nil {
		return apperr.ErrAuthentication
	}
	if c.Role != RoleAdmin {
		return fmt.Errorf("role %s cannot manage tenant data: %w", c.Role, apperr.ErrAuthorization)
	}
	if c.PlatformAdmin {
		return nil
	}
	if c.TenantID == "" || c.TenantID != tenantID {
		return fmt.Errorf("tenant %q is outside the session scope: %w", tenantID, apperr.ErrAuthorization)
	}
	return nil
}

// CanRead reports whether the actor belongs to tenantID or is a platform admin.
func (c *UserCredentials) CanRead(tenantID string) error {
	if c == nil {
		return apperr.ErrAuthentication
	}
	if c.IsPlatformAdmin() {
		return nil
	}
	if c.TenantID == "" || c.TenantID != tenantID {
		return fmt.Errorf("tenant %q is outside the session scope: %w", tenantID, apperr.ErrAuthorization)
	}
	return nil
}

// WithCredentials attaches creds to ctx.
func WithCredentials(ctx context.Context, creds *UserCredentials) context.Context {
	return context.WithValue(ctx, ctxUserCredentials, creds)
}

func UserFromContext(ctx context.Context) (*UserCredentials, bool) {
	v := ctx.Value(ctxUserCredentials)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*UserCredentials)
	return u, ok && u != nil
}

// Require returns the request credentials or apperr.ErrAuthentication.
func Require(ctx context.Context) (*UserCredentials, error) {
	creds, ok := UserFromContext(ctx)
	if !ok {
		return nil, apperr.ErrAuthentication
	}
	return creds, nil
}

// VerifyFunc validates the incoming JWT and returns its claims map.
type VerifyFunc func(ctx context.Context, token string) (map[string]interface{}, error)

// ExtractFunc converts a claims map into UserCredentials.
type ExtractFunc func(claims map[string]interface{}) (*UserCredentials, error)

// Option customises the JWT middleware.
type Option func(*options)

type options struct {
	cookieName string
}

// WithSessionCookie makes the middleware also read the token from the named cookie.
func WithSessionCookie(name string) Option {
	return func(o *options) { o.cookieName = name }
}

// JWT parses the request and sets the context credentials using the provided verify/extract functions.
// Requests without a token pass through anonymously; route-level middleware decides whether that is allowed.
func JWT(verify VerifyFunc, extract ExtractFunc, opts ...Option) func(http.Handler) http.Handler {
	if verify == nil {
		panic("auth.JWT: verify func must not be nil")
	}
	if extract == nil {
		extract = DefaultCredentialExtractor
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := ExtractToken(r, o.cookieName)
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verify(r.Context(), token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				respond.Error(w, r, nil, "authenticate", fmt.Errorf("verify token: %v: %w", err, apperr.ErrAuthentication))
				return
			}

			creds, err := extract(claims)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="invalid claims"`)
				respond.Error(w, r, nil, "authenticate", fmt.Errorf("extract claims: %v: %w", err, apperr.ErrAuthentication))
				return
			}

			ctx := WithCredentials(r.Context(), creds)
			ctx = platformlogging.Enrich(ctx, zap.String("user_id", creds.ID), zap.String("tenant_id", creds.TenantID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			respond.Error(w, r, nil, "authenticate", apperr.ErrAuthentication)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePlatformAdmin only lets platform administrators through.
func RequirePlatformAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, ok := UserFromContext(r.Context())
		switch {
		case !ok:
			respond.Error(w, r, nil, "authorize", apperr.ErrAuthentication)
			return
		case !creds.IsPlatformAdmin():
			respond.Error(w, r, nil, "authorize", fmt.Errorf("platform administrator required: %w", apperr.ErrAuthorization))
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errMissingSubject = errors.New("token has no subject")
