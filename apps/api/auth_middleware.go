package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/gcp"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// authStack bundles everything derived from AUTH_PROVIDER.
type authStack struct {
	middleware func(http.Handler) http.Handler
	identities identity.Provider
	// authenticator and sessions are nil for firebase; clients sign in with Firebase directly.
	authenticator identity.Authenticator
	sessions      *platformauth.Sessions
}

// buildAuth constructs the JWT middleware and the identity provider for the configured backend.
func buildAuth(ctx context.Context, cfg config, pool *pgxpool.Pool, logger *zap.Logger) authStack {
	extract := platformauth.PlatformTenantExtractor(cfg.PlatformAdminTenant)
	cookie := platformauth.WithSessionCookie(cfg.SessionCookieName)

	switch cfg.AuthProvider {
	case "firebase":
		_, fbAuth, err := gcp.InitFirebaseAuth(ctx, cfg.GCP)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		return authStack{
			middleware: platformauth.JWT(platformauth.FirebaseTokenVerifier(fbAuth), extract, cookie),
			identities: identity.NewFirebaseProvider(fbAuth),
		}
	case "local", "dev":
		secret := cfg.SessionSecret
		if secret == "" {
			secret = randomSecret(logger)
			logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
		}
		sessions, err := platformauth.NewSessions(secret, cfg.SessionTTL)
		if err != nil {
			logger.Fatal("init sessions", zap.Error(err))
		}

		store, err := persistence.NewIdentityStore(pool)
		if err != nil {
			logger.Fatal("init identity store", zap.Error(err))
		}
		local := identity.NewLocalProvider(store, bcrypt.DefaultCost)

		verify := sessions.Verifier()
		if cfg.AuthProvider == "dev" {
			logger.Warn("using dev auth middleware; do not use in production")
			verify = firstVerified(sessions.Verifier(), platformauth.UnsignedTokenVerifier())
		}
		return authStack{
			middleware:    platformauth.JWT(verify, extract, cookie),
			identities:    local,
			authenticator: local,
			sessions:      sessions,
		}
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
		return authStack{}
	}
}

// firstVerified tries each verifier in order and returns the first success.
func firstVerified(verifiers ...platformauth.VerifyFunc) platformauth.VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		var errs []error
		for _, verify := range verifiers {
			claims, err := verify(ctx, token)
			if err == nil {
				return claims, nil
			}
			errs = append(errs, err)
		}
		return nil, errors.Join(errs...)
	}
}

func randomSecret(logger *zap.Logger) string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Fatal("generate session secret", zap.Error(err))
	}
	return hex.EncodeToString(buf)
}
