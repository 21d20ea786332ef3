// Package wire builds the services used by CLI commands from a database URL.
package wire

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tenantsrepo "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/repo"
	tenantsservice "github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	usersrepo "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/gcp"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// AddDatabaseFlags registers the connection flags shared by database-backed commands.
func AddDatabaseFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string (defaults to $DATABASE_URL)")
	cmd.PersistentFlags().String("auth-provider", envOr("AUTH_PROVIDER", "local"), "Identity backend: local or firebase")
	cmd.PersistentFlags().String("log-level", "warn", "Log level for diagnostic output")
}

// Env holds the open pool and the stores built on it.
type Env struct {
	Pool     *pgxpool.Pool
	Tenants  *persistence.TenantStore
	Profiles *persistence.ProfileStore
	Features *persistence.FeatureStore
	Domains  *persistence.DomainStore
	Branding *persistence.BrandingStore
	Logger   *zap.Logger

	authProvider string
}

// Open connects using the flags registered by AddDatabaseFlags.
func Open(cmd *cobra.Command) (*Env, error) {
	databaseURL, _ := cmd.Flags().GetString("database-url")
	if databaseURL == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	authProvider, _ := cmd.Flags().GetString("auth-provider")
	logLevel, _ := cmd.Flags().GetString("log-level")

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "cli",
		Level:     logLevel,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "palmyra-cli"})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}

	env, err := newEnv(pool, logger, authProvider)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, fmt.Errorf("init stores: %w", err)
	}
	return env, nil
}

func newEnv(pool *pgxpool.Pool, logger *zap.Logger, authProvider string) (*Env, error) {
	tenants, err := persistence.NewTenantStore(pool)
	if err != nil {
		return nil, err
	}
	profiles, err := persistence.NewProfileStore(pool)
	if err != nil {
		return nil, err
	}
	features, err := persistence.NewFeatureStore(pool)
	if err != nil {
		return nil, err
	}
	domains, err := persistence.NewDomainStore(pool)
	if err != nil {
		return nil, err
	}
	branding, err := persistence.NewBrandingStore(pool)
	if err != nil {
		return nil, err
	}
	return &Env{
		Pool:         pool,
		Tenants:      tenants,
		Profiles:     profiles,
		Features:     features,
		Domains:      domains,
		Branding:     branding,
		Logger:       logger,
		authProvider: authProvider,
	}, nil
}

// Close releases the pool.
func (e *Env) Close() {
	persistence.ClosePool(e.Pool)
	_ = e.Logger.Sync()
}

// Identities returns the identity provider selected by --auth-provider.
func (e *Env) Identities(ctx context.Context) (identity.Provider, error) {
	switch e.authProvider {
	case "local", "dev":
		store, err := persistence.NewIdentityStore(e.Pool)
		if err != nil {
			return nil, err
		}
		return identity.NewLocalProvider(store, 0), nil
	case "firebase":
		var cfg gcp.Config
		cfg.CredentialsFile = os.Getenv("FIREBASE_CONFIG")
		cfg.ProjectID = os.Getenv("GCLOUD_PROJECT")
		_, client, err := gcp.InitFirebaseAuth(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return identity.NewFirebaseProvider(client), nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", e.authProvider)
	}
}

// TenantService builds the tenants service. Identities are only resolved for
// the cascade policy.
func (e *Env) TenantService(ctx context.Context, policy tenantsservice.DeletePolicy) (*tenantsservice.Service, error) {
	cfg := tenantsservice.Config{DeletePolicy: policy, Logger: e.Logger}
	if policy == tenantsservice.DeleteCascade {
		ids, err := e.Identities(ctx)
		if err != nil {
			return nil, fmt.Errorf("init identity provider: %w", err)
		}
		cfg.Identities = ids
	}
	return tenantsservice.New(
		tenantsrepo.NewPostgresRepository(e.Tenants),
		tenantsrepo.NewPostgresStats(e.Profiles, e.Features, e.Domains, e.Branding),
		cfg,
	), nil
}

// UserService builds the users service in sync mode.
func (e *Env) UserService(ctx context.Context) (*usersservice.Service, error) {
	ids, err := e.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("init identity provider: %w", err)
	}
	return usersservice.New(usersservice.Deps{
		Profiles:   usersrepo.NewPostgresRepository(e.Profiles),
		Tenants:    e.Tenants,
		Identities: ids,
		Logger:     e.Logger,
	}, usersservice.DefaultConfig()), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
