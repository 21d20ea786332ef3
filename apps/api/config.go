package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	usersservice "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/gcp"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	AuthProvider        string        `env:"AUTH_PROVIDER" envDefault:"firebase"` // firebase | local | dev
	SessionSecret       string        `env:"SESSION_SECRET"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"palmyra_session"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	PlatformAdminTenant string        `env:"PLATFORM_ADMIN_TENANT" envDefault:"platform"`
	GCP                 gcp.Config

	ProfileMode           string        `env:"PROFILE_MODE" envDefault:"sync"` // sync | trigger
	NATSURL               string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	AdminAwaitDelay       time.Duration `env:"ADMIN_AWAIT_DELAY" envDefault:"1s"`
	AdminAwaitAttempts    int           `env:"ADMIN_AWAIT_ATTEMPTS" envDefault:"1"`
	RegisterAwaitInterval time.Duration `env:"REGISTER_AWAIT_INTERVAL" envDefault:"500ms"`
	RegisterAwaitAttempts int           `env:"REGISTER_AWAIT_ATTEMPTS" envDefault:"10"`

	TenantDeletePolicy       string        `env:"TENANT_DELETE_POLICY" envDefault:"orphan"` // orphan | cascade
	CounterReconcileInterval time.Duration `env:"COUNTER_RECONCILE_INTERVAL" envDefault:"10m"`

	StorageBackend       string `env:"STORAGE_BACKEND" envDefault:"gcs"` // gcs | local
	StorageBucket        string `env:"STORAGE_BUCKET" envDefault:"branding"`
	StorageLocalDir      string `env:"STORAGE_LOCAL_DIR" envDefault:"./.data/storage"` // used when STORAGE_BACKEND=local
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, err
	}
	switch cfg.AuthProvider {
	case "firebase", "local", "dev":
	default:
		return config{}, fmt.Errorf("invalid AUTH_PROVIDER %q (use firebase, local or dev)", cfg.AuthProvider)
	}
	switch cfg.StorageBackend {
	case "gcs", "local":
	default:
		return config{}, fmt.Errorf("invalid STORAGE_BACKEND %q (use gcs or local)", cfg.StorageBackend)
	}
	if cfg.AuthProvider == "local" && cfg.SessionSecret == "" {
		return config{}, fmt.Errorf("SESSION_SECRET is required when AUTH_PROVIDER=local")
	}
	return cfg, nil
}

func (c config) usersConfig() (usersservice.Config, error) {
	mode, err := usersservice.ParseMode(c.ProfileMode)
	if err != nil {
		return usersservice.Config{}, err
	}
	return usersservice.Config{
		Mode: mode,
		AdminAwait: usersservice.AwaitPolicy{
			InitialDelay: c.AdminAwaitDelay,
			Interval:     c.AdminAwaitDelay,
			Attempts:     c.AdminAwaitAttempts,
		},
		RegistrationAwait: usersservice.AwaitPolicy{
			InitialDelay: c.RegisterAwaitInterval,
			Interval:     c.RegisterAwaitInterval,
			Attempts:     c.RegisterAwaitAttempts,
		},
	}, nil
}

// assetsBaseURL is where the local storage backend is served from.
func (c config) assetsBaseURL() string {
	if c.StoragePublicBaseURL != "" {
		return c.StoragePublicBaseURL
	}
	return "http://localhost:" + c.Port + "/assets"
}
