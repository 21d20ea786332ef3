package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/users/be/repo"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
)

// Domain sentinel errors.
var (
	ErrNotFound       = fmt.Errorf("user %w", apperr.ErrNotFound)
	ErrTenantNotFound = fmt.Errorf("tenant %w", apperr.ErrNotFound)
	ErrQuotaExceeded  = fmt.Errorf("tenant user limit reached: %w", apperr.ErrQuotaExceeded)
)

// Mode selects how profiles are materialized after an identity is created.
type Mode string

const (
	// ModeSync inserts the profile and bumps the tenant counter inside the request.
	ModeSync Mode = "sync"
	// ModeTrigger publishes identity.created and waits for the profile worker.
	ModeTrigger Mode = "trigger"
)

// ParseMode accepts sync or trigger; empty means sync.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSync:
		return ModeSync, nil
	case ModeTrigger:
		return ModeTrigger, nil
	default:
		return "", fmt.Errorf("unknown profile mode %q", raw)
	}
}

// Profile is the application-side record of a user.
type Profile struct {
	ID         uuid.UUID `json:"id"`
	AuthID     string    `json:"auth_id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Department *string   `json:"department,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Deps are the collaborators of the service. All are required except Events
// (only used in trigger mode), Logger and Metrics.
type Deps struct {
	Profiles   repo.Repository
	Tenants    repo.TenantReader
	Identities identity.Provider
	Events     events.Publisher
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Config tunes profile materialization.
type Config struct {
	Mode              Mode
	AdminAwait        AwaitPolicy
	RegistrationAwait AwaitPolicy
}

// DefaultConfig returns sync mode with the standard await policies.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeSync,
		AdminAwait:        DefaultAdminAwait,
		RegistrationAwait: DefaultRegistrationAwait,
	}
}

// Service provisions, registers, lists and removes tenant users.
type Service struct {
	profiles   repo.Repository
	tenants    repo.TenantReader
	identities identity.Provider
	events     events.Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	cfg        Config
	awaiter    profileAwaiter
	now        func() time.Time
}

// New constructs a users Service.
func New(deps Deps, cfg Config) *Service {
	if deps.Profiles == nil {
		panic("profile repository is required")
	}
	if deps.Tenants == nil {
		panic("tenant reader is required")
	}
	if deps.Identities == nil {
		panic("identity provider is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.Mode == ModeTrigger && deps.Events == nil {
		panic("event publisher is required in trigger mode")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		profiles:   deps.Profiles,
		tenants:    deps.Tenants,
		identities: deps.Identities,
		events:     deps.Events,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		cfg:        cfg,
		awaiter:    profileAwaiter{lookup: deps.Profiles.GetByAuthID},
		now:        time.Now,
	}
}

// List returns the profiles of tenantID. Platform admins may list any tenant;
// tenant ADMINs and MANAGERs only their own.
func (s *Service) List(ctx context.Context, actor *platformauth.UserCredentials, tenantID string) ([]Profile, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.NewValidation(map[string]string{"tenant_id": "tenant_id is required"})
	}
	if actor == nil {
		return nil, apperr.ErrAuthentication
	}
	if err := actor.CanRead(tenantID); err != nil {
		return nil, err
	}
	if !actor.IsPlatformAdmin() && actor.Role == platformauth.RoleUser {
		return nil, fmt.Errorf("role %s cannot list users: %w", actor.Role, apperr.ErrAuthorization)
	}

	records, err := s.profiles.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(records))
	for _, rec := range records {
		profiles = append(profiles, toProfile(rec))
	}
	return profiles, nil
}

// checkTenant loads the tenant and verifies there is room for one more user.
func (s *Service) checkTenant(ctx context.Context, tenantID string) (persistence.Tenant, error) {
	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Tenant{}, ErrTenantNotFound
		}
		return persistence.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	if t.UserCount >= t.MaxUsers {
		return persistence.Tenant{}, fmt.Errorf("tenant %q has %d of %d users: %w", t.ID, t.UserCount, t.MaxUsers, ErrQuotaExceeded)
	}
	return t, nil
}

func (s *Service) auditLogger(ctx context.Context) *zap.Logger {
	return platformlogging.OrDefault(ctx, s.logger).With(requesttrace.FromContextOrAnonymous(ctx).Fields()...)
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrQuotaExceeded):
		return ErrQuotaExceeded
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("profile %w", apperr.ErrConflict)
	default:
		return err
	}
}

func toProfile(rec persistence.Profile) Profile {
	return Profile{
		ID:         rec.ID,
		AuthID:     rec.AuthID,
		TenantID:   rec.TenantID,
		Name:       rec.Name,
		Email:      rec.Email,
		Role:       rec.Role,
		Department: rec.Department,
		AvatarURL:  rec.AvatarURL,
		CreatedAt:  rec.CreatedAt,
	}
}
