package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/requesttrace"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound = fmt.Errorf("tenant %w", apperr.ErrNotFound)
	ErrConflict = fmt.Errorf("tenant id %w", apperr.ErrConflict)
)

// Status of a tenant.
type Status string

const (
	StatusActive   Status = tenant.StatusActive
	StatusInactive Status = tenant.StatusInactive
	StatusTrial    Status = tenant.StatusTrial
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusTrial:
		return true
	default:
		return false
	}
}

// Tenant is an organization using the platform.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Status    Status    `json:"status"`
	MaxUsers  int       `json:"max_users"`
	UserCount int       `json:"user_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanAddUser reports whether the user quota leaves room for one more profile.
func (t Tenant) CanAddUser() bool {
	return t.UserCount < t.MaxUsers
}

// CreateInput is the payload of a tenant creation. Status defaults to active.
type CreateInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Status   Status `json:"status,omitempty"`
	MaxUsers *int   `json:"max_users,omitempty"`
}

// UpdateInput holds the fields of a partial update. ID is accepted only so a
// request that tries to change it can be rejected.
type UpdateInput struct {
	ID       *string `json:"id,omitempty"`
	Name     *string `json:"name,omitempty"`
	Domain   *string `json:"domain,omitempty"`
	Status   *Status `json:"status,omitempty"`
	MaxUsers *int    `json:"max_users,omitempty"`
}

// ListOptions captures filters and pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *Status
}

// ListResult wraps paginated tenants.
type ListResult struct {
	Tenants    []Tenant `json:"items"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalItems int      `json:"total_items"`
	TotalPages int      `json:"total_pages"`
}

// DeletePolicy decides what happens to a tenant's dependents on deletion.
type DeletePolicy string

const (
	// DeleteOrphan removes only the tenant row; profiles, features, domains and branding stay.
	DeleteOrphan DeletePolicy = "orphan"
	// DeleteCascade removes the dependents in the same transaction and then the auth identities of removed profiles.
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy accepts orphan or cascade; empty means orphan.
func ParseDeletePolicy(raw string) (DeletePolicy, error) {
	switch DeletePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DeleteOrphan:
		return DeleteOrphan, nil
	case DeleteCascade:
		return DeleteCascade, nil
	default:
		return "", fmt.Errorf("unknown tenant delete policy %q", raw)
	}
}

// Repository abstracts persistence.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Update(ctx context.Context, id string, input UpdateInput) (Tenant, error)
	// Delete removes the tenant and, with cascade, its dependents. It returns
	// the auth ids of the removed profiles.
	Delete(ctx context.Context, id string, cascade bool) ([]string, error)
	ReconcileUserCounts(ctx context.Context) (int, error)
}

// IdentityRemover deletes auth identities; satisfied by identity.Provider.
type IdentityRemover interface {
	Delete(ctx context.Context, uid string) error
}

// Config carries the optional collaborators of the service.
type Config struct {
	DeletePolicy DeletePolicy
	// Identities is required for the cascade policy.
	Identities IdentityRemover
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Service provides tenant registry operations and statistics.
type Service struct {
	repo       Repository
	stats      StatsReader
	policy     DeletePolicy
	identities IdentityRemover
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New constructs a Service with required dependencies.
func New(repo Repository, stats StatsReader, cfg Config) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if stats == nil {
		panic("tenant stats reader is required")
	}
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = DeleteOrphan
	}
	if cfg.DeletePolicy == DeleteCascade && cfg.Identities == nil {
		panic("identity remover is required for the cascade delete policy")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		stats:      stats,
		policy:     cfg.DeletePolicy,
		identities: cfg.Identities,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

// DeletePolicy returns the configured policy.
func (s *Service) DeletePolicy() DeletePolicy { return s.policy }

// List tenants with optional status filter.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Status != nil && !opts.Status.IsValid() {
		return ListResult{}, apperr.NewValidation(map[string]string{"status": "must be one of active, inactive, trial"})
	}
	return s.repo.List(ctx, opts)
}

// Create validates the payload and inserts the tenant with a zero user count.
// An existing id yields ErrConflict and nothing is written.
func (s *Service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	input.ID = strings.TrimSpace(input.ID)
	input.Name = strings.TrimSpace(input.Name)
	input.Domain = strings.ToLower(strings.TrimSpace(input.Domain))
	if err := validator.validate(createSchema, input); err != nil {
		return Tenant{}, err
	}
	if input.Status == "" {
		input.Status = StatusActive
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, Tenant{
		ID:        input.ID,
		Name:      input.Name,
		Domain:    input.Domain,
		Status:    input.Status,
		MaxUsers:  *input.MaxUsers,
		UserCount: 0,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Tenant{}, err
	}

	s.auditLogger(ctx).Info("tenant created", zap.String("tenant_id", created.ID), zap.String("status", string(created.Status)))
	return created, nil
}

// Get returns a tenant by id.
func (s *Service) Get(ctx context.Context, id string) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// Update applies a partial update. The id is immutable and max_users may drop
// below the current user count; the quota only gates new users.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (Tenant, error) {
	if input.ID != nil && *input.ID != id {
		return Tenant{}, apperr.NewValidation(map[string]string{"id": "is immutable"})
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		input.Name = &name
	}
	if input.Domain != nil {
		domain := strings.ToLower(strings.TrimSpace(*input.Domain))
		input.Domain = &domain
	}
	if err := validator.validate(updateSchema, input, "id"); err != nil {
		return Tenant{}, err
	}

	updated, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return Tenant{}, err
	}

	s.auditLogger(ctx).Info("tenant updated", zap.String("tenant_id", id))
	return updated, nil
}

// Delete removes the tenant following the configured policy. Identity cleanup
// after a cascade is best-effort: failures are logged and counted.
func (s *Service) Delete(ctx context.Context, id string) error {
	cascade := s.policy == DeleteCascade
	removed, err := s.repo.Delete(ctx, id, cascade)
	if err != nil {
		return err
	}

	logger := s.auditLogger(ctx)
	logger.Info("tenant deleted",
		zap.String("tenant_id", id),
		zap.String("policy", string(s.policy)),
		zap.Int("profiles_removed", len(removed)),
	)

	for _, authID := range removed {
		if err := s.identities.Delete(ctx, authID); err != nil {
			s.metrics.BestEffortFailed("tenant_cascade_identity_delete")
			logger.Warn("delete identity of removed profile",
				zap.String("tenant_id", id),
				zap.String("auth_id", authID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// ReconcileUserCounts recomputes every tenant's user_count from its profiles
// and returns the number of corrected tenants.
func (s *Service) ReconcileUserCounts(ctx context.Context) (int, error) {
	corrected, err := s.repo.ReconcileUserCounts(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.Reconciled(corrected)
	if corrected > 0 {
		s.logger.Warn("tenant user counts drifted and were corrected", zap.Int("tenants", corrected))
	}
	return corrected, nil
}

// RunReconciler calls ReconcileUserCounts every interval until ctx is done.
func (s *Service) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileUserCounts(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("reconcile tenant user counts", zap.Error(err))
			}
		}
	}
}

// ResolveTenantSpace returns a lightweight tenant Space for middleware consumption.
func (s *Service) ResolveTenantSpace(ctx context.Context, id string) (tenant.Space, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return tenant.Space{}, err
	}
	return tenant.Space{ID: t.ID, Name: t.Name, Status: string(t.Status)}, nil
}

func (s *Service) auditLogger(ctx context.Context) *zap.Logger {
	return platformlogging.OrDefault(ctx, s.logger).With(requesttrace.FromContextOrAnonymous(ctx).Fields()...)
}
