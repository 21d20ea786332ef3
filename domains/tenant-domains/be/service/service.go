package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// Errors returned by the service layer.
var (
	ErrNotFound       = fmt.Errorf("domain %w", apperr.ErrNotFound)
	ErrConflict       = fmt.Errorf("hostname %w", apperr.ErrConflict)
	ErrTenantNotFound = fmt.Errorf("tenant %w", apperr.ErrNotFound)
)

// Domain is a hostname served for a tenant.
type Domain struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Hostname  string    `json:"hostname"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput registers a hostname.
type CreateInput struct {
	Hostname string `json:"hostname"`
}

// UpdateInput flips the verification flag.
type UpdateInput struct {
	Verified *bool `json:"verified"`
}

// Repository abstracts persistence; satisfied by *persistence.DomainStore.
type Repository interface {
	Create(ctx context.Context, tenantID, hostname string) (persistence.Domain, error)
	ListByTenant(ctx context.Context, tenantID string) ([]persistence.Domain, error)
	SetVerified(ctx context.Context, tenantID string, id uuid.UUID, verified bool) (persistence.Domain, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// TenantReader confirms the tenant exists before writes.
type TenantReader interface {
	Get(ctx context.Context, id string) (persistence.Tenant, error)
}

// Service manages tenant domains.
type Service struct {
	repo    Repository
	tenants TenantReader
	logger  *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, tenants TenantReader, logger *zap.Logger) *Service {
	if repo == nil {
		panic("domains repo is required")
	}
	if tenants == nil {
		panic("tenant reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, tenants: tenants, logger: logger}
}

func (s *Service) List(ctx context.Context, actor *platformauth.UserCredentials, tenantID string) ([]Domain, error) {
	if err := actor.CanRead(tenantID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	domains := make([]Domain, 0, len(records))
	for _, rec := range records {
		domains = append(domains, toDomain(rec))
	}
	return domains, nil
}

// Create registers an unverified hostname. Hostnames are unique across tenants.
func (s *Service) Create(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, in CreateInput) (Domain, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return Domain{}, err
	}

	hostname := strings.ToLower(strings.TrimSpace(in.Hostname))
	switch {
	case hostname == "":
		return Domain{}, apperr.NewValidation(map[string]string{"hostname": "hostname is required"})
	case len(hostname) > 253 || !hostnamePattern.MatchString(hostname):
		return Domain{}, apperr.NewValidation(map[string]string{"hostname": "hostname is not a valid domain name"})
	}

	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return Domain{}, mapPersistenceError(err, ErrTenantNotFound)
	}

	rec, err := s.repo.Create(ctx, tenantID, hostname)
	if err != nil {
		return Domain{}, mapPersistenceError(err, ErrNotFound)
	}

	platformlogging.OrDefault(ctx, s.logger).Info("domain added", zap.String("tenant_id", tenantID), zap.String("hostname", hostname))
	return toDomain(rec), nil
}

// Update sets the verification flag.
func (s *Service) Update(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, id uuid.UUID, in UpdateInput) (Domain, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return Domain{}, err
	}
	if in.Verified == nil {
		return Domain{}, apperr.NewValidation(map[string]string{"verified": "verified is required"})
	}

	rec, err := s.repo.SetVerified(ctx, tenantID, id, *in.Verified)
	if err != nil {
		return Domain{}, mapPersistenceError(err, ErrNotFound)
	}
	return toDomain(rec), nil
}

func (s *Service) Delete(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, id uuid.UUID) error {
	if err := actor.CanAdminister(tenantID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return mapPersistenceError(err, ErrNotFound)
	}
	return nil
}

func mapPersistenceError(err, notFound error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return notFound
	case errors.Is(err, persistence.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}

func toDomain(rec persistence.Domain) Domain {
	return Domain{ID: rec.ID, TenantID: rec.TenantID, Hostname: rec.Hostname, Verified: rec.Verified, CreatedAt: rec.CreatedAt}
}

var _ Repository = (*persistence.DomainStore)(nil)
