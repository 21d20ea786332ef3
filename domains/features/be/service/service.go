package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// Errors returned by the service layer.
var (
	ErrNotFound       = fmt.Errorf("feature %w", apperr.ErrNotFound)
	ErrConflict       = fmt.Errorf("feature name %w", apperr.ErrConflict)
	ErrTenantNotFound = fmt.Errorf("tenant %w", apperr.ErrNotFound)
)

// Feature is a per-tenant feature flag.
type Feature struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateInput is the payload of a new feature flag.
type CreateInput struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// UpdateInput holds the mutable fields; the name is fixed once created.
type UpdateInput struct {
	Category    *string `json:"category,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Repository abstracts persistence; satisfied by *persistence.FeatureStore.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateFeatureParams) (persistence.Feature, error)
	ListByTenant(ctx context.Context, tenantID string) ([]persistence.Feature, error)
	Update(ctx context.Context, tenantID string, id uuid.UUID, params persistence.UpdateFeatureParams) (persistence.Feature, error)
	Delete(ctx context.Context, tenantID string, id uuid.UUID) error
}

// TenantReader confirms the tenant exists before writes.
type TenantReader interface {
	Get(ctx context.Context, id string) (persistence.Tenant, error)
}

// Service manages feature flags. Members read, tenant admins write.
type Service struct {
	repo    Repository
	tenants TenantReader
	logger  *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, tenants TenantReader, logger *zap.Logger) *Service {
	if repo == nil {
		panic("features repo is required")
	}
	if tenants == nil {
		panic("tenant reader is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, tenants: tenants, logger: logger}
}

// List returns the tenant's flags.
func (s *Service) List(ctx context.Context, actor *platformauth.UserCredentials, tenantID string) ([]Feature, error) {
	if err := actor.CanRead(tenantID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	features := make([]Feature, 0, len(records))
	for _, rec := range records {
		features = append(features, toFeature(rec))
	}
	return features, nil
}

// Create adds a flag. Names are unique per tenant.
func (s *Service) Create(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, in CreateInput) (Feature, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return Feature{}, err
	}

	fields := apperr.FieldErrors{}
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		fields.Add("name", "name is required")
	} else if len(in.Name) > 100 {
		fields.Add("name", "name must be at most 100 characters")
	}
	if in.Category == "" {
		fields.Add("category", "category is required")
	}
	if err := fields.Err(); err != nil {
		return Feature{}, err
	}

	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return Feature{}, mapPersistenceError(err, ErrTenantNotFound)
	}

	rec, err := s.repo.Create(ctx, persistence.CreateFeatureParams{
		TenantID:    tenantID,
		Name:        in.Name,
		Category:    in.Category,
		Enabled:     in.Enabled,
		Description: in.Description,
	})
	if err != nil {
		return Feature{}, mapPersistenceError(err, ErrNotFound)
	}

	platformlogging.OrDefault(ctx, s.logger).Info("feature created",
		zap.String("tenant_id", tenantID), zap.String("feature", rec.Name), zap.Bool("enabled", rec.Enabled))
	return toFeature(rec), nil
}

// Update toggles or edits a flag.
func (s *Service) Update(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, id uuid.UUID, in UpdateInput) (Feature, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return Feature{}, err
	}
	if in.Category == nil && in.Enabled == nil && in.Description == nil {
		return Feature{}, apperr.NewValidation(map[string]string{"body": "at least one of category, enabled, description is required"})
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return Feature{}, apperr.NewValidation(map[string]string{"category": "category must not be empty"})
	}

	rec, err := s.repo.Update(ctx, tenantID, id, persistence.UpdateFeatureParams{
		Category:    in.Category,
		Enabled:     in.Enabled,
		Description: in.Description,
	})
	if err != nil {
		return Feature{}, mapPersistenceError(err, ErrNotFound)
	}
	return toFeature(rec), nil
}

// Delete removes a flag.
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

func toFeature(rec persistence.Feature) Feature {
	return Feature{
		ID:          rec.ID,
		TenantID:    rec.TenantID,
		Name:        rec.Name,
		Category:    rec.Category,
		Enabled:     rec.Enabled,
		Description: rec.Description,
		CreatedAt:   rec.CreatedAt,
	}
}

var _ Repository = (*persistence.FeatureStore)(nil)
