package repo

import (
	"context"
	"errors"

	"github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// PostgresRepository implements the tenant repository using the shared persistence layer.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	page, size := normalizePage(opts.Page, opts.PageSize)

	var status *string
	if opts.Status != nil {
		s := string(*opts.Status)
		status = &s
	}

	res, err := r.store.List(ctx, persistence.ListTenantsParams{Status: status, Page: page, PageSize: size})
	if err != nil {
		return service.ListResult{}, err
	}

	tenants := make([]service.Tenant, 0, len(res.Tenants))
	for _, rec := range res.Tenants {
		tenants = append(tenants, toServiceTenant(rec))
	}

	return service.ListResult{
		Tenants:    tenants,
		Page:       page,
		PageSize:   size,
		TotalItems: res.TotalItems,
		TotalPages: totalPages(res.TotalItems, size),
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	out, err := r.store.Create(ctx, persistence.CreateTenantParams{
		ID:       t.ID,
		Name:     t.Name,
		Domain:   t.Domain,
		Status:   string(t.Status),
		MaxUsers: t.MaxUsers,
	})
	if err != nil {
		return service.Tenant{}, mapConflict(err)
	}
	return toServiceTenant(out), nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (service.Tenant, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, input service.UpdateInput) (service.Tenant, error) {
	params := persistence.UpdateTenantParams{
		Name:     input.Name,
		Domain:   input.Domain,
		MaxUsers: input.MaxUsers,
	}
	if input.Status != nil {
		s := string(*input.Status)
		params.Status = &s
	}

	rec, err := r.store.Update(ctx, id, params)
	if err != nil {
		return service.Tenant{}, mapNotFound(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string, cascade bool) ([]string, error) {
	removed, err := r.store.Delete(ctx, id, cascade)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return removed, nil
}

func (r *PostgresRepository) ReconcileUserCounts(ctx context.Context) (int, error) {
	return r.store.ReconcileUserCounts(ctx)
}

func toServiceTenant(rec persistence.Tenant) service.Tenant {
	return service.Tenant{
		ID:        rec.ID,
		Name:      rec.Name,
		Domain:    rec.Domain,
		Status:    service.Status(rec.Status),
		MaxUsers:  rec.MaxUsers,
		UserCount: rec.UserCount,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return service.ErrNotFound
	}
	return err
}

func mapConflict(err error) error {
	if errors.Is(err, persistence.ErrConflict) {
		return service.ErrConflict
	}
	return err
}

// PostgresStats reads the tenant-scoped collections behind the stats aggregate.
type PostgresStats struct {
	profiles *persistence.ProfileStore
	features *persistence.FeatureStore
	domains  *persistence.DomainStore
	branding *persistence.BrandingStore
}

// NewPostgresStats wires the stats reader over the sibling stores.
func NewPostgresStats(profiles *persistence.ProfileStore, features *persistence.FeatureStore, domains *persistence.DomainStore, branding *persistence.BrandingStore) *PostgresStats {
	if profiles == nil || features == nil || domains == nil || branding == nil {
		panic("profile, feature, domain and branding stores are required")
	}
	return &PostgresStats{profiles: profiles, features: features, domains: domains, branding: branding}
}

func (s *PostgresStats) CountProfiles(ctx context.Context, tenantID string) (int, error) {
	return s.profiles.CountByTenant(ctx, tenantID)
}

func (s *PostgresStats) CountFeatures(ctx context.Context, tenantID string) (int, int, error) {
	return s.features.CountByTenant(ctx, tenantID)
}

func (s *PostgresStats) BrandingExists(ctx context.Context, tenantID string) (bool, error) {
	return s.branding.Exists(ctx, tenantID)
}

func (s *PostgresStats) CountDomains(ctx context.Context, tenantID string) (int, int, error) {
	return s.domains.CountByTenant(ctx, tenantID)
}

// Ensure interface compliance.
var (
	_ service.Repository  = (*PostgresRepository)(nil)
	_ service.StatsReader = (*PostgresStats)(nil)
)
