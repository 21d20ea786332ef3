package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// Repository defines the persistence operations required by the users service.
type Repository interface {
	// Materialize inserts the profile and increments the tenant counter in one transaction.
	Materialize(ctx context.Context, params persistence.MaterializeProfileParams) (persistence.Profile, bool, error)
	Get(ctx context.Context, id uuid.UUID) (persistence.Profile, error)
	GetByAuthID(ctx context.Context, authID string) (persistence.Profile, error)
	ListByTenant(ctx context.Context, tenantID string) ([]persistence.Profile, error)
	// Delete removes the profile and decrements the tenant counter in one transaction.
	Delete(ctx context.Context, id uuid.UUID) (persistence.Profile, error)
}

// TenantReader loads the tenant a user belongs to.
type TenantReader interface {
	Get(ctx context.Context, id string) (persistence.Tenant, error)
}

type postgresRepository struct {
	store *persistence.ProfileStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.ProfileStore) Repository {
	if store == nil {
		panic("profile store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Materialize(ctx context.Context, params persistence.MaterializeProfileParams) (persistence.Profile, bool, error) {
	return r.store.Materialize(ctx, params)
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	return r.store.Get(ctx, id)
}

func (r *postgresRepository) GetByAuthID(ctx context.Context, authID string) (persistence.Profile, error) {
	return r.store.GetByAuthID(ctx, authID)
}

func (r *postgresRepository) ListByTenant(ctx context.Context, tenantID string) ([]persistence.Profile, error) {
	return r.store.ListByTenant(ctx, tenantID)
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	return r.store.Delete(ctx, id)
}

var (
	_ Repository   = (*postgresRepository)(nil)
	_ TenantReader = (*persistence.TenantStore)(nil)
)
