package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Feature mirrors a row of the tenant_features table.
type Feature struct {
	ID          uuid.UUID
	TenantID    string
	Name        string
	Category    string
	Enabled     bool
	Description string
	CreatedAt   time.Time
}

// CreateFeatureParams captures a new feature flag.
type CreateFeatureParams struct {
	TenantID    string
	Name        string
	Category    string
	Enabled     bool
	Description string
}

// UpdateFeatureParams holds the mutable fields of a feature flag.
type UpdateFeatureParams struct {
	Category    *string
	Enabled     *bool
	Description *string
}

const featureColumns = `id, tenant_id, name, category, enabled, description, created_at`

// FeatureStore exposes persistence helpers for the tenant_features table.
type FeatureStore struct {
	pool *pgxpool.Pool
}

// NewFeatureStore returns a store bound to pool.
func NewFeatureStore(pool *pgxpool.Pool) (*FeatureStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &FeatureStore{pool: pool}, nil
}

// Create inserts a feature. Names are unique per tenant (ErrConflict).
func (s *FeatureStore) Create(ctx context.Context, params CreateFeatureParams) (Feature, error) {
	feature, err := scanFeature(s.pool.QueryRow(ctx, `
        INSERT INTO tenant_features (id, tenant_id, name, category, enabled, description)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+featureColumns,
		uuid.New(),
		params.TenantID,
		strings.TrimSpace(params.Name),
		strings.TrimSpace(params.Category),
		params.Enabled,
		params.Description,
	))
	if err != nil {
		return Feature{}, mapRowErr(err)
	}
	return feature, nil
}

// ListByTenant returns the tenant's features ordered by category and name.
func (s *FeatureStore) ListByTenant(ctx context.Context, tenantID string) ([]Feature, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+featureColumns+` FROM tenant_features WHERE tenant_id = $1 ORDER BY category, name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()

	features := []Feature{}
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return features, nil
}

// Update changes a feature scoped to its tenant.
func (s *FeatureStore) Update(ctx context.Context, tenantID string, id uuid.UUID, params UpdateFeatureParams) (Feature, error) {
	feature, err := scanFeature(s.pool.QueryRow(ctx, `
        UPDATE tenant_features SET
            category    = COALESCE($3, category),
            enabled     = COALESCE($4, enabled),
            description = COALESCE($5, description)
        WHERE tenant_id = $1 AND id = $2
        RETURNING `+featureColumns,
		tenantID, id, params.Category, params.Enabled, params.Description,
	))
	if err != nil {
		return Feature{}, mapRowErr(err)
	}
	return feature, nil
}

// Delete removes a feature scoped to its tenant.
func (s *FeatureStore) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tenant_features WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete feature: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByTenant returns the total and enabled feature counts.
func (s *FeatureStore) CountByTenant(ctx context.Context, tenantID string) (total, enabled int, err error) {
	err = s.pool.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE enabled)
        FROM tenant_features WHERE tenant_id = $1
    `, tenantID).Scan(&total, &enabled)
	if err != nil {
		return 0, 0, fmt.Errorf("count features: %w", err)
	}
	return total, enabled, nil
}

func scanFeature(scanner rowScanner) (Feature, error) {
	var f Feature
	if err := scanner.Scan(&f.ID, &f.TenantID, &f.Name, &f.Category, &f.Enabled, &f.Description, &f.CreatedAt); err != nil {
		return Feature{}, err
	}
	return f, nil
}
