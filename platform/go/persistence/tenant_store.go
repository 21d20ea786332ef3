package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tenant mirrors a row of the tenants table.
type Tenant struct {
	ID        string
	Name      string
	Domain    string
	Status    string
	MaxUsers  int
	UserCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateTenantParams captures the fields of a new tenant. user_count always starts at zero.
type CreateTenantParams struct {
	ID       string
	Name     string
	Domain   string
	Status   string
	MaxUsers int
}

// UpdateTenantParams holds the optional fields of a partial update.
type UpdateTenantParams struct {
	Name     *string
	Domain   *string
	Status   *string
	MaxUsers *int
}

// ListTenantsParams captures filters and pagination for List.
type ListTenantsParams struct {
	Status   *string
	Page     int
	PageSize int
}

// ListTenantsResult includes the rows and the total count for pagination metadata.
type ListTenantsResult struct {
	Tenants    []Tenant
	TotalItems int
}

const tenantColumns = `id, name, domain, status, max_users, user_count, created_at, updated_at`

// dependentTables are the tenant-scoped collections removed by a cascading delete.
var dependentTables = []string{"tenant_features", "domains", "whitelabel_configs"}

// TenantStore exposes persistence helpers for the tenants table.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore returns a store bound to pool. Tables must already exist (see ApplySchema).
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

// Create inserts a tenant. A duplicate id yields ErrConflict and writes nothing.
func (s *TenantStore) Create(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	row := s.pool.QueryRow(ctx, `
        INSERT INTO tenants (id, name, domain, status, max_users, user_count)
        VALUES ($1, $2, $3, $4, $5, 0)
        RETURNING `+tenantColumns,
		params.ID,
		strings.TrimSpace(params.Name),
		strings.TrimSpace(params.Domain),
		params.Status,
		params.MaxUsers,
	)

	tenant, err := scanTenant(row)
	if err != nil {
		return Tenant{}, mapRowErr(err)
	}
	return tenant, nil
}

// Get loads a tenant by id.
func (s *TenantStore) Get(ctx context.Context, id string) (Tenant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	tenant, err := scanTenant(row)
	if err != nil {
		return Tenant{}, mapRowErr(err)
	}
	return tenant, nil
}

// List returns tenants ordered by creation time, newest first.
func (s *TenantStore) List(ctx context.Context, params ListTenantsParams) (ListTenantsResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereSQL := "1=1"
	var args []any
	if params.Status != nil && *params.Status != "" {
		args = append(args, *params.Status)
		whereSQL = fmt.Sprintf("status = $%d", len(args))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenants WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return ListTenantsResult{}, fmt.Errorf("count tenants: %w", err)
	}

	result := ListTenantsResult{Tenants: []Tenant{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	dataArgs := append(append([]any{}, args...), params.PageSize, (params.Page-1)*params.PageSize)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM tenants
        WHERE %s
        ORDER BY created_at DESC, id
        LIMIT $%d OFFSET $%d
    `, tenantColumns, whereSQL, len(dataArgs)-1, len(dataArgs)), dataArgs...)
	if err != nil {
		return ListTenantsResult{}, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return ListTenantsResult{}, err
		}
		result.Tenants = append(result.Tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return ListTenantsResult{}, fmt.Errorf("iterate tenants: %w", err)
	}

	return result, nil
}

// Update applies a partial update. The id is never modified.
func (s *TenantStore) Update(ctx context.Context, id string, params UpdateTenantParams) (Tenant, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.Name != nil {
		add("name", strings.TrimSpace(*params.Name))
	}
	if params.Domain != nil {
		add("domain", strings.TrimSpace(*params.Domain))
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.MaxUsers != nil {
		add("max_users", *params.MaxUsers)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE tenants SET %s WHERE id = $1
        RETURNING %s
    `, strings.Join(sets, ", "), tenantColumns), args...)

	tenant, err := scanTenant(row)
	if err != nil {
		return Tenant{}, mapRowErr(err)
	}
	return tenant, nil
}

// Delete removes the tenant row. With cascade, the tenant's profiles, features,
// domains and branding are removed in the same transaction and the auth ids of
// the removed profiles are returned so the caller can clean up identities.
// Without cascade, dependents are left untouched.
func (s *TenantStore) Delete(ctx context.Context, id string, cascade bool) ([]string, error) {
	var removedAuthIDs []string

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if !cascade {
			return nil
		}

		rows, err := tx.Query(ctx, `DELETE FROM profiles WHERE tenant_id = $1 RETURNING auth_id`, id)
		if err != nil {
			return fmt.Errorf("delete tenant profiles: %w", err)
		}
		removedAuthIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("collect removed profiles: %w", err)
		}

		for _, table := range dependentTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1`, pgx.Identifier{table}.Sanitize()), id); err != nil {
				return fmt.Errorf("delete tenant %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removedAuthIDs, nil
}

// ReconcileUserCounts recomputes user_count from profiles for every tenant and
// returns how many rows were corrected.
func (s *TenantStore) ReconcileUserCounts(ctx context.Context) (int, error) {
	var corrected int
	if err := s.pool.QueryRow(ctx, `SELECT reconcile_tenant_user_counts()`).Scan(&corrected); err != nil {
		return 0, fmt.Errorf("reconcile user counts: %w", err)
	}
	return corrected, nil
}

func scanTenant(scanner rowScanner) (Tenant, error) {
	var t Tenant
	if err := scanner.Scan(
		&t.ID,
		&t.Name,
		&t.Domain,
		&t.Status,
		&t.MaxUsers,
		&t.UserCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return Tenant{}, err
	}
	return t, nil
}
