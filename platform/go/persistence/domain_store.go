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

// Domain mirrors a row of the domains table.
type Domain struct {
	ID        uuid.UUID
	TenantID  string
	Hostname  string
	Verified  bool
	CreatedAt time.Time
}

const domainColumns = `id, tenant_id, hostname, verified, created_at`

// DomainStore exposes persistence helpers for the domains table.
type DomainStore struct {
	pool *pgxpool.Pool
}

// NewDomainStore returns a store bound to pool.
func NewDomainStore(pool *pgxpool.Pool) (*DomainStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &DomainStore{pool: pool}, nil
}

// Create registers a hostname for the tenant. Hostnames are globally unique (ErrConflict).
func (s *DomainStore) Create(ctx context.Context, tenantID, hostname string) (Domain, error) {
	domain, err := scanDomain(s.pool.QueryRow(ctx, `
        INSERT INTO domains (id, tenant_id, hostname, verified)
        VALUES ($1, $2, $3, false)
        RETURNING `+domainColumns,
		uuid.New(), tenantID, strings.ToLower(strings.TrimSpace(hostname)),
	))
	if err != nil {
		return Domain{}, mapRowErr(err)
	}
	return domain, nil
}

// ListByTenant returns the tenant's domains ordered by hostname.
func (s *DomainStore) ListByTenant(ctx context.Context, tenantID string) ([]Domain, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+domainColumns+` FROM domains WHERE tenant_id = $1 ORDER BY hostname`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	domains := []Domain{}
	for rows.Next() {
		domain, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}
	return domains, nil
}

// SetVerified flips the verification flag of a tenant domain.
func (s *DomainStore) SetVerified(ctx context.Context, tenantID string, id uuid.UUID, verified bool) (Domain, error) {
	domain, err := scanDomain(s.pool.QueryRow(ctx, `
        UPDATE domains SET verified = $3 WHERE tenant_id = $1 AND id = $2
        RETURNING `+domainColumns,
		tenantID, id, verified,
	))
	if err != nil {
		return Domain{}, mapRowErr(err)
	}
	return domain, nil
}

// Delete removes a tenant domain.
func (s *DomainStore) Delete(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM domains WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByTenant returns the total and verified domain counts.
func (s *DomainStore) CountByTenant(ctx context.Context, tenantID string) (total, verified int, err error) {
	err = s.pool.QueryRow(ctx, `
        SELECT COUNT(*), COUNT(*) FILTER (WHERE verified)
        FROM domains WHERE tenant_id = $1
    `, tenantID).Scan(&total, &verified)
	if err != nil {
		return 0, 0, fmt.Errorf("count domains: %w", err)
	}
	return total, verified, nil
}

func scanDomain(scanner rowScanner) (Domain, error) {
	var d Domain
	if err := scanner.Scan(&d.ID, &d.TenantID, &d.Hostname, &d.Verified, &d.CreatedAt); err != nil {
		return Domain{}, err
	}
	return d, nil
}
