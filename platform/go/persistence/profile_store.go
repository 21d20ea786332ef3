package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Profile mirrors a row of the profiles table.
type Profile struct {
	ID         uuid.UUID
	AuthID     string
	TenantID   string
	Name       string
	Email      string
	Role       string
	Department *string
	AvatarURL  *string
	CreatedAt  time.Time
}

// MaterializeProfileParams describes the profile derived from a freshly created identity.
type MaterializeProfileParams struct {
	AuthID     string
	TenantID   string
	Name       string
	Email      string
	Role       string
	Department *string
	AvatarURL  *string
	// EnforceQuota locks the tenant row and fails with ErrQuotaExceeded when
	// user_count already reached max_users. A missing tenant yields ErrNotFound.
	EnforceQuota bool
}

const profileColumns = `id, auth_id, tenant_id, name, email, role, department, avatar_url, created_at`

// ProfileStore exposes persistence helpers for the profiles table. Every
// insert or delete adjusts tenants.user_count in the same transaction.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore returns a store bound to pool.
func NewProfileStore(pool *pgxpool.Pool) (*ProfileStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ProfileStore{pool: pool}, nil
}

// Materialize inserts the profile for params.AuthID and increments the tenant
// counter atomically. It is idempotent per auth id: when the profile already
// exists the stored row is returned with created=false and the counter is left alone.
func (s *ProfileStore) Materialize(ctx context.Context, params MaterializeProfileParams) (profile Profile, created bool, err error) {
	err = withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if params.EnforceQuota {
			if err := checkQuota(ctx, tx, params.TenantID); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `
            INSERT INTO profiles (id, auth_id, tenant_id, name, email, role, department, avatar_url)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (auth_id) DO NOTHING
            RETURNING `+profileColumns,
			uuid.New(),
			params.AuthID,
			params.TenantID,
			strings.TrimSpace(params.Name),
			strings.ToLower(strings.TrimSpace(params.Email)),
			params.Role,
			params.Department,
			params.AvatarURL,
		)

		inserted, scanErr := scanProfile(row)
		switch {
		case errors.Is(scanErr, pgx.ErrNoRows):
			existing, getErr := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE auth_id = $1`, params.AuthID))
			if getErr != nil {
				return fmt.Errorf("load existing profile: %w", mapRowErr(getErr))
			}
			profile = existing
			return nil
		case scanErr != nil:
			return fmt.Errorf("insert profile: %w", mapRowErr(scanErr))
		}

		if _, err := tx.Exec(ctx, `SELECT increment_tenant_user_count($1)`, params.TenantID); err != nil {
			return fmt.Errorf("increment user count: %w", err)
		}

		profile, created = inserted, true
		return nil
	})
	if err != nil {
		return Profile{}, false, err
	}
	return profile, created, nil
}

func checkQuota(ctx context.Context, tx pgx.Tx, tenantID string) error {
	var maxUsers, userCount int
	err := tx.QueryRow(ctx, `SELECT max_users, user_count FROM tenants WHERE id = $1 FOR UPDATE`, tenantID).Scan(&maxUsers, &userCount)
	if err != nil {
		return mapRowErr(err)
	}
	if userCount >= maxUsers {
		return ErrQuotaExceeded
	}
	return nil
}

// Get loads a profile by id.
func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	profile, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return Profile{}, mapRowErr(err)
	}
	return profile, nil
}

// GetByAuthID loads the profile linked to an identity.
func (s *ProfileStore) GetByAuthID(ctx context.Context, authID string) (Profile, error) {
	profile, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE auth_id = $1`, authID))
	if err != nil {
		return Profile{}, mapRowErr(err)
	}
	return profile, nil
}

// ListByTenant returns the tenant's profiles ordered by creation.
func (s *ProfileStore) ListByTenant(ctx context.Context, tenantID string) ([]Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE tenant_id = $1 ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// CountByTenant counts the tenant's profiles.
func (s *ProfileStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// Delete removes a profile and decrements its tenant counter atomically. The
// removed row is returned so the caller can clean up the identity.
func (s *ProfileStore) Delete(ctx context.Context, id uuid.UUID) (Profile, error) {
	var removed Profile
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		profile, err := scanProfile(tx.QueryRow(ctx, `DELETE FROM profiles WHERE id = $1 RETURNING `+profileColumns, id))
		if err != nil {
			return mapRowErr(err)
		}
		if _, err := tx.Exec(ctx, `SELECT decrement_tenant_user_count($1)`, profile.TenantID); err != nil {
			return fmt.Errorf("decrement user count: %w", err)
		}
		removed = profile
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return removed, nil
}

func scanProfile(scanner rowScanner) (Profile, error) {
	var p Profile
	if err := scanner.Scan(
		&p.ID,
		&p.AuthID,
		&p.TenantID,
		&p.Name,
		&p.Email,
		&p.Role,
		&p.Department,
		&p.AvatarURL,
		&p.CreatedAt,
	); err != nil {
		return Profile{}, err
	}
	return p, nil
}
