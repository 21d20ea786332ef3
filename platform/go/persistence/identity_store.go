package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IdentityRecord is a locally managed auth identity.
type IdentityRecord struct {
	UID           string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Claims        map[string]any
	CreatedAt     time.Time
}

const identityColumns = `uid, email, password_hash, email_verified, claims, created_at`

// IdentityStore exposes persistence helpers for the auth_identities table.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore returns a store bound to pool.
func NewIdentityStore(pool *pgxpool.Pool) (*IdentityStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &IdentityStore{pool: pool}, nil
}

// Create inserts an identity. Emails are unique case-insensitively (ErrConflict).
func (s *IdentityStore) Create(ctx context.Context, rec IdentityRecord) (IdentityRecord, error) {
	claims, err := json.Marshal(rec.Claims)
	if err != nil {
		return IdentityRecord{}, fmt.Errorf("encode claims: %w", err)
	}

	created, err := scanIdentity(s.pool.QueryRow(ctx, `
        INSERT INTO auth_identities (uid, email, password_hash, email_verified, claims)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+identityColumns,
		rec.UID, strings.ToLower(strings.TrimSpace(rec.Email)), rec.PasswordHash, rec.EmailVerified, claims,
	))
	if err != nil {
		return IdentityRecord{}, mapRowErr(err)
	}
	return created, nil
}

// GetByEmail loads an identity by email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (IdentityRecord, error) {
	rec, err := scanIdentity(s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM auth_identities WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return IdentityRecord{}, mapRowErr(err)
	}
	return rec, nil
}

// Delete removes an identity by uid.
func (s *IdentityStore) Delete(ctx context.Context, uid string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_identities WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(scanner rowScanner) (IdentityRecord, error) {
	var (
		rec    IdentityRecord
		claims []byte
	)
	if err := scanner.Scan(&rec.UID, &rec.Email, &rec.PasswordHash, &rec.EmailVerified, &claims, &rec.CreatedAt); err != nil {
		return IdentityRecord{}, err
	}
	if len(claims) > 0 {
		if err := json.Unmarshal(claims, &rec.Claims); err != nil {
			return IdentityRecord{}, fmt.Errorf("decode claims: %w", err)
		}
	}
	return rec, nil
}
