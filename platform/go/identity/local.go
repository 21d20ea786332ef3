package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// IdentityStore is the subset of persistence.IdentityStore the local provider needs.
type IdentityStore interface {
	Create(ctx context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error)
	GetByEmail(ctx context.Context, email string) (persistence.IdentityRecord, error)
	Delete(ctx context.Context, uid string) error
}

// LocalProvider keeps identities in PostgreSQL with bcrypt password hashes.
type LocalProvider struct {
	store IdentityStore
	cost  int
}

// NewLocalProvider builds a provider over store. cost <= 0 uses bcrypt.DefaultCost.
func NewLocalProvider(store IdentityStore, cost int) *LocalProvider {
	if store == nil {
		panic("identity store is required")
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{store: store, cost: cost}
}

// Create hashes the password and stores the identity.
func (p *LocalProvider) Create(ctx context.Context, in NewIdentity) (Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	claims := in.Claims.Map()
	if in.DisplayName != "" {
		claims["name"] = in.DisplayName
	}

	rec, err := p.store.Create(ctx, persistence.IdentityRecord{
		UID:           uuid.NewString(),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:  string(hash),
		EmailVerified: in.EmailVerified,
		Claims:        claims,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return Identity{}, ErrEmailExists
		}
		return Identity{}, fmt.Errorf("store identity: %w", err)
	}

	return toIdentity(rec), nil
}

// Delete removes the identity.
func (p *LocalProvider) Delete(ctx context.Context, uid string) error {
	if err := p.store.Delete(ctx, uid); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Authenticate verifies the password. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	rec, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("load identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	return toIdentity(rec), nil
}

func toIdentity(rec persistence.IdentityRecord) Identity {
	claims := ClaimsFromMap(rec.Claims)
	return Identity{
		UID:           rec.UID,
		Email:         rec.Email,
		DisplayName:   claims.Name,
		EmailVerified: rec.EmailVerified,
		Claims:        claims,
	}
}
