package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// fakeStore keeps tenants and profiles in memory and maintains user_count
// the way the profile store does.
type fakeStore struct {
	mu       sync.Mutex
	tenants  map[string]persistence.Tenant
	profiles map[uuid.UUID]persistence.Profile

	materializeErr error
}

func newFakeStore(tenants ...persistence.Tenant) *fakeStore {
	s := &fakeStore{tenants: map[string]persistence.Tenant{}, profiles: map[uuid.UUID]persistence.Profile{}}
	for _, t := range tenants {
		s.tenants[t.ID] = t
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, id string) (persistence.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return persistence.Tenant{}, persistence.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) Materialize(ctx context.Context, p persistence.MaterializeProfileParams) (persistence.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.materializeErr != nil {
		return persistence.Profile{}, false, s.materializeErr
	}
	for _, existing := range s.profiles {
		if existing.AuthID == p.AuthID {
			return existing, false, nil
		}
	}
	t, ok := s.tenants[p.TenantID]
	if p.EnforceQuota {
		if !ok {
			return persistence.Profile{}, false, persistence.ErrNotFound
		}
		if t.UserCount >= t.MaxUsers {
			return persistence.Profile{}, false, persistence.ErrQuotaExceeded
		}
	}
	rec := persistence.Profile{
		ID:         uuid.New(),
		AuthID:     p.AuthID,
		TenantID:   p.TenantID,
		Name:       p.Name,
		Email:      p.Email,
		Role:       p.Role,
		Department: p.Department,
		AvatarURL:  p.AvatarURL,
		CreatedAt:  time.Now().UTC(),
	}
	s.profiles[rec.ID] = rec
	if ok {
		t.UserCount++
		s.tenants[t.ID] = t
	}
	return rec, true, nil
}

func (s *fakeStore) profileByID(id uuid.UUID) (persistence.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

func (s *fakeStore) GetByAuthID(ctx context.Context, authID string) (persistence.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.AuthID == authID {
			return p, nil
		}
	}
	return persistence.Profile{}, persistence.ErrNotFound
}

func (s *fakeStore) ListByTenant(ctx context.Context, tenantID string) ([]persistence.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []persistence.Profile
	for _, p := range s.profiles {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return persistence.Profile{}, persistence.ErrNotFound
	}
	delete(s.profiles, id)
	if t, ok := s.tenants[p.TenantID]; ok && t.UserCount > 0 {
		t.UserCount--
		s.tenants[t.ID] = t
	}
	return p, nil
}

func (s *fakeStore) userCount(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[tenantID].UserCount
}

// profileRepo exposes the fake as a repo.Repository; the embedded Get serves tenants.
type profileRepo struct{ *fakeStore }

func (r profileRepo) Get(ctx context.Context, id uuid.UUID) (persistence.Profile, error) {
	p, ok := r.profileByID(id)
	if !ok {
		return persistence.Profile{}, persistence.ErrNotFound
	}
	return p, nil
}

type mockIdentities struct {
	mu       sync.Mutex
	createFn func(ctx context.Context, in identity.NewIdentity) (identity.Identity, error)
	deleteFn func(ctx context.Context, uid string) error
	created  []identity.NewIdentity
	deleted  []string
}

func (m *mockIdentities) Create(ctx context.Context, in identity.NewIdentity) (identity.Identity, error) {
	m.mu.Lock()
	m.created = append(m.created, in)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return identity.Identity{UID: "uid-" + strings.Split(in.Email, "@")[0], Email: in.Email, Claims: in.Claims}, nil
}

func (m *mockIdentities) Delete(ctx context.Context, uid string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, uid)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, uid)
	}
	return nil
}

type mockPublisher struct {
	publishFn func(ctx context.Context, evt events.IdentityCreated) error
	published []events.IdentityCreated
}

func (m *mockPublisher) PublishIdentityCreated(ctx context.Context, evt events.IdentityCreated) error {
	m.published = append(m.published, evt)
	if m.publishFn != nil {
		return m.publishFn(ctx, evt)
	}
	return nil
}

// memIdentityStore backs identity.LocalProvider in tests.
type memIdentityStore struct {
	mu      sync.Mutex
	byEmail map[string]persistence.IdentityRecord
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{byEmail: map[string]persistence.IdentityRecord{}}
}

func (m *memIdentityStore) Create(ctx context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[rec.Email]; ok {
		return persistence.IdentityRecord{}, persistence.ErrConflict
	}
	rec.CreatedAt = time.Now().UTC()
	m.byEmail[rec.Email] = rec
	return rec, nil
}

func (m *memIdentityStore) GetByEmail(ctx context.Context, email string) (persistence.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return persistence.IdentityRecord{}, persistence.ErrNotFound
	}
	return rec, nil
}

func (m *memIdentityStore) Delete(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, rec := range m.byEmail {
		if rec.UID == uid {
			delete(m.byEmail, email)
			return nil
		}
	}
	return persistence.ErrNotFound
}

var errBoom = errors.New("boom")
