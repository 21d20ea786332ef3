package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-tenancy/domains/features/be/service"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

type memFeatures struct {
	items map[uuid.UUID]persistence.Feature
}

func (m *memFeatures) Create(_ context.Context, p persistence.CreateFeatureParams) (persistence.Feature, error) {
	for _, f := range m.items {
		if f.TenantID == p.TenantID && f.Name == p.Name {
			return persistence.Feature{}, persistence.ErrConflict
		}
	}
	f := persistence.Feature{ID: uuid.New(), TenantID: p.TenantID, Name: p.Name, Category: p.Category, Enabled: p.Enabled}
	m.items[f.ID] = f
	return f, nil
}

func (m *memFeatures) ListByTenant(_ context.Context, tenantID string) ([]persistence.Feature, error) {
	out := []persistence.Feature{}
	for _, f := range m.items {
		if f.TenantID == tenantID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memFeatures) Update(_ context.Context, tenantID string, id uuid.UUID, p persistence.UpdateFeatureParams) (persistence.Feature, error) {
	f, ok := m.items[id]
	if !ok || f.TenantID != tenantID {
		return persistence.Feature{}, persistence.ErrNotFound
	}
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	m.items[id] = f
	return f, nil
}

func (m *memFeatures) Delete(_ context.Context, tenantID string, id uuid.UUID) error {
	f, ok := m.items[id]
	if !ok || f.TenantID != tenantID {
		return persistence.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type anyTenant struct{}

func (anyTenant) Get(_ context.Context, id string) (persistence.Tenant, error) {
	return persistence.Tenant{ID: id}, nil
}

func TestFeaturesRoutes(t *testing.T) {
	t.Parallel()

	store := &memFeatures{items: map[uuid.UUID]persistence.Feature{}}
	h := New(service.New(store, anyTenant{}, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	r := chi.NewRouter()
	h.Register(r)

	admin := &platformauth.UserCredentials{ID: "a", Role: platformauth.RoleAdmin, TenantID: "acme"}
	call := func(creds *platformauth.UserCredentials, method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if creds != nil {
			req = req.WithContext(platformauth.WithCredentials(req.Context(), creds))
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := call(admin, http.MethodPost, "/tenants/acme/features", `{"name":"sso","category":"security","enabled":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, http.StatusConflict, call(admin, http.MethodPost, "/tenants/acme/features", `{"name":"sso","category":"security"}`).Code)
	require.Equal(t, http.StatusUnauthorized, call(nil, http.MethodGet, "/tenants/acme/features", "").Code)

	var id uuid.UUID
	for k := range store.items {
		id = k
	}
	rec = call(admin, http.MethodPatch, "/tenants/acme/features/"+id.String(), `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"enabled":false`)

	require.Equal(t, http.StatusBadRequest, call(admin, http.MethodDelete, "/tenants/acme/features/nope", "").Code)
	require.Equal(t, http.StatusNoContent, call(admin, http.MethodDelete, "/tenants/acme/features/"+id.String(), "").Code)
	require.Equal(t, http.StatusNotFound, call(admin, http.MethodDelete, "/tenants/acme/features/"+id.String(), "").Code)
}
