package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

type memIdentities struct {
	mu   sync.Mutex
	recs map[string]persistence.IdentityRecord
}

func (m *memIdentities) Create(_ context.Context, rec persistence.IdentityRecord) (persistence.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.Email]; ok {
		return persistence.IdentityRecord{}, persistence.ErrConflict
	}
	m.recs[rec.Email] = rec
	return rec, nil
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (persistence.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[strings.ToLower(email)]
	if !ok {
		return persistence.IdentityRecord{}, persistence.ErrNotFound
	}
	return rec, nil
}

func (m *memIdentities) Delete(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, rec := range m.recs {
		if rec.UID == uid {
			delete(m.recs, email)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := identity.NewLocalProvider(&memIdentities{recs: map[string]persistence.IdentityRecord{}}, bcrypt.MinCost)
	_, err := provider.Create(ctx, identity.NewIdentity{
		Email:    "root@palmyra.test",
		Password: "secret-pass",
		Claims:   identity.Claims{Name: "Root", Role: "ADMIN", TenantID: "platform"},
	})
	require.NoError(t, err)
	_, err = provider.Create(ctx, identity.NewIdentity{
		Email:    "ann@acme.test",
		Password: "secret-pass",
		Claims:   identity.Claims{Name: "Ann", Role: "ADMIN", TenantID: "acme"},
	})
	require.NoError(t, err)

	sessions, err := platformauth.NewSessions(strings.Repeat("k", 32), time.Hour)
	require.NoError(t, err)

	routes := &sessionRoutes{
		authenticator:  provider,
		sessions:       sessions,
		cookieName:     "palmyra_session",
		platformTenant: "platform",
		logger:         zaptest.NewLogger(t),
	}
	r := chi.NewRouter()
	routes.Register(r)

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body)))
		return rec
	}

	rec := login(`{"email":"root@palmyra.test","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(`{"email":"root@palmyra.test"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = login(`{"email":"root@palmyra.test","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Data.User.PlatformAdmin)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "palmyra_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	// The cookie authenticates follow-up requests through the JWT middleware.
	var seen *platformauth.UserCredentials
	protected := platformauth.JWT(sessions.Verifier(), platformauth.PlatformTenantExtractor("platform"), platformauth.WithSessionCookie("palmyra_session"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = platformauth.UserFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
	req := httptest.NewRequest(http.MethodGet, "/api/admin/tenants", nil)
	req.AddCookie(cookies[0])
	protected.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	require.True(t, seen.PlatformAdmin)
	require.Equal(t, platformauth.RoleAdmin, seen.Role)

	rec = login(`{"email":"ann@acme.test","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.User.PlatformAdmin)
	require.Equal(t, "acme", envelope.Data.User.TenantID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestFirstVerified(t *testing.T) {
	t.Parallel()

	sessions, err := platformauth.NewSessions(strings.Repeat("k", 32), time.Hour)
	require.NoError(t, err)
	verify := firstVerified(sessions.Verifier(), platformauth.UnsignedTokenVerifier())

	token, _, err := sessions.Issue(platformauth.UserCredentials{ID: "u1", Role: platformauth.RoleUser, TenantID: "acme"})
	require.NoError(t, err)
	claims, err := verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims["uid"])

	_, err = verify(context.Background(), "garbage")
	require.Error(t, err)
}
