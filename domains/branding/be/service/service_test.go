package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/storage"
)

// memRepo keeps one branding row per tenant, like the whitelabel_configs table.
type memRepo struct {
	rows map[string]persistence.Branding
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]persistence.Branding{}} }

func (m *memRepo) Get(_ context.Context, tenantID string) (persistence.Branding, error) {
	b, ok := m.rows[tenantID]
	if !ok {
		return persistence.Branding{}, persistence.ErrNotFound
	}
	return b, nil
}

func (m *memRepo) Upsert(_ context.Context, b persistence.Branding) (persistence.Branding, error) {
	if existing, ok := m.rows[b.TenantID]; ok {
		b.ID = existing.ID
	} else {
		b.ID = uuid.New()
	}
	m.rows[b.TenantID] = b
	return b, nil
}

func (m *memRepo) SetAssetURL(_ context.Context, tenantID string, kind persistence.AssetKind, url string) (persistence.Branding, error) {
	b, ok := m.rows[tenantID]
	if !ok {
		b = persistence.Branding{ID: uuid.New(), TenantID: tenantID, PrimaryColor: "#000000", SecondaryColor: "#ffffff"}
	}
	if kind == persistence.AssetLogo {
		b.LogoURL = url
	} else {
		b.FaviconURL = url
	}
	m.rows[tenantID] = b
	return b, nil
}

type tenantsFn func(ctx context.Context, id string) (persistence.Tenant, error)

func (f tenantsFn) Get(ctx context.Context, id string) (persistence.Tenant, error) { return f(ctx, id) }

func knownTenants(ids ...string) TenantReader {
	return tenantsFn(func(_ context.Context, id string) (persistence.Tenant, error) {
		for _, known := range ids {
			if known == id {
				return persistence.Tenant{ID: id}, nil
			}
		}
		return persistence.Tenant{}, persistence.ErrNotFound
	})
}

var (
	acmeAdmin = &platformauth.UserCredentials{ID: "a", Role: platformauth.RoleAdmin, TenantID: "acme"}
	acmeUser  = &platformauth.UserCredentials{ID: "u", Role: platformauth.RoleUser, TenantID: "acme"}
)

func newTestService(t *testing.T) (*Service, *memRepo, string) {
	t.Helper()
	root := t.TempDir()
	bucket, err := storage.NewLocalBucket(root, "http://localhost:8080/assets")
	require.NoError(t, err)
	repo := newMemRepo()
	return New(repo, knownTenants("acme"), bucket, Config{Logger: zaptest.NewLogger(t)}), repo, root
}

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, field)
}

func TestUpsertDefaultsColors(t *testing.T) {
	svc, _, _ := newTestService(t)

	b, err := svc.Upsert(context.Background(), acmeAdmin, "acme", UpsertInput{CompanyName: " Acme ", AppName: "Portal"})
	require.NoError(t, err)
	require.Equal(t, "Acme", b.CompanyName)
	require.Equal(t, "#000000", b.PrimaryColor)
	require.Equal(t, "#ffffff", b.SecondaryColor)

	again, err := svc.Upsert(context.Background(), acmeAdmin, "acme", UpsertInput{PrimaryColor: "#112233"})
	require.NoError(t, err)
	require.Equal(t, b.ID, again.ID, "a tenant keeps a single branding row")

	got, err := svc.Get(context.Background(), acmeUser, "acme")
	require.NoError(t, err)
	require.Equal(t, "#112233", got.PrimaryColor)
}

func TestUpsertRejections(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Upsert(context.Background(), acmeAdmin, "acme", UpsertInput{PrimaryColor: "red", SecondaryColor: "#12345"})
	requireFieldError(t, err, "primary_color")
	requireFieldError(t, err, "secondary_color")

	_, err = svc.Upsert(context.Background(), acmeUser, "acme", UpsertInput{})
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = svc.Upsert(context.Background(), nil, "acme", UpsertInput{})
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	rootAdmin := &platformauth.UserCredentials{ID: "r", Role: platformauth.RoleAdmin, PlatformAdmin: true}
	_, err = svc.Upsert(context.Background(), rootAdmin, "ghost", UpsertInput{})
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestGetMissing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Get(context.Background(), acmeUser, "acme")
	require.ErrorIs(t, err, ErrNotFound)

	other := &platformauth.UserCredentials{ID: "o", Role: platformauth.RoleAdmin, TenantID: "globex"}
	_, err = svc.Get(context.Background(), other, "acme")
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestUploadAsset(t *testing.T) {
	svc, repo, root := newTestService(t)
	payload := "\x89PNG fake image"

	res, err := svc.UploadAsset(context.Background(), acmeAdmin, "acme", AssetUpload{
		Kind:        "logo",
		ContentType: "image/png",
		Size:        int64(len(payload)),
		Body:        strings.NewReader(payload),
		Apply:       true,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.Path, "acme/logos/"))
	require.True(t, strings.HasSuffix(res.Path, ".png"))
	require.Equal(t, "http://localhost:8080/assets/branding/"+res.Path, res.URL)
	require.NotNil(t, res.Branding)
	require.Equal(t, res.URL, repo.rows["acme"].LogoURL)

	stored, err := os.ReadFile(filepath.Join(root, "branding", filepath.FromSlash(res.Path)))
	require.NoError(t, err)
	require.Equal(t, payload, string(stored))

	fav, err := svc.UploadAsset(context.Background(), acmeAdmin, "acme", AssetUpload{
		Kind:        "favicon",
		ContentType: "image/svg+xml; charset=utf-8",
		Size:        4,
		Body:        strings.NewReader("<svg"),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(fav.Path, "acme/favicons/"))
	require.Nil(t, fav.Branding)
	require.Empty(t, repo.rows["acme"].FaviconURL)
}

func TestUploadAssetRejections(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name  string
		up    AssetUpload
		field string
	}{
		{name: "unknown kind", up: AssetUpload{Kind: "banner", ContentType: "image/png", Size: 1, Body: strings.NewReader("x")}, field: "kind"},
		{name: "wrong type", up: AssetUpload{Kind: "logo", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x")}, field: "file"},
		{name: "too large", up: AssetUpload{Kind: "logo", ContentType: "image/png", Size: MaxAssetBytes + 1, Body: strings.NewReader("x")}, field: "file"},
		{name: "empty", up: AssetUpload{Kind: "logo", ContentType: "image/png"}, field: "file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UploadAsset(context.Background(), acmeAdmin, "acme", tc.up)
			requireFieldError(t, err, tc.field)
		})
	}

	_, err := svc.UploadAsset(context.Background(), acmeUser, "acme", AssetUpload{Kind: "logo", ContentType: "image/png", Size: 1, Body: strings.NewReader("x")})
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}
