package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStoresLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	profiles, err := NewProfileStore(pool)
	require.NoError(t, err)
	features, err := NewFeatureStore(pool)
	require.NoError(t, err)
	domains, err := NewDomainStore(pool)
	require.NoError(t, err)
	branding, err := NewBrandingStore(pool)
	require.NoError(t, err)

	t.Run("tenant create starts with zero users and rejects duplicates", func(t *testing.T) {
		created, err := tenants.Create(ctx, CreateTenantParams{ID: "acme", Name: "Acme", Domain: "acme.test", Status: "active", MaxUsers: 2})
		require.NoError(t, err)
		require.Equal(t, 0, created.UserCount)

		_, err = tenants.Create(ctx, CreateTenantParams{ID: "acme", Name: "Other", Domain: "other.test", Status: "trial", MaxUsers: 3})
		require.ErrorIs(t, err, ErrConflict)

		stored, err := tenants.Get(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, "Acme", stored.Name)

		_, err = tenants.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tenant partial update and list filter", func(t *testing.T) {
		status := "trial"
		updated, err := tenants.Update(ctx, "acme", UpdateTenantParams{Status: &status})
		require.NoError(t, err)
		require.Equal(t, "trial", updated.Status)
		require.Equal(t, "Acme", updated.Name)

		listed, err := tenants.List(ctx, ListTenantsParams{Status: &status})
		require.NoError(t, err)
		require.Equal(t, 1, listed.TotalItems)

		active := "active"
		listed, err = tenants.List(ctx, ListTenantsParams{Status: &active})
		require.NoError(t, err)
		require.Equal(t, 0, listed.TotalItems)
		require.Empty(t, listed.Tenants)
	})

	t.Run("profile materialization is idempotent and maintains the counter", func(t *testing.T) {
		params := MaterializeProfileParams{AuthID: "uid-1", TenantID: "acme", Name: "Ada", Email: "ADA@acme.test", Role: "ADMIN", EnforceQuota: true}

		first, created, err := profiles.Materialize(ctx, params)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "ada@acme.test", first.Email)

		again, created, err := profiles.Materialize(ctx, params)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, first.ID, again.ID)

		tenant, err := tenants.Get(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, tenant.UserCount)

		_, _, err = profiles.Materialize(ctx, MaterializeProfileParams{AuthID: "uid-2", TenantID: "acme", Name: "Bob", Email: "bob@acme.test", Role: "USER", EnforceQuota: true})
		require.NoError(t, err)

		_, _, err = profiles.Materialize(ctx, MaterializeProfileParams{AuthID: "uid-3", TenantID: "acme", Name: "Cy", Email: "cy@acme.test", Role: "USER", EnforceQuota: true})
		require.ErrorIs(t, err, ErrQuotaExceeded)

		n, err := profiles.CountByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})

	t.Run("profile delete decrements the counter", func(t *testing.T) {
		bob, err := profiles.GetByAuthID(ctx, "uid-2")
		require.NoError(t, err)

		removed, err := profiles.Delete(ctx, bob.ID)
		require.NoError(t, err)
		require.Equal(t, "uid-2", removed.AuthID)

		tenant, err := tenants.Get(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, tenant.UserCount)

		_, err = profiles.Delete(ctx, uuid.New())
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("feature, domain and branding counts", func(t *testing.T) {
		for i, enabled := range []bool{true, false, true} {
			_, err := features.Create(ctx, CreateFeatureParams{TenantID: "acme", Name: fmt.Sprintf("f-%d", i), Category: "core", Enabled: enabled})
			require.NoError(t, err)
		}
		_, err := features.Create(ctx, CreateFeatureParams{TenantID: "acme", Name: "f-0", Category: "core"})
		require.ErrorIs(t, err, ErrConflict)

		total, enabled, err := features.CountByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 3, total)
		require.Equal(t, 2, enabled)

		d, err := domains.Create(ctx, "acme", "App.Acme.test")
		require.NoError(t, err)
		require.Equal(t, "app.acme.test", d.Hostname)
		_, err = domains.Create(ctx, "acme", "app.acme.test")
		require.ErrorIs(t, err, ErrConflict)
		_, err = domains.SetVerified(ctx, "acme", d.ID, true)
		require.NoError(t, err)

		total, verified, err := domains.CountByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Equal(t, 1, verified)

		exists, err := branding.Exists(ctx, "acme")
		require.NoError(t, err)
		require.False(t, exists)

		withLogo, err := branding.SetAssetURL(ctx, "acme", AssetLogo, "https://cdn.test/acme/logo.png")
		require.NoError(t, err)
		require.Equal(t, "#000000", withLogo.PrimaryColor)

		withLogo.CompanyName = "Acme Inc"
		upserted, err := branding.Upsert(ctx, withLogo)
		require.NoError(t, err)
		require.Equal(t, withLogo.ID, upserted.ID)
		require.Equal(t, "https://cdn.test/acme/logo.png", upserted.LogoURL)
	})

	t.Run("reconcile repairs drifted counters", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE tenants SET user_count = 7 WHERE id = 'acme'`)
		require.NoError(t, err)

		corrected, err := tenants.ReconcileUserCounts(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, corrected)

		tenant, err := tenants.Get(ctx, "acme")
		require.NoError(t, err)
		require.Equal(t, 1, tenant.UserCount)
	})

	t.Run("orphan delete keeps dependents", func(t *testing.T) {
		_, err := tenants.Create(ctx, CreateTenantParams{ID: "globex", Name: "Globex", Domain: "globex.test", Status: "active", MaxUsers: 5})
		require.NoError(t, err)
		_, _, err = profiles.Materialize(ctx, MaterializeProfileParams{AuthID: "uid-g", TenantID: "globex", Name: "Gus", Email: "gus@globex.test", Role: "USER"})
		require.NoError(t, err)

		removed, err := tenants.Delete(ctx, "globex", false)
		require.NoError(t, err)
		require.Empty(t, removed)

		n, err := profiles.CountByTenant(ctx, "globex")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = tenants.Delete(ctx, "globex", false)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cascade delete removes dependents", func(t *testing.T) {
		removed, err := tenants.Delete(ctx, "acme", true)
		require.NoError(t, err)
		require.Equal(t, []string{"uid-1"}, removed)

		n, err := profiles.CountByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Zero(t, n)

		total, _, err := features.CountByTenant(ctx, "acme")
		require.NoError(t, err)
		require.Zero(t, total)

		exists, err := branding.Exists(ctx, "acme")
		require.NoError(t, err)
		require.False(t, exists)
	})
}

func TestIdentityStore(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	store, err := NewIdentityStore(pool)
	require.NoError(t, err)

	rec, err := store.Create(ctx, IdentityRecord{
		UID:           "uid-1",
		Email:         "Ada@Acme.test",
		PasswordHash:  "hash",
		EmailVerified: true,
		Claims:        map[string]any{"role": "ADMIN", "tenant_id": "acme"},
	})
	require.NoError(t, err)
	require.Equal(t, "ada@acme.test", rec.Email)

	_, err = store.Create(ctx, IdentityRecord{UID: "uid-2", Email: "ada@acme.test", PasswordHash: "x"})
	require.ErrorIs(t, err, ErrConflict)

	loaded, err := store.GetByEmail(ctx, "ADA@acme.test")
	require.NoError(t, err)
	require.Equal(t, "acme", loaded.Claims["tenant_id"])

	require.NoError(t, store.Delete(ctx, "uid-1"))
	require.ErrorIs(t, store.Delete(ctx, "uid-1"), ErrNotFound)
}
