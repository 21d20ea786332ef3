package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

var (
	acmeAdmin = &platformauth.UserCredentials{ID: "admin-1", Role: platformauth.RoleAdmin, TenantID: "acme"}
	acmeUser  = &platformauth.UserCredentials{ID: "user-1", Role: platformauth.RoleUser, TenantID: "acme"}
	globexAdm = &platformauth.UserCredentials{ID: "admin-2", Role: platformauth.RoleAdmin, TenantID: "globex"}
	rootAdmin = &platformauth.UserCredentials{ID: "root", Role: platformauth.RoleAdmin, PlatformAdmin: true}
)

var fastAwait = AwaitPolicy{InitialDelay: time.Millisecond, Interval: time.Millisecond, Attempts: 3}

func acmeTenant(maxUsers int) persistence.Tenant {
	return persistence.Tenant{ID: "acme", Name: "Acme", Domain: "acme.com", Status: "active", MaxUsers: maxUsers}
}

func newTestService(t *testing.T, store *fakeStore, ids identity.Provider, pub events.Publisher, cfg Config) *Service {
	t.Helper()
	if cfg.AdminAwait.Attempts == 0 {
		cfg.AdminAwait = fastAwait
	}
	if cfg.RegistrationAwait.Attempts == 0 {
		cfg.RegistrationAwait = fastAwait
	}
	return New(Deps{
		Profiles:   profileRepo{store},
		Tenants:    store,
		Identities: ids,
		Events:     pub,
		Logger:     zaptest.NewLogger(t),
	}, cfg)
}

func validUser(email string) CreateUserInput {
	return CreateUserInput{Email: email, Password: "secret123", Name: "Ann", Role: "USER", TenantID: "acme"}
}

func TestProvisionValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateUserInput)
		field  string
	}{
		{name: "missing password", mutate: func(in *CreateUserInput) { in.Password = "" }, field: "password"},
		{name: "short password", mutate: func(in *CreateUserInput) { in.Password = "12345" }, field: "password"},
		{name: "email without at", mutate: func(in *CreateUserInput) { in.Email = "ann.acme.com" }, field: "email"},
		{name: "missing name", mutate: func(in *CreateUserInput) { in.Name = " " }, field: "name"},
		{name: "unknown role", mutate: func(in *CreateUserInput) { in.Role = "OWNER" }, field: "role"},
		{name: "missing tenant", mutate: func(in *CreateUserInput) { in.TenantID = "" }, field: "tenant_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := &mockIdentities{}
			svc := newTestService(t, newFakeStore(acmeTenant(5)), ids, nil, Config{})

			in := validUser("ann@acme.com")
			tc.mutate(&in)
			_, err := svc.Provision(context.Background(), acmeAdmin, in)

			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Fields, tc.field)
			require.Empty(t, ids.created)
		})
	}
}

func TestProvisionValidatesBeforeAuthorizing(t *testing.T) {
	ids := &mockIdentities{}
	svc := newTestService(t, newFakeStore(acmeTenant(5)), ids, nil, Config{})

	in := validUser("ann@acme.com")
	in.Password = ""
	_, err := svc.Provision(context.Background(), nil, in)

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")
	require.Empty(t, ids.created)
}

func TestProvisionAuthorization(t *testing.T) {
	cases := []struct {
		name  string
		actor *platformauth.UserCredentials
		want  error
	}{
		{name: "anonymous", actor: nil, want: apperr.ErrAuthentication},
		{name: "plain user", actor: acmeUser, want: apperr.ErrAuthorization},
		{name: "manager", actor: &platformauth.UserCredentials{ID: "m", Role: platformauth.RoleManager, TenantID: "acme"}, want: apperr.ErrAuthorization},
		{name: "admin of another tenant", actor: globexAdm, want: apperr.ErrAuthorization},
		{name: "user flagged as platform admin", actor: &platformauth.UserCredentials{ID: "u", Role: platformauth.RoleUser, PlatformAdmin: true}, want: apperr.ErrAuthorization},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ids := &mockIdentities{}
			svc := newTestService(t, newFakeStore(acmeTenant(5)), ids, nil, Config{})

			_, err := svc.Provision(context.Background(), tc.actor, validUser("ann@acme.com"))
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, ids.created)
		})
	}
}

func TestProvisionTenantChecks(t *testing.T) {
	t.Run("unknown tenant", func(t *testing.T) {
		ids := &mockIdentities{}
		svc := newTestService(t, newFakeStore(), ids, nil, Config{})

		_, err := svc.Provision(context.Background(), rootAdmin, validUser("ann@acme.com"))
		require.ErrorIs(t, err, apperr.ErrNotFound)
		require.Empty(t, ids.created)
	})

	t.Run("quota reached", func(t *testing.T) {
		full := acmeTenant(1)
		full.UserCount = 1
		ids := &mockIdentities{}
		svc := newTestService(t, newFakeStore(full), ids, nil, Config{})

		_, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
		require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
		require.Empty(t, ids.created)
	})
}

func TestProvisionProviderError(t *testing.T) {
	ids := &mockIdentities{createFn: func(context.Context, identity.NewIdentity) (identity.Identity, error) {
		return identity.Identity{}, identity.ErrEmailExists
	}}
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, ids, nil, Config{})

	_, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
	var perr *apperr.ProviderError
	require.ErrorAs(t, err, &perr)
	require.ErrorIs(t, err, identity.ErrEmailExists)
	require.Equal(t, identity.ErrEmailExists.Error(), apperr.PublicMessage(err))
	require.Equal(t, 0, store.userCount("acme"))
}

func TestProvisionSync(t *testing.T) {
	ids := &mockIdentities{}
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, ids, nil, Config{Mode: ModeSync})

	in := validUser("Ann@Acme.com")
	in.Role = "manager"
	res, err := svc.Provision(context.Background(), acmeAdmin, in)
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	require.Equal(t, "uid-ann", res.AuthID)
	require.Equal(t, "ann@acme.com", res.Profile.Email)
	require.Equal(t, "MANAGER", res.Profile.Role)
	require.Equal(t, 1, store.userCount("acme"))

	require.Len(t, ids.created, 1)
	require.True(t, ids.created[0].EmailVerified)
	require.Equal(t, identity.Claims{Name: "Ann", Role: "MANAGER", TenantID: "acme"}, ids.created[0].Claims)
}

func TestProvisionSyncCleansUpIdentity(t *testing.T) {
	ids := &mockIdentities{deleteFn: func(context.Context, string) error { return errBoom }}
	store := newFakeStore(acmeTenant(5))
	store.materializeErr = errBoom
	svc := newTestService(t, store, ids, nil, Config{Mode: ModeSync})

	_, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, []string{"uid-ann"}, ids.deleted)
	require.Equal(t, 0, store.userCount("acme"))
}

func TestProvisionTrigger(t *testing.T) {
	t.Run("worker materializes the profile", func(t *testing.T) {
		store := newFakeStore(acmeTenant(5))
		pub := &mockPublisher{}
		pub.publishFn = func(ctx context.Context, evt events.IdentityCreated) error {
			// the worker does not enforce the quota
			_, _, err := store.Materialize(ctx, persistence.MaterializeProfileParams{
				AuthID: evt.AuthID, TenantID: evt.TenantID, Name: evt.Name, Email: evt.Email, Role: evt.Role,
			})
			return err
		}
		svc := newTestService(t, store, &mockIdentities{}, pub, Config{Mode: ModeTrigger})

		res, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
		require.NoError(t, err)
		require.NotNil(t, res.Profile)
		require.Len(t, pub.published, 1)
		require.Equal(t, "uid-ann", pub.published[0].AuthID)
		require.Equal(t, 1, store.userCount("acme"))
	})

	t.Run("worker is late", func(t *testing.T) {
		store := newFakeStore(acmeTenant(5))
		pub := &mockPublisher{}
		svc := newTestService(t, store, &mockIdentities{}, pub, Config{Mode: ModeTrigger})

		res, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
		require.NoError(t, err)
		require.Nil(t, res.Profile)
		require.Equal(t, "uid-ann", res.AuthID)
	})

	t.Run("publish failure falls back to sync", func(t *testing.T) {
		store := newFakeStore(acmeTenant(5))
		pub := &mockPublisher{publishFn: func(context.Context, events.IdentityCreated) error { return errBoom }}
		svc := newTestService(t, store, &mockIdentities{}, pub, Config{Mode: ModeTrigger})

		res, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
		require.NoError(t, err)
		require.NotNil(t, res.Profile)
		require.Equal(t, 1, store.userCount("acme"))
	})
}

func TestRemove(t *testing.T) {
	ids := &mockIdentities{deleteFn: func(context.Context, string) error { return errBoom }}
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, ids, nil, Config{})

	res, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
	require.NoError(t, err)
	require.Equal(t, 1, store.userCount("acme"))

	err = svc.Remove(context.Background(), globexAdm, res.Profile.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	err = svc.Remove(context.Background(), &platformauth.UserCredentials{ID: "u", Role: platformauth.RoleUser, PlatformAdmin: true}, res.Profile.ID)
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	// identity deletion failure is logged, never returned
	require.NoError(t, svc.Remove(context.Background(), acmeAdmin, res.Profile.ID))
	require.Equal(t, 0, store.userCount("acme"))
	require.Equal(t, []string{"uid-ann"}, ids.deleted)

	require.ErrorIs(t, svc.Remove(context.Background(), acmeAdmin, res.Profile.ID), apperr.ErrNotFound)
	require.ErrorIs(t, svc.Remove(context.Background(), acmeAdmin, uuid.Nil), apperr.ErrNotFound)
	require.ErrorIs(t, svc.Remove(context.Background(), nil, uuid.New()), apperr.ErrAuthentication)
}

func TestList(t *testing.T) {
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, &mockIdentities{}, nil, Config{})
	_, err := svc.Provision(context.Background(), acmeAdmin, validUser("ann@acme.com"))
	require.NoError(t, err)

	profiles, err := svc.List(context.Background(), &platformauth.UserCredentials{ID: "m", Role: platformauth.RoleManager, TenantID: "acme"}, "acme")
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	_, err = svc.List(context.Background(), acmeUser, "acme")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = svc.List(context.Background(), globexAdm, "acme")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	profiles, err = svc.List(context.Background(), rootAdmin, "acme")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
}

func TestRegisterWithoutMaterializedProfile(t *testing.T) {
	store := newFakeStore(acmeTenant(5))
	local := identity.NewLocalProvider(newMemIdentityStore(), bcrypt.MinCost)
	svc := newTestService(t, store, local, &mockPublisher{}, Config{Mode: ModeTrigger})

	res, err := svc.Register(context.Background(), RegisterInput{Email: "bob@acme.com", Password: "secret123", Name: "Bob", TenantID: "acme"})
	require.NoError(t, err)
	require.Nil(t, res.Profile)
	require.NotEmpty(t, res.Identity.UID)

	authenticated, err := local.Authenticate(context.Background(), "bob@acme.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, res.Identity.UID, authenticated.UID)
	require.Equal(t, "USER", authenticated.Claims.Role)
	require.Equal(t, "acme", authenticated.Claims.TenantID)
}

func TestRegisterSync(t *testing.T) {
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, &mockIdentities{}, nil, Config{})

	res, err := svc.Register(context.Background(), RegisterInput{Email: "bob@acme.com", Password: "secret123", Name: "Bob", TenantID: "acme"})
	require.NoError(t, err)
	require.NotNil(t, res.Profile)
	require.Equal(t, "USER", res.Profile.Role)
	require.Equal(t, 1, store.userCount("acme"))
}

func TestRegisterRejections(t *testing.T) {
	inactive := acmeTenant(5)
	inactive.Status = "inactive"

	ids := &mockIdentities{}
	svc := newTestService(t, newFakeStore(inactive), ids, nil, Config{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "bob@acme.com", Password: "secret123", Name: "Bob", TenantID: "acme"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "tenant_id")

	_, err = svc.Register(context.Background(), RegisterInput{Email: "bob@acme.com", Password: "secret123", Name: "Bob", TenantID: "ghost"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "bob@acme.com", Name: "Bob", TenantID: "acme"})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "password")

	require.Empty(t, ids.created)
}

func TestQuotaEndToEnd(t *testing.T) {
	store := newFakeStore(acmeTenant(5))
	svc := newTestService(t, store, &mockIdentities{}, nil, Config{})

	admin := validUser("a@acme.com")
	admin.Role = "ADMIN"
	_, err := svc.Provision(context.Background(), rootAdmin, admin)
	require.NoError(t, err)
	require.Equal(t, 1, store.userCount("acme"))

	for i := 1; i <= 4; i++ {
		_, err := svc.Provision(context.Background(), acmeAdmin, validUser(fmt.Sprintf("user%d@acme.com", i)))
		require.NoError(t, err)
	}
	require.Equal(t, 5, store.userCount("acme"))

	_, err = svc.Provision(context.Background(), acmeAdmin, validUser("sixth@acme.com"))
	require.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	require.Equal(t, 5, store.userCount("acme"))
}

func TestAwaiterPolicies(t *testing.T) {
	lookups := 0
	a := profileAwaiter{lookup: func(context.Context, string) (persistence.Profile, error) {
		lookups++
		if lookups < 3 {
			return persistence.Profile{}, persistence.ErrNotFound
		}
		return persistence.Profile{AuthID: "uid"}, nil
	}}

	p, err := a.await(context.Background(), "uid", AwaitPolicy{Interval: time.Millisecond, Attempts: 5})
	require.NoError(t, err)
	require.Equal(t, "uid", p.AuthID)
	require.Equal(t, 3, lookups)

	lookups = 0
	_, err = a.await(context.Background(), "uid", AwaitPolicy{InitialDelay: time.Millisecond, Attempts: 1})
	require.ErrorIs(t, err, errProfileMissing)
	require.Equal(t, 1, lookups)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.await(ctx, "uid", AwaitPolicy{InitialDelay: time.Second, Attempts: 1})
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 10, DefaultRegistrationAwait.Attempts)
	require.Equal(t, 500*time.Millisecond, DefaultRegistrationAwait.Interval)
	require.Equal(t, 1, DefaultAdminAwait.Attempts)
	require.Equal(t, time.Second, DefaultAdminAwait.InitialDelay)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeSync, m)

	m, err = ParseMode("Trigger")
	require.NoError(t, err)
	require.Equal(t, ModeTrigger, m)

	_, err = ParseMode("async")
	require.Error(t, err)
}
