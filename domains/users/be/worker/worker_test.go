package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

type materializeFn func(ctx context.Context, params persistence.MaterializeProfileParams) (persistence.Profile, bool, error)

func (f materializeFn) Materialize(ctx context.Context, params persistence.MaterializeProfileParams) (persistence.Profile, bool, error) {
	return f(ctx, params)
}

func TestHandleIsIdempotent(t *testing.T) {
	t.Parallel()

	seen := map[string]persistence.Profile{}
	store := materializeFn(func(_ context.Context, p persistence.MaterializeProfileParams) (persistence.Profile, bool, error) {
		require.False(t, p.EnforceQuota)
		if existing, ok := seen[p.AuthID]; ok {
			return existing, false, nil
		}
		profile := persistence.Profile{ID: uuid.New(), AuthID: p.AuthID, TenantID: p.TenantID, Role: p.Role, CreatedAt: time.Now()}
		seen[p.AuthID] = profile
		return profile, true, nil
	})

	m := metrics.New()
	w := New(store, m, zaptest.NewLogger(t))
	evt := events.IdentityCreated{AuthID: "uid-1", Email: "a@acme.test", Role: "USER", TenantID: "acme", OccurredAt: time.Now()}

	require.NoError(t, w.Handle(context.Background(), evt))
	require.NoError(t, w.Handle(context.Background(), evt))
	require.Len(t, seen, 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProfilesMaterialized.WithLabelValues("created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ProfilesMaterialized.WithLabelValues("duplicate")))
}

func TestHandlePropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := New(materializeFn(func(context.Context, persistence.MaterializeProfileParams) (persistence.Profile, bool, error) {
		return persistence.Profile{}, false, boom
	}), nil, zaptest.NewLogger(t))

	err := w.Handle(context.Background(), events.IdentityCreated{AuthID: "uid-2", TenantID: "acme"})
	require.ErrorIs(t, err, boom)
}
