package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDispatchDecodesAndInvokesHandler(t *testing.T) {
	bus := &Bus{logger: zaptest.NewLogger(t)}

	dept := "ops"
	sent := IdentityCreated{
		AuthID:     "uid-1",
		Email:      "ada@acme.test",
		Name:       "Ada",
		Role:       "USER",
		TenantID:   "acme",
		Department: &dept,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(sent)
	require.NoError(t, err)

	var got []IdentityCreated
	handler := func(_ context.Context, evt IdentityCreated) error {
		got = append(got, evt)
		return nil
	}

	bus.dispatch(context.Background(), handler)(&nats.Msg{Subject: SubjectIdentityCreated, Data: data})

	require.Len(t, got, 1)
	require.Equal(t, sent, got[0])
}

func TestDispatchSkipsInvalidMessages(t *testing.T) {
	bus := &Bus{logger: zaptest.NewLogger(t)}

	calls := 0
	handler := func(context.Context, IdentityCreated) error {
		calls++
		return errors.New("should not be called")
	}
	dispatch := bus.dispatch(context.Background(), handler)

	dispatch(&nats.Msg{Data: []byte("{not json")})
	dispatch(&nats.Msg{Data: []byte(`{"auth_id":"uid-1"}`)})

	require.Zero(t, calls)
}

func TestIdentityCreatedValidate(t *testing.T) {
	err := IdentityCreated{AuthID: "uid-1"}.validate()
	require.EqualError(t, err, "identity.created missing tenant_id, email, role")

	require.NoError(t, IdentityCreated{AuthID: "u", TenantID: "acme", Email: "a@acme.test", Role: "USER"}.validate())
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	bus := &Bus{logger: zaptest.NewLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.PublishIdentityCreated(ctx, IdentityCreated{AuthID: "u"})
	require.ErrorIs(t, err, context.Canceled)
}
