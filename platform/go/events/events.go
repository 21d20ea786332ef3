// Package events carries identity lifecycle events over NATS. The API publishes
// palmyra.identity.created when PROFILE_MODE=trigger; the profile worker
// consumes it through a queue group and materializes the profile.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectIdentityCreated = "palmyra.identity.created"
	ProfileWorkerQueue     = "profile-workers"
)

// IdentityCreated is emitted right after an auth identity is created.
type IdentityCreated struct {
	AuthID     string    `json:"auth_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	TenantID   string    `json:"tenant_id"`
	Department *string   `json:"department,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e IdentityCreated) validate() error {
	var missing []string
	if strings.TrimSpace(e.AuthID) == "" {
		missing = append(missing, "auth_id")
	}
	if strings.TrimSpace(e.TenantID) == "" {
		missing = append(missing, "tenant_id")
	}
	if strings.TrimSpace(e.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(e.Role) == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return fmt.Errorf("identity.created missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Publisher emits identity events.
type Publisher interface {
	PublishIdentityCreated(ctx context.Context, evt IdentityCreated) error
}

// IdentityCreatedHandler processes one event.
type IdentityCreatedHandler func(ctx context.Context, evt IdentityCreated) error

// Bus is a NATS connection specialised for identity events.
type Bus struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect dials NATS with unlimited reconnects.
func Connect(url, name string, logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Bus{nc: nc, logger: logger}, nil
}

// PublishIdentityCreated publishes evt and flushes so the server has accepted
// it before the caller starts waiting for the profile.
func (b *Bus) PublishIdentityCreated(ctx context.Context, evt IdentityCreated) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := evt.validate(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal identity.created: %w", err)
	}
	if err := b.nc.Publish(SubjectIdentityCreated, data); err != nil {
		return fmt.Errorf("publish identity.created: %w", err)
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush identity.created: %w", err)
	}
	return nil
}

// SubscribeIdentityCreated joins queue so each event is handled by exactly one
// worker. Handler errors are logged; the core NATS subject has no redelivery,
// the counter reconciler repairs any drift.
func (b *Bus) SubscribeIdentityCreated(ctx context.Context, queue string, handler IdentityCreatedHandler) (*nats.Subscription, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	sub, err := b.nc.QueueSubscribe(SubjectIdentityCreated, queue, b.dispatch(ctx, handler))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectIdentityCreated, err)
	}
	return sub, nil
}

func (b *Bus) dispatch(ctx context.Context, handler IdentityCreatedHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var evt IdentityCreated
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			b.logger.Error("discarding malformed identity.created", zap.Error(err))
			return
		}
		if err := evt.validate(); err != nil {
			b.logger.Error("discarding invalid identity.created", zap.Error(err))
			return
		}

		logger := b.logger.With(zap.String("auth_id", evt.AuthID), zap.String("tenant_id", evt.TenantID))
		if err := handler(ctx, evt); err != nil {
			logger.Error("identity.created handler failed", zap.Error(err))
			return
		}
		logger.Debug("identity.created handled")
	}
}

// Connected reports whether the underlying connection is usable.
func (b *Bus) Connected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() error {
	if b.nc == nil {
		return nil
	}
	return b.nc.Drain()
}
