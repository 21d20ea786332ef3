// Package worker materializes profiles from identity.created events. It is the
// asynchronous counterpart of the sync provisioning path: the profile insert and
// the tenant counter increment happen in one transaction, and redelivered events
// are absorbed by the unique auth_id.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/users/be/repo"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

// Materializer is the subset of repo.Repository the worker needs.
type Materializer interface {
	Materialize(ctx context.Context, params persistence.MaterializeProfileParams) (persistence.Profile, bool, error)
}

var _ Materializer = (repo.Repository)(nil)

// ProfileWorker handles identity.created events.
type ProfileWorker struct {
	profiles Materializer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New builds a ProfileWorker. metrics may be nil.
func New(profiles Materializer, m *metrics.Metrics, logger *zap.Logger) *ProfileWorker {
	if profiles == nil {
		panic("profile materializer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileWorker{profiles: profiles, metrics: m, logger: logger}
}

// Handle materializes the profile of evt. Quota is not enforced here: the
// identity already exists and the API checked the quota before creating it.
func (w *ProfileWorker) Handle(ctx context.Context, evt events.IdentityCreated) error {
	profile, created, err := w.profiles.Materialize(ctx, persistence.MaterializeProfileParams{
		AuthID:     evt.AuthID,
		TenantID:   evt.TenantID,
		Name:       evt.Name,
		Email:      evt.Email,
		Role:       evt.Role,
		Department: evt.Department,
		AvatarURL:  evt.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("materialize profile for %s: %w", evt.AuthID, err)
	}

	w.metrics.ProfileMaterialized(created)
	logger := w.logger.With(
		zap.String("auth_id", evt.AuthID),
		zap.String("tenant_id", evt.TenantID),
		zap.String("profile_id", profile.ID.String()),
	)
	if !created {
		logger.Info("profile already materialized")
		return nil
	}
	logger.Info("profile materialized", zap.Duration("lag", profile.CreatedAt.Sub(evt.OccurredAt)))
	return nil
}
