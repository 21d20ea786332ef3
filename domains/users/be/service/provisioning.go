package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

const (
	flowAdmin    = "admin"
	flowRegister = "register"
)

// ProvisionResult is returned by Provision. Profile is nil when the profile
// worker did not materialize it within the admin await policy.
type ProvisionResult struct {
	AuthID  string   `json:"auth_id"`
	Profile *Profile `json:"profile"`
}

// Provision creates a tenant user on behalf of an administrator: validate,
// authorize, check the tenant quota, create the identity, then materialize
// the profile together with the tenant counter.
func (s *Service) Provision(ctx context.Context, actor *platformauth.UserCredentials, in CreateUserInput) (ProvisionResult, error) {
	role, err := in.normalize()
	if err != nil {
		return ProvisionResult{}, err
	}

	if actor == nil {
		return ProvisionResult{}, apperr.ErrAuthentication
	}
	if actor.Role != platformauth.RoleAdmin {
		return ProvisionResult{}, fmt.Errorf("role %s cannot create users: %w", actor.Role, apperr.ErrAuthorization)
	}
	if err := actor.CanAdminister(in.TenantID); err != nil {
		return ProvisionResult{}, err
	}

	if _, err := s.checkTenant(ctx, in.TenantID); err != nil {
		return ProvisionResult{}, err
	}

	created, err := s.identities.Create(ctx, identity.NewIdentity{
		Email:         in.Email,
		Password:      in.Password,
		DisplayName:   in.Name,
		EmailVerified: true,
		Claims:        identity.Claims{Name: in.Name, Role: string(role), TenantID: in.TenantID},
	})
	if err != nil {
		return ProvisionResult{}, &apperr.ProviderError{Op: "create identity", Err: err}
	}

	logger := s.auditLogger(ctx).With(zap.String("auth_id", created.UID), zap.String("tenant_id", in.TenantID))
	logger.Info("identity created", zap.String("role", string(role)))
	s.metrics.UserProvisioned(flowAdmin, in.TenantID)

	profile, err := s.materialize(ctx, logger, flowAdmin, persistence.MaterializeProfileParams{
		AuthID:       created.UID,
		TenantID:     in.TenantID,
		Name:         in.Name,
		Email:        in.Email,
		Role:         string(role),
		Department:   in.Department,
		AvatarURL:    in.AvatarURL,
		EnforceQuota: true,
	}, s.cfg.AdminAwait)
	if err != nil {
		return ProvisionResult{}, err
	}

	return ProvisionResult{AuthID: created.UID, Profile: profile}, nil
}

// Remove deletes a profile and decrements the tenant counter, then deletes
// the auth identity best-effort.
func (s *Service) Remove(ctx context.Context, actor *platformauth.UserCredentials, profileID uuid.UUID) error {
	if actor == nil {
		return apperr.ErrAuthentication
	}
	if profileID == uuid.Nil {
		return ErrNotFound
	}

	current, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return mapPersistenceError(err)
	}
	if err := actor.CanAdminister(current.TenantID); err != nil {
		return err
	}

	removed, err := s.profiles.Delete(ctx, profileID)
	if err != nil {
		return mapPersistenceError(err)
	}

	logger := s.auditLogger(ctx).With(zap.String("auth_id", removed.AuthID), zap.String("tenant_id", removed.TenantID))
	logger.Info("profile deleted", zap.Stringer("profile_id", removed.ID))

	if err := s.identities.Delete(ctx, removed.AuthID); err != nil && !errors.Is(err, identity.ErrNotFound) {
		s.metrics.BestEffortFailed("profile_identity_delete")
		logger.Warn("delete identity after profile removal", zap.Error(err))
	}
	return nil
}

// materialize produces the profile for a created identity according to the
// configured mode. In sync mode a failed transaction deletes the identity
// best-effort. In trigger mode a nil profile means the worker has not caught up.
func (s *Service) materialize(ctx context.Context, logger *zap.Logger, flow string, params persistence.MaterializeProfileParams, policy AwaitPolicy) (*Profile, error) {
	if s.cfg.Mode == ModeTrigger {
		err := s.events.PublishIdentityCreated(ctx, events.IdentityCreated{
			AuthID:     params.AuthID,
			Email:      params.Email,
			Name:       params.Name,
			Role:       params.Role,
			TenantID:   params.TenantID,
			Department: params.Department,
			AvatarURL:  params.AvatarURL,
			OccurredAt: s.now().UTC(),
		})
		if err == nil {
			return s.awaitProfile(ctx, logger, flow, params.AuthID, policy), nil
		}
		s.metrics.BestEffortFailed("publish_identity_created")
		logger.Warn("publish identity.created failed, materializing in request", zap.Error(err))
	}

	rec, created, err := s.profiles.Materialize(ctx, params)
	if err != nil {
		if delErr := s.identities.Delete(ctx, params.AuthID); delErr != nil {
			s.metrics.BestEffortFailed("identity_cleanup")
			logger.Warn("delete identity after failed profile insert", zap.Error(delErr))
		}
		return nil, mapPersistenceError(err)
	}
	s.metrics.ProfileMaterialized(created)

	profile := toProfile(rec)
	return &profile, nil
}

func (s *Service) awaitProfile(ctx context.Context, logger *zap.Logger, flow, authID string, policy AwaitPolicy) *Profile {
	rec, err := s.awaiter.await(ctx, authID, policy)
	if err != nil {
		s.metrics.ProfileAwaited(flow, false)
		logger.Warn("profile not materialized within await policy",
			zap.String("flow", flow),
			zap.Int("attempts", policy.Attempts),
			zap.Error(err),
		)
		return nil
	}
	s.metrics.ProfileAwaited(flow, true)

	profile := toProfile(rec)
	return &profile
}
