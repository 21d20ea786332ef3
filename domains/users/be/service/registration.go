package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/identity"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/tenant"
)

// RegisteredIdentity is the public view of a self-registered account.
type RegisteredIdentity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// RegisterResult is returned by Register. Profile is nil when the profile was
// not materialized within the registration await policy; the identity is
// usable for login regardless.
type RegisterResult struct {
	Identity RegisteredIdentity `json:"identity"`
	Profile  *Profile           `json:"profile"`
}

// Register creates a USER account without an acting administrator.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := in.normalize(); err != nil {
		return RegisterResult{}, err
	}

	t, err := s.checkTenant(ctx, in.TenantID)
	if err != nil {
		return RegisterResult{}, err
	}
	if t.Status == tenant.StatusInactive {
		return RegisterResult{}, apperr.NewValidation(map[string]string{"tenant_id": "tenant is not accepting registrations"})
	}

	role := string(platformauth.RoleUser)
	created, err := s.identities.Create(ctx, identity.NewIdentity{
		Email:         in.Email,
		Password:      in.Password,
		DisplayName:   in.Name,
		EmailVerified: true,
		Claims:        identity.Claims{Name: in.Name, Role: role, TenantID: in.TenantID},
	})
	if err != nil {
		return RegisterResult{}, &apperr.ProviderError{Op: "register", Err: err}
	}

	logger := s.auditLogger(ctx).With(zap.String("auth_id", created.UID), zap.String("tenant_id", in.TenantID))
	logger.Info("identity registered")
	s.metrics.UserProvisioned(flowRegister, in.TenantID)

	profile, err := s.materialize(ctx, logger, flowRegister, persistence.MaterializeProfileParams{
		AuthID:       created.UID,
		TenantID:     in.TenantID,
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		EnforceQuota: true,
	}, s.cfg.RegistrationAwait)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("register: %w", err)
	}

	return RegisterResult{
		Identity: RegisteredIdentity{UID: created.UID, Email: created.Email},
		Profile:  profile,
	}, nil
}
