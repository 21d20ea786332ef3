package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/users/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// Service is the subset of the users service the handler needs.
type Service interface {
	Provision(ctx context.Context, actor *platformauth.UserCredentials, in service.CreateUserInput) (service.ProvisionResult, error)
	Remove(ctx context.Context, actor *platformauth.UserCredentials, profileID uuid.UUID) error
	List(ctx context.Context, actor *platformauth.UserCredentials, tenantID string) ([]service.Profile, error)
	Register(ctx context.Context, in service.RegisterInput) (service.RegisterResult, error)
}

// Handler exposes user provisioning and self-registration over HTTP.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterAdmin mounts the provisioning routes; r is expected to sit under /api/admin.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Delete("/users/{profileID}", h.Delete)
}

// RegisterPublic mounts the self-registration route; r is expected to sit under /api/auth.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/register", h.SelfRegister)
}

// AuthIDHeader carries the uid of the created identity, which is the only
// handle on the user while a trigger-mode profile is still pending.
const AuthIDHeader = "X-Auth-Id"

// Create implements POST /api/admin/users. The body is the created profile,
// or null when it has not materialized yet. Payload validation runs before
// the caller is checked, so an anonymous malformed request gets 400.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	var input service.CreateUserInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "usersCreate", err)
		return
	}

	res, err := h.svc.Provision(r.Context(), actor, input)
	if err != nil {
		respond.Error(w, r, h.logger, "usersCreate", err)
		return
	}
	w.Header().Set(AuthIDHeader, res.AuthID)
	respond.Data(w, http.StatusCreated, res.Profile)
}

// List implements GET /api/admin/users. tenant_id defaults to the caller's tenant.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := platformauth.Require(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, "usersList", err)
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = actor.TenantID
	}

	profiles, err := h.svc.List(r.Context(), actor, tenantID)
	if err != nil {
		respond.Error(w, r, h.logger, "usersList", err)
		return
	}
	respond.Data(w, http.StatusOK, profiles)
}

// Delete implements DELETE /api/admin/users/{profileID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := platformauth.Require(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, "usersDelete", err)
		return
	}

	profileID, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		respond.Error(w, r, h.logger, "usersDelete", apperr.NewValidation(map[string]string{"profileID": "must be a UUID"}))
		return
	}

	if err := h.svc.Remove(r.Context(), actor, profileID); err != nil {
		respond.Error(w, r, h.logger, "usersDelete", err)
		return
	}
	respond.NoContent(w)
}

// SelfRegister implements POST /api/auth/register
func (h *Handler) SelfRegister(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "usersRegister", err)
		return
	}

	res, err := h.svc.Register(r.Context(), input)
	if err != nil {
		respond.Error(w, r, h.logger, "usersRegister", err)
		return
	}
	respond.Data(w, http.StatusCreated, res)
}
