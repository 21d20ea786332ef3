package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/features/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// Handler exposes tenant feature flags over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("features service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on r, which is expected to sit under /api/admin.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants/{tenantID}/features", h.List)
	r.Post("/tenants/{tenantID}/features", h.Create)
	r.Patch("/tenants/{tenantID}/features/{featureID}", h.Update)
	r.Delete("/tenants/{tenantID}/features/{featureID}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())
	features, err := h.svc.List(r.Context(), actor, chi.URLParam(r, "tenantID"))
	if err != nil {
		respond.Error(w, r, h.logger, "featuresList", err)
		return
	}
	respond.Data(w, http.StatusOK, features)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	var input service.CreateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "featuresCreate", err)
		return
	}

	feature, err := h.svc.Create(r.Context(), actor, chi.URLParam(r, "tenantID"), input)
	if err != nil {
		respond.Error(w, r, h.logger, "featuresCreate", err)
		return
	}
	respond.Data(w, http.StatusCreated, feature)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	id, err := featureID(r)
	if err != nil {
		respond.Error(w, r, h.logger, "featuresUpdate", err)
		return
	}

	var input service.UpdateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "featuresUpdate", err)
		return
	}

	feature, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "tenantID"), id, input)
	if err != nil {
		respond.Error(w, r, h.logger, "featuresUpdate", err)
		return
	}
	respond.Data(w, http.StatusOK, feature)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	id, err := featureID(r)
	if err != nil {
		respond.Error(w, r, h.logger, "featuresDelete", err)
		return
	}

	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "tenantID"), id); err != nil {
		respond.Error(w, r, h.logger, "featuresDelete", err)
		return
	}
	respond.NoContent(w)
}

func featureID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "featureID"))
	if err != nil {
		return uuid.Nil, apperr.NewValidation(map[string]string{"featureID": "must be a UUID"})
	}
	return id, nil
}
