package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/tenant-domains/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// Handler exposes tenant domains over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("domains service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on r, which is expected to sit under /api/admin.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants/{tenantID}/domains", h.List)
	r.Post("/tenants/{tenantID}/domains", h.Create)
	r.Patch("/tenants/{tenantID}/domains/{domainID}", h.Update)
	r.Delete("/tenants/{tenantID}/domains/{domainID}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())
	domains, err := h.svc.List(r.Context(), actor, chi.URLParam(r, "tenantID"))
	if err != nil {
		respond.Error(w, r, h.logger, "domainsList", err)
		return
	}
	respond.Data(w, http.StatusOK, domains)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	var input service.CreateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "domainsCreate", err)
		return
	}

	domain, err := h.svc.Create(r.Context(), actor, chi.URLParam(r, "tenantID"), input)
	if err != nil {
		respond.Error(w, r, h.logger, "domainsCreate", err)
		return
	}
	respond.Data(w, http.StatusCreated, domain)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	id, err := domainID(r)
	if err != nil {
		respond.Error(w, r, h.logger, "domainsUpdate", err)
		return
	}

	var input service.UpdateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "domainsUpdate", err)
		return
	}

	domain, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "tenantID"), id, input)
	if err != nil {
		respond.Error(w, r, h.logger, "domainsUpdate", err)
		return
	}
	respond.Data(w, http.StatusOK, domain)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	id, err := domainID(r)
	if err != nil {
		respond.Error(w, r, h.logger, "domainsDelete", err)
		return
	}

	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "tenantID"), id); err != nil {
		respond.Error(w, r, h.logger, "domainsDelete", err)
		return
	}
	respond.NoContent(w)
}

func domainID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "domainID"))
	if err != nil {
		return uuid.Nil, apperr.NewValidation(map[string]string{"domainID": "must be a UUID"})
	}
	return id, nil
}
