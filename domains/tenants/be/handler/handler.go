package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/tenants/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// Handler exposes the tenant registry over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the tenant routes on r, which is expected to sit under /api/admin.
// Registry mutations require a platform administrator; reads are open to tenant members.
func (h *Handler) Register(r chi.Router) {
	admin := r.With(platformauth.RequirePlatformAdmin)
	admin.Get("/tenants", h.List)
	admin.Post("/tenants", h.Create)
	admin.Patch("/tenants/{tenantID}", h.Update)
	admin.Delete("/tenants/{tenantID}", h.Delete)

	member := r.With(platformauth.RequireAuthenticated)
	member.Get("/tenants/{tenantID}", h.Get)
	member.Get("/tenants/{tenantID}/stats", h.Stats)
}

// List implements GET /api/admin/tenants
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsList", err)
		return
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsList", err)
		return
	}
	respond.Data(w, http.StatusOK, result)
}

// Create implements POST /api/admin/tenants
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "tenantsCreate", err)
		return
	}

	t, err := h.svc.Create(r.Context(), input)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsCreate", err)
		return
	}

	w.Header().Set("Location", "/api/admin/tenants/"+t.ID)
	respond.Data(w, http.StatusCreated, t)
}

// Get implements GET /api/admin/tenants/{tenantID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := authorizeRead(r, tenantID); err != nil {
		respond.Error(w, r, h.logger, "tenantsGet", err)
		return
	}

	t, err := h.svc.Get(r.Context(), tenantID)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsGet", err)
		return
	}
	respond.Data(w, http.StatusOK, t)
}

// Update implements PATCH /api/admin/tenants/{tenantID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "tenantsUpdate", err)
		return
	}

	updated, err := h.svc.Update(r.Context(), chi.URLParam(r, "tenantID"), input)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsUpdate", err)
		return
	}
	respond.Data(w, http.StatusOK, updated)
}

// Delete implements DELETE /api/admin/tenants/{tenantID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "tenantID")); err != nil {
		respond.Error(w, r, h.logger, "tenantsDelete", err)
		return
	}
	respond.NoContent(w)
}

// Stats implements GET /api/admin/tenants/{tenantID}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := authorizeRead(r, tenantID); err != nil {
		respond.Error(w, r, h.logger, "tenantsStats", err)
		return
	}

	stats, err := h.svc.Stats(r.Context(), tenantID)
	if err != nil {
		respond.Error(w, r, h.logger, "tenantsStats", err)
		return
	}
	respond.Data(w, http.StatusOK, stats)
}

func authorizeRead(r *http.Request, tenantID string) error {
	creds, err := platformauth.Require(r.Context())
	if err != nil {
		return err
	}
	return creds.CanRead(tenantID)
}

func listOptions(r *http.Request) (service.ListOptions, error) {
	q := r.URL.Query()
	opts := service.ListOptions{Page: 1, PageSize: 20}
	fields := apperr.FieldErrors{}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			fields.Add("page", "must be a positive integer")
		}
		opts.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 100 {
			fields.Add("page_size", "must be an integer between 1 and 100")
		}
		opts.PageSize = size
	}
	if raw := q.Get("status"); raw != "" {
		status := service.Status(raw)
		opts.Status = &status
	}

	if err := fields.Err(); err != nil {
		return service.ListOptions{}, err
	}
	return opts, nil
}
