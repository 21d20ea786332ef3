package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/domains/branding/be/service"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
)

// multipart framing on top of the asset itself
const uploadOverhead = 1 << 20

// Handler exposes tenant branding over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("branding service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on r, which is expected to sit under /api/admin.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants/{tenantID}/branding", h.Get)
	r.Put("/tenants/{tenantID}/branding", h.Upsert)
	r.Post("/tenants/{tenantID}/branding/assets", h.UploadAsset)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())
	branding, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "tenantID"))
	if err != nil {
		respond.Error(w, r, h.logger, "brandingGet", err)
		return
	}
	respond.Data(w, http.StatusOK, branding)
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	var input service.UpsertInput
	if err := respond.Decode(w, r, &input); err != nil {
		respond.Error(w, r, h.logger, "brandingUpsert", err)
		return
	}

	branding, err := h.svc.Upsert(r.Context(), actor, chi.URLParam(r, "tenantID"), input)
	if err != nil {
		respond.Error(w, r, h.logger, "brandingUpsert", err)
		return
	}
	respond.Data(w, http.StatusOK, branding)
}

// UploadAsset accepts a multipart form with a single "file" part.
// Query parameters: kind=logo|favicon, apply=true to update the branding row.
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	actor, _ := platformauth.UserFromContext(r.Context())

	apply := false
	if raw := r.URL.Query().Get("apply"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respond.Error(w, r, h.logger, "brandingUploadAsset", apperr.NewValidation(map[string]string{"apply": "must be a boolean"}))
			return
		}
		apply = parsed
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxAssetBytes+uploadOverhead)
	if err := r.ParseMultipartForm(service.MaxAssetBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, r, h.logger, "brandingUploadAsset", apperr.NewValidation(map[string]string{"file": "file is too large"}))
			return
		}
		respond.Error(w, r, h.logger, "brandingUploadAsset", apperr.NewValidation(map[string]string{"body": "body must be multipart/form-data"}))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, r, h.logger, "brandingUploadAsset", apperr.NewValidation(map[string]string{"file": "file is required"}))
		return
	}
	defer file.Close()

	result, err := h.svc.UploadAsset(r.Context(), actor, chi.URLParam(r, "tenantID"), service.AssetUpload{
		Kind:        r.URL.Query().Get("kind"),
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Apply:       apply,
	})
	if err != nil {
		respond.Error(w, r, h.logger, "brandingUploadAsset", err)
		return
	}
	respond.Data(w, http.StatusCreated, result)
}
