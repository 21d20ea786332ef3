package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/storage"
)

const (
	defaultPrimaryColor   = "#000000"
	defaultSecondaryColor = "#ffffff"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Errors returned by the service layer.
var (
	ErrNotFound       = fmt.Errorf("branding %w", apperr.ErrNotFound)
	ErrTenantNotFound = fmt.Errorf("tenant %w", apperr.ErrNotFound)
)

// Branding is the white-label configuration of a tenant.
type Branding struct {
	ID             uuid.UUID `json:"id"`
	TenantID       string    `json:"tenant_id"`
	CompanyName    string    `json:"company_name"`
	AppName        string    `json:"app_name"`
	LogoURL        string    `json:"logo_url"`
	FaviconURL     string    `json:"favicon_url"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	FontFamily     string    `json:"font_family"`
	CustomCSS      string    `json:"custom_css"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UpsertInput replaces the tenant's branding. Empty colors fall back to black and white.
type UpsertInput struct {
	CompanyName    string `json:"company_name"`
	AppName        string `json:"app_name"`
	LogoURL        string `json:"logo_url"`
	FaviconURL     string `json:"favicon_url"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
	FontFamily     string `json:"font_family"`
	CustomCSS      string `json:"custom_css"`
}

// Repository abstracts persistence; satisfied by *persistence.BrandingStore.
type Repository interface {
	Get(ctx context.Context, tenantID string) (persistence.Branding, error)
	Upsert(ctx context.Context, b persistence.Branding) (persistence.Branding, error)
	SetAssetURL(ctx context.Context, tenantID string, kind persistence.AssetKind, url string) (persistence.Branding, error)
}

// TenantReader confirms the tenant exists before writes.
type TenantReader interface {
	Get(ctx context.Context, id string) (persistence.Tenant, error)
}

// Config names the bucket holding uploaded assets.
type Config struct {
	Bucket string
	Logger *zap.Logger
}

// Service manages tenant branding and its uploaded assets.
type Service struct {
	repo       Repository
	tenants    TenantReader
	assets     storage.Bucket
	bucketName string
	logger     *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, tenants TenantReader, assets storage.Bucket, cfg Config) *Service {
	if repo == nil {
		panic("branding repo is required")
	}
	if tenants == nil {
		panic("tenant reader is required")
	}
	if assets == nil {
		panic("asset bucket is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "branding"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{repo: repo, tenants: tenants, assets: assets, bucketName: cfg.Bucket, logger: cfg.Logger}
}

// Get returns the tenant's branding or ErrNotFound when none was saved.
func (s *Service) Get(ctx context.Context, actor *platformauth.UserCredentials, tenantID string) (Branding, error) {
	if err := actor.CanRead(tenantID); err != nil {
		return Branding{}, err
	}
	rec, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return Branding{}, mapPersistenceError(err, ErrNotFound)
	}
	return toBranding(rec), nil
}

// Upsert stores the tenant's single branding row.
func (s *Service) Upsert(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, in UpsertInput) (Branding, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return Branding{}, err
	}

	in.PrimaryColor = strings.TrimSpace(in.PrimaryColor)
	in.SecondaryColor = strings.TrimSpace(in.SecondaryColor)
	if in.PrimaryColor == "" {
		in.PrimaryColor = defaultPrimaryColor
	}
	if in.SecondaryColor == "" {
		in.SecondaryColor = defaultSecondaryColor
	}

	fields := apperr.FieldErrors{}
	if !colorPattern.MatchString(in.PrimaryColor) {
		fields.Add("primary_color", "must be a #rrggbb hex color")
	}
	if !colorPattern.MatchString(in.SecondaryColor) {
		fields.Add("secondary_color", "must be a #rrggbb hex color")
	}
	if err := fields.Err(); err != nil {
		return Branding{}, err
	}

	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return Branding{}, mapPersistenceError(err, ErrTenantNotFound)
	}

	rec, err := s.repo.Upsert(ctx, persistence.Branding{
		TenantID:       tenantID,
		CompanyName:    strings.TrimSpace(in.CompanyName),
		AppName:        strings.TrimSpace(in.AppName),
		LogoURL:        strings.TrimSpace(in.LogoURL),
		FaviconURL:     strings.TrimSpace(in.FaviconURL),
		PrimaryColor:   in.PrimaryColor,
		SecondaryColor: in.SecondaryColor,
		FontFamily:     strings.TrimSpace(in.FontFamily),
		CustomCSS:      in.CustomCSS,
	})
	if err != nil {
		return Branding{}, err
	}

	platformlogging.OrDefault(ctx, s.logger).Info("branding saved", zap.String("tenant_id", tenantID))
	return toBranding(rec), nil
}

func mapPersistenceError(err, notFound error) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return notFound
	}
	return err
}

func toBranding(rec persistence.Branding) Branding {
	return Branding{
		ID:             rec.ID,
		TenantID:       rec.TenantID,
		CompanyName:    rec.CompanyName,
		AppName:        rec.AppName,
		LogoURL:        rec.LogoURL,
		FaviconURL:     rec.FaviconURL,
		PrimaryColor:   rec.PrimaryColor,
		SecondaryColor: rec.SecondaryColor,
		FontFamily:     rec.FontFamily,
		CustomCSS:      rec.CustomCSS,
		UpdatedAt:      rec.UpdatedAt,
	}
}

var _ Repository = (*persistence.BrandingStore)(nil)
