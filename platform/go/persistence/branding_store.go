package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Branding mirrors a row of the whitelabel_configs table.
type Branding struct {
	ID             uuid.UUID
	TenantID       string
	CompanyName    string
	AppName        string
	LogoURL        string
	FaviconURL     string
	PrimaryColor   string
	SecondaryColor string
	FontFamily     string
	CustomCSS      string
	UpdatedAt      time.Time
}

// AssetKind selects which branding image URL to set.
type AssetKind string

const (
	AssetLogo    AssetKind = "logo"
	AssetFavicon AssetKind = "favicon"
)

const brandingColumns = `id, tenant_id, company_name, app_name, logo_url, favicon_url, primary_color, secondary_color, font_family, custom_css, updated_at`

// BrandingStore exposes persistence helpers for the whitelabel_configs table.
// A tenant has at most one row.
type BrandingStore struct {
	pool *pgxpool.Pool
}

// NewBrandingStore returns a store bound to pool.
func NewBrandingStore(pool *pgxpool.Pool) (*BrandingStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &BrandingStore{pool: pool}, nil
}

// Get loads the tenant's branding.
func (s *BrandingStore) Get(ctx context.Context, tenantID string) (Branding, error) {
	branding, err := scanBranding(s.pool.QueryRow(ctx, `SELECT `+brandingColumns+` FROM whitelabel_configs WHERE tenant_id = $1`, tenantID))
	if err != nil {
		return Branding{}, mapRowErr(err)
	}
	return branding, nil
}

// Exists reports whether the tenant has a branding row.
func (s *BrandingStore) Exists(ctx context.Context, tenantID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM whitelabel_configs WHERE tenant_id = $1)`, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("branding exists: %w", err)
	}
	return exists, nil
}

// Upsert writes the full branding row for b.TenantID.
func (s *BrandingStore) Upsert(ctx context.Context, b Branding) (Branding, error) {
	branding, err := scanBranding(s.pool.QueryRow(ctx, `
        INSERT INTO whitelabel_configs (id, tenant_id, company_name, app_name, logo_url, favicon_url,
                                        primary_color, secondary_color, font_family, custom_css)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (tenant_id) DO UPDATE SET
            company_name    = EXCLUDED.company_name,
            app_name        = EXCLUDED.app_name,
            logo_url        = EXCLUDED.logo_url,
            favicon_url     = EXCLUDED.favicon_url,
            primary_color   = EXCLUDED.primary_color,
            secondary_color = EXCLUDED.secondary_color,
            font_family     = EXCLUDED.font_family,
            custom_css      = EXCLUDED.custom_css,
            updated_at      = now()
        RETURNING `+brandingColumns,
		uuid.New(), b.TenantID, b.CompanyName, b.AppName, b.LogoURL, b.FaviconURL,
		b.PrimaryColor, b.SecondaryColor, b.FontFamily, b.CustomCSS,
	))
	if err != nil {
		return Branding{}, mapRowErr(err)
	}
	return branding, nil
}

// SetAssetURL stores an uploaded asset URL, creating the branding row with
// defaults when the tenant has none yet.
func (s *BrandingStore) SetAssetURL(ctx context.Context, tenantID string, kind AssetKind, url string) (Branding, error) {
	var column string
	switch kind {
	case AssetLogo:
		column = "logo_url"
	case AssetFavicon:
		column = "favicon_url"
	default:
		return Branding{}, fmt.Errorf("unknown asset kind %q", kind)
	}

	branding, err := scanBranding(s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO whitelabel_configs (id, tenant_id, %[1]s)
        VALUES ($1, $2, $3)
        ON CONFLICT (tenant_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = now()
        RETURNING %[2]s
    `, column, brandingColumns), uuid.New(), tenantID, url))
	if err != nil {
		return Branding{}, mapRowErr(err)
	}
	return branding, nil
}

func scanBranding(scanner rowScanner) (Branding, error) {
	var b Branding
	if err := scanner.Scan(
		&b.ID,
		&b.TenantID,
		&b.CompanyName,
		&b.AppName,
		&b.LogoURL,
		&b.FaviconURL,
		&b.PrimaryColor,
		&b.SecondaryColor,
		&b.FontFamily,
		&b.CustomCSS,
		&b.UpdatedAt,
	); err != nil {
		return Branding{}, err
	}
	return b, nil
}
