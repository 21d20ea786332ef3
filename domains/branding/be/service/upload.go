package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/storage"
)

// MaxAssetBytes caps uploaded branding images.
const MaxAssetBytes = 5 << 20

// allowedAssetTypes maps accepted content types to the stored file extension.
var allowedAssetTypes = map[string]string{
	"image/jpeg":    "jpg",
	"image/png":     "png",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

var assetPrefixes = map[persistence.AssetKind]string{
	persistence.AssetLogo:    "logos",
	persistence.AssetFavicon: "favicons",
}

// AssetUpload is one uploaded image. Size is the declared size in bytes.
type AssetUpload struct {
	Kind        string
	ContentType string
	Size        int64
	Body        io.Reader
	// Apply writes the resulting URL into the tenant's branding.
	Apply bool
}

// AssetResult describes a stored asset.
type AssetResult struct {
	URL      string    `json:"url"`
	Path     string    `json:"path"`
	Branding *Branding `json:"branding,omitempty"`
}

// UploadAsset stores a logo or favicon under the tenant's prefix in the
// branding bucket and returns its public URL.
func (s *Service) UploadAsset(ctx context.Context, actor *platformauth.UserCredentials, tenantID string, up AssetUpload) (AssetResult, error) {
	if err := actor.CanAdminister(tenantID); err != nil {
		return AssetResult{}, err
	}

	kind := persistence.AssetKind(strings.ToLower(strings.TrimSpace(up.Kind)))
	prefix, ok := assetPrefixes[kind]
	fields := apperr.FieldErrors{}
	if !ok {
		fields.Add("kind", "kind must be logo or favicon")
	}

	mediaType, _, err := mime.ParseMediaType(up.ContentType)
	ext, allowed := allowedAssetTypes[strings.ToLower(mediaType)]
	if err != nil || !allowed {
		fields.Add("file", "file must be a JPEG, PNG, WEBP or SVG image")
	}
	switch {
	case up.Body == nil || up.Size == 0:
		fields.Add("file", "file is required")
	case up.Size > MaxAssetBytes:
		fields.Add("file", fmt.Sprintf("file exceeds %d bytes", MaxAssetBytes))
	}
	if err := fields.Err(); err != nil {
		return AssetResult{}, err
	}

	if _, err := s.tenants.Get(ctx, tenantID); err != nil {
		return AssetResult{}, mapPersistenceError(err, ErrTenantNotFound)
	}

	loc, err := storage.ResolveObjectLocation(tenantID, s.bucketName, fmt.Sprintf("%s/%s.%s", prefix, uuid.NewString(), ext))
	if err != nil {
		return AssetResult{}, fmt.Errorf("resolve asset location: %w", err)
	}

	url, err := s.assets.Put(ctx, loc, mediaType, io.LimitReader(up.Body, MaxAssetBytes))
	if err != nil {
		return AssetResult{}, fmt.Errorf("store asset: %w", err)
	}

	logger := platformlogging.OrDefault(ctx, s.logger).With(zap.String("tenant_id", tenantID), zap.String("path", loc.FullPath))
	logger.Info("branding asset uploaded", zap.String("kind", string(kind)), zap.Int64("size", up.Size))

	result := AssetResult{URL: url, Path: loc.FullPath}
	if up.Apply {
		rec, err := s.repo.SetAssetURL(ctx, tenantID, kind, url)
		if err != nil {
			return AssetResult{}, fmt.Errorf("apply asset url: %w", err)
		}
		branding := toBranding(rec)
		result.Branding = &branding
	}
	return result, nil
}
