package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// TenantStats is derived on every request and never stored.
type TenantStats struct {
	TotalUsers      int  `json:"total_users"`
	TotalFeatures   int  `json:"total_features"`
	EnabledFeatures int  `json:"enabled_features"`
	TotalDomains    int  `json:"total_domains"`
	VerifiedDomains int  `json:"verified_domains"`
	HasBranding     bool `json:"has_branding"`
}

// StatsReader performs the tenant-scoped reads behind Stats.
type StatsReader interface {
	CountProfiles(ctx context.Context, tenantID string) (int, error)
	CountFeatures(ctx context.Context, tenantID string) (total, enabled int, err error)
	BrandingExists(ctx context.Context, tenantID string) (bool, error)
	CountDomains(ctx context.Context, tenantID string) (total, verified int, err error)
}

// Stats aggregates the tenant's profiles, features, branding and domains.
// The four reads run concurrently; the first failure cancels the others and
// fails the whole aggregation.
func (s *Service) Stats(ctx context.Context, tenantID string) (TenantStats, error) {
	started := time.Now()
	defer s.metrics.ObserveStats(started)

	if _, err := s.repo.Get(ctx, tenantID); err != nil {
		return TenantStats{}, err
	}

	var stats TenantStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		users, err := s.stats.CountProfiles(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		stats.TotalUsers = users
		return nil
	})
	g.Go(func() error {
		total, enabled, err := s.stats.CountFeatures(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("count features: %w", err)
		}
		stats.TotalFeatures, stats.EnabledFeatures = total, enabled
		return nil
	})
	g.Go(func() error {
		exists, err := s.stats.BrandingExists(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("check branding: %w", err)
		}
		stats.HasBranding = exists
		return nil
	})
	g.Go(func() error {
		total, verified, err := s.stats.CountDomains(gctx, tenantID)
		if err != nil {
			return fmt.Errorf("count domains: %w", err)
		}
		stats.TotalDomains, stats.VerifiedDomains = total, verified
		return nil
	})

	if err := g.Wait(); err != nil {
		return TenantStats{}, err
	}
	return stats, nil
}
