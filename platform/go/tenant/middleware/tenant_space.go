package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformauth "github.com/zenGate-Global/palmyra-tenancy/platform/go/auth"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/respond"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/tenant"
)

// Resolver defines the minimal lookup capability required to populate a Tenant Space.
// Implemented by the tenants service.
type Resolver interface {
	ResolveTenantSpace(ctx context.Context, tenantID string) (tenant.Space, error)
}

// Config controls middleware behavior.
type Config struct {
	// Optional small in-memory TTL cache to avoid DB hits; zero disables caching.
	CacheTTL time.Duration
}

// WithTenantSpace resolves the tenant claim of the session and attaches tenant.Space to context.
// Members of unknown tenants are rejected with 401, members of inactive tenants with 403.
// Platform administrators without a tenant claim pass through without a Space.
func WithTenantSpace(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant middleware: resolver is required")
	}

	var cache *tenantCache
	if cfg.CacheTTL > 0 {
		cache = newTenantCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok {
				respond.Error(w, r, nil, "resolveTenant", apperr.ErrAuthentication)
				return
			}
			if creds.TenantID == "" {
				if creds.IsPlatformAdmin() {
					next.ServeHTTP(w, r)
					return
				}
				respond.Error(w, r, nil, "resolveTenant", fmt.Errorf("tenant claim missing: %w", apperr.ErrAuthentication))
				return
			}

			space, found := cache.get(creds.TenantID)
			if !found {
				resolved, err := resolver.ResolveTenantSpace(r.Context(), creds.TenantID)
				if err != nil {
					if apperr.HTTPStatus(err) == http.StatusNotFound {
						err = fmt.Errorf("tenant %q not found: %w", creds.TenantID, apperr.ErrAuthentication)
					}
					respond.Error(w, r, nil, "resolveTenant", err)
					return
				}
				space = resolved
				cache.put(space)
			}

			if !space.Active() && !creds.IsPlatformAdmin() {
				respond.Error(w, r, nil, "resolveTenant", fmt.Errorf("tenant %q is inactive: %w", space.ID, apperr.ErrAuthorization))
				return
			}

			next.ServeHTTP(w, r.WithContext(tenant.WithSpace(r.Context(), space)))
		})
	}
}

type tenantCache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]cacheItem
}

type cacheItem struct {
	space     tenant.Space
	expiresAt time.Time
}

func newTenantCache(ttl time.Duration) *tenantCache {
	return &tenantCache{ttl: ttl, now: time.Now, items: make(map[string]cacheItem)}
}

func (c *tenantCache) get(id string) (tenant.Space, bool) {
	if c == nil {
		return tenant.Space{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok || c.now().After(item.expiresAt) {
		return tenant.Space{}, false
	}
	return item.space, true
}

func (c *tenantCache) put(space tenant.Space) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[space.ID] = cacheItem{space: space, expiresAt: c.now().Add(c.ttl)}
}
