package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const tenantCacheKeyPrefix = "go-integrations::tenant::v1"

// CachedTenantStore fronts tenant lookups with a cache. Tenants are written
// rarely and read on every callback and invocation, so reads are cached and
// writes invalidate.
type CachedTenantStore struct {
	base  core.TenantStore
	cache repositorycache.CacheService
}

func NewCachedTenantStore(base core.TenantStore, cacheService repositorycache.CacheService) (*CachedTenantStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base tenant store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: tenant cache service is required")
	}
	return &CachedTenantStore{base: base, cache: cacheService}, nil
}

// TenantCacheKey is the deterministic cache key contract for tenant reads:
// go-integrations::tenant::v1::<identifier> with the identifier URL-path
// escaped.
func TenantCacheKey(idOrSlug string) (string, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return "", fmt.Errorf("sqlstore: tenant identifier is required")
	}
	return tenantCacheKeyPrefix + "::" + url.PathEscape(idOrSlug), nil
}

func (s *CachedTenantStore) FindOrCreate(ctx context.Context, idOrSlug string, name string) (core.Tenant, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	cacheKey, err := TenantCacheKey(idOrSlug)
	if err != nil {
		return core.Tenant{}, err
	}

	tenant, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Tenant, error) {
		return s.base.FindOrCreate(ctx, idOrSlug, name)
	})
	if err != nil {
		return core.Tenant{}, err
	}
	return tenant, nil
}

func (s *CachedTenantStore) Get(ctx context.Context, id string) (core.Tenant, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Tenant{}, fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	cacheKey, err := TenantCacheKey(id)
	if err != nil {
		return core.Tenant{}, err
	}

	tenant, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Tenant, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Tenant{}, err
	}
	return tenant, nil
}

// Invalidate drops the cached entry for one tenant identifier, for callers
// that mutate tenants out of band.
func (s *CachedTenantStore) Invalidate(ctx context.Context, idOrSlug string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached tenant store is not configured")
	}
	cacheKey, err := TenantCacheKey(idOrSlug)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.TenantStore = (*CachedTenantStore)(nil)
