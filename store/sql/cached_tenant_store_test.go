package sqlstore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubTenantStore struct {
	mu        sync.Mutex
	tenant    core.Tenant
	getCalls  int
	findCalls int
}

func (s *stubTenantStore) FindOrCreate(_ context.Context, _ string, _ string) (core.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	return s.tenant, nil
}

func (s *stubTenantStore) Get(_ context.Context, _ string) (core.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	return s.tenant, nil
}

func (s *stubTenantStore) calls() (finds int, gets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls, s.getCalls
}

func newTestTenantCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedTenantStore_GetMissFetchThenHit(t *testing.T) {
	base := &stubTenantStore{tenant: core.Tenant{ID: "tnt_1", Slug: "acme"}}
	store, err := NewCachedTenantStore(base, newTestTenantCacheService(t))
	if err != nil {
		t.Fatalf("new cached tenant store: %v", err)
	}

	if _, err := store.Get(context.Background(), "acme"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, gets := base.calls(); gets != 1 {
		t.Fatalf("expected first get to hit the base store once, got %d", gets)
	}

	if _, err := store.Get(context.Background(), "acme"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if _, gets := base.calls(); gets != 1 {
		t.Fatalf("expected second get to be served from cache, base gets=%d", gets)
	}
}

func TestCachedTenantStore_FindOrCreateCachesByIdentifier(t *testing.T) {
	base := &stubTenantStore{tenant: core.Tenant{ID: "tnt_1", Slug: "acme"}}
	store, err := NewCachedTenantStore(base, newTestTenantCacheService(t))
	if err != nil {
		t.Fatalf("new cached tenant store: %v", err)
	}

	for i := 0; i < 3; i++ {
		tenant, findErr := store.FindOrCreate(context.Background(), "acme", "Acme")
		if findErr != nil {
			t.Fatalf("find or create %d: %v", i, findErr)
		}
		if tenant.ID != "tnt_1" {
			t.Fatalf("unexpected tenant: %+v", tenant)
		}
	}
	if finds, _ := base.calls(); finds != 1 {
		t.Fatalf("expected a single base fetch, got %d", finds)
	}
}

func TestCachedTenantStore_InvalidateDropsEntry(t *testing.T) {
	base := &stubTenantStore{tenant: core.Tenant{ID: "tnt_1", Slug: "acme"}}
	store, err := NewCachedTenantStore(base, newTestTenantCacheService(t))
	if err != nil {
		t.Fatalf("new cached tenant store: %v", err)
	}

	if _, err := store.Get(context.Background(), "acme"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Invalidate(context.Background(), "acme"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := store.Get(context.Background(), "acme"); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if _, gets := base.calls(); gets != 2 {
		t.Fatalf("expected refetch after invalidation, base gets=%d", gets)
	}
}

func TestTenantCacheKey(t *testing.T) {
	key, err := TenantCacheKey("acme")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-integrations::tenant::v1::acme" {
		t.Fatalf("unexpected key: %q", key)
	}

	escaped, err := TenantCacheKey("team/alpha beta")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if strings.ContainsAny(escaped, " /") {
		t.Fatalf("expected identifier to be escaped, got %q", escaped)
	}

	if _, err := TenantCacheKey("  "); err == nil {
		t.Fatal("expected blank identifier to fail")
	}
}

func TestNewCachedTenantStore_RequiresCollaborators(t *testing.T) {
	if _, err := NewCachedTenantStore(nil, newTestTenantCacheService(t)); err == nil {
		t.Fatal("expected missing base store to fail")
	}
	if _, err := NewCachedTenantStore(&stubTenantStore{}, nil); err == nil {
		t.Fatal("expected missing cache service to fail")
	}
}
