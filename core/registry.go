package core

import (
	"fmt"
	"strings"
	"sync"
)

// ProviderRegistry is the default Registry: populated once during startup,
// then read-only. List preserves registration order.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Provider)}
}

func (r *ProviderRegistry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	id := strings.TrimSpace(provider.ID())
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	if err := provider.AuthKind().Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("core: provider already registered: %s", id)
	}
	r.providers[id] = provider
	r.order = append(r.order, id)
	return nil
}

func (r *ProviderRegistry) Get(providerID string) (Provider, bool) {
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[id]
	r.mu.RUnlock()
	return provider, ok
}

func (r *ProviderRegistry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	providers := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		providers = append(providers, r.providers[id])
	}
	return providers
}

var _ Registry = (*ProviderRegistry)(nil)
