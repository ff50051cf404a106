package core

import (
	"context"
	"testing"
	"time"
)

func TestNewService_RuntimeConfigOverridesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CallbackBaseURL = "https://override.example.test"
	cfg.StateTTL = 3 * time.Minute
	cfg.Security.FallbackSecret = "secret"

	service, err := NewService(cfg, WithSecretProvider(testSecretProvider{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resolved := service.Config()
	if resolved.CallbackBaseURL != "https://override.example.test" {
		t.Fatalf("callback base url lost: %q", resolved.CallbackBaseURL)
	}
	if resolved.StateTTL != 3*time.Minute {
		t.Fatalf("state ttl lost: %v", resolved.StateTTL)
	}
	if resolved.ServiceName != "integrations" {
		t.Fatalf("default service name lost: %q", resolved.ServiceName)
	}
}

func TestNewService_ConfigLayerSitsBetweenDefaultsAndRuntime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.FallbackSecret = "secret"
	cfg.StateTTL = 3 * time.Minute

	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"callback_base_url": "https://from-config.example.test",
		"state_ttl":         time.Minute,
	}})

	service, err := NewService(cfg, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	resolved := service.Config()
	if resolved.CallbackBaseURL != "https://from-config.example.test" {
		t.Fatalf("expected config layer value, got %q", resolved.CallbackBaseURL)
	}
	if resolved.StateTTL != 3*time.Minute {
		t.Fatalf("runtime layer must win over config, got %v", resolved.StateTTL)
	}
}

func TestNewService_WiresDefaultCollaborators(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.FallbackSecret = "secret"

	service, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := service.Dependencies()
	if deps.Registry == nil {
		t.Fatal("expected a default registry")
	}
	if deps.StateCodec == nil {
		t.Fatal("expected a default state codec")
	}
	if deps.NonceStore == nil {
		t.Fatal("expected a default nonce store")
	}
	if deps.RefreshScheduler == nil {
		t.Fatal("expected a default backoff scheduler")
	}
	if deps.HTTPClient == nil {
		t.Fatal("expected a default http client")
	}
	if deps.Logger == nil {
		t.Fatal("expected a logger")
	}
}

func TestNewService_SkipsNilOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.FallbackSecret = "secret"

	if _, err := NewService(cfg, nil, WithSecretProvider(testSecretProvider{}), nil); err != nil {
		t.Fatalf("nil options must be ignored: %v", err)
	}
}

func TestService_NilReceiverGuards(t *testing.T) {
	var service *Service

	if cfg := service.Config(); cfg.ServiceName != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
	if service.Registry() != nil {
		t.Fatal("expected nil registry")
	}
	deps := service.Dependencies()
	if deps.Registry != nil || deps.CredentialStore != nil {
		t.Fatal("expected empty dependencies")
	}
	if providers := service.ListProviders(context.Background()); providers != nil {
		t.Fatal("expected nil provider list")
	}
	if tools := service.ListTools(context.Background()); tools != nil {
		t.Fatal("expected nil tool list")
	}
}

func TestSetup_IsNewServiceAlias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.FallbackSecret = "secret"

	service, err := Setup(cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if service == nil {
		t.Fatal("expected a service")
	}
}

func TestStoreProviderWiring(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.FallbackSecret = "secret"

	stores := stubStoreProvider{
		credentials: newMemoryCredentialStore(),
		tenants:     newMemoryTenantStore(),
	}
	service, err := NewService(cfg, WithRepositoryFactory(stores))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := service.Dependencies()
	if deps.CredentialStore != stores.credentials {
		t.Fatal("credential store not taken from the store provider")
	}
	if deps.TenantStore != stores.tenants {
		t.Fatal("tenant store not taken from the store provider")
	}
}

type stubStoreProvider struct {
	credentials CredentialStore
	tenants     TenantStore
}

func (p stubStoreProvider) CredentialStore() CredentialStore { return p.credentials }
func (p stubStoreProvider) TenantStore() TenantStore         { return p.tenants }
