package integrations

import (
	"context"
	"testing"

	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

type stubCommandQueryService struct {
	providers []core.ProviderDescriptor
}

func (s *stubCommandQueryService) StartAuth(context.Context, core.StartAuthRequest) (core.StartAuthResponse, error) {
	return core.StartAuthResponse{AuthorizationURL: "https://auth.example.test"}, nil
}

func (s *stubCommandQueryService) CompleteCallback(context.Context, core.CallbackRequest) (core.CallbackOutcome, error) {
	return core.CallbackOutcome{Status: core.CallbackStatusConnected}, nil
}

func (s *stubCommandQueryService) ConnectAPIKey(context.Context, core.ConnectAPIKeyRequest) (core.Credential, error) {
	return core.Credential{ID: "cred_1"}, nil
}

func (s *stubCommandQueryService) EnsureFresh(context.Context, string, string) (core.ActiveCredential, error) {
	return core.ActiveCredential{}, nil
}

func (s *stubCommandQueryService) Disconnect(context.Context, string, string) error { return nil }

func (s *stubCommandQueryService) MarkPrimary(context.Context, string, string) error { return nil }

func (s *stubCommandQueryService) Invoke(context.Context, core.InvokeRequest) (core.ToolInvocationResult, error) {
	return core.SuccessResult(nil), nil
}

func (s *stubCommandQueryService) ListProviders(context.Context) []core.ProviderDescriptor {
	return s.providers
}

func (s *stubCommandQueryService) ListTools(context.Context) []core.ToolDefinition { return nil }

func (s *stubCommandQueryService) GetStatus(context.Context, string, string) (core.ProviderStatus, error) {
	return core.ProviderStatus{}, nil
}

func TestNewFacade_WiresHandlers(t *testing.T) {
	service := &stubCommandQueryService{providers: []core.ProviderDescriptor{{ID: "mail"}}}

	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.StartAuth == nil || commands.CompleteCallback == nil || commands.ConnectAPIKey == nil ||
		commands.EnsureFresh == nil || commands.Disconnect == nil || commands.MarkPrimary == nil ||
		commands.InvokeTool == nil {
		t.Fatalf("expected every command to be wired: %#v", commands)
	}

	queries := facade.Queries()
	if queries.ListProviders == nil || queries.ListTools == nil || queries.GetStatus == nil {
		t.Fatalf("expected every query to be wired: %#v", queries)
	}

	out, err := queries.ListProviders.Query(context.Background(), integrationsquery.ListProvidersMessage{})
	if err != nil {
		t.Fatalf("list providers: %v", err)
	}
	if len(out) != 1 || out[0].ID != "mail" {
		t.Fatalf("unexpected providers: %#v", out)
	}

	if facade.Service() == nil {
		t.Fatalf("expected service accessor")
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestServiceSatisfiesCommandQuerySurface(t *testing.T) {
	var service *core.Service
	var _ CommandQueryService = service
}
