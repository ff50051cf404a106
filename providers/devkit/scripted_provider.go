package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// ScriptedProvider is a fully scriptable provider for exercising flows
// without network access. Every hook has a working default so tests
// only override what they assert on.
type ScriptedProvider struct {
	ProviderID    string
	Name          string
	Kind          core.AuthKind
	Secrets       []string
	Configured    bool
	ToolList      []core.ToolDefinition
	InitializeErr error

	AuthURLFunc     func(ctx context.Context, req core.AuthURLRequest) (string, error)
	ExchangeFunc    func(ctx context.Context, req core.ExchangeRequest) (core.ExchangeResult, error)
	RefreshFunc     func(ctx context.Context, cred core.ActiveCredential) (core.RefreshResult, error)
	VerifyKeyFunc   func(ctx context.Context, key string) (core.AccountInfo, error)
	ExecuteToolFunc func(ctx context.Context, name string, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult

	mu           sync.Mutex
	exchangeHits int
	refreshHits  int
	executeHits  int
}

// NewOAuthProvider builds a configured oauth2 scripted provider.
func NewOAuthProvider(id string) *ScriptedProvider {
	return &ScriptedProvider{
		ProviderID: id,
		Kind:       core.AuthKindOAuth2,
		Configured: true,
	}
}

// NewAPIKeyProvider builds a configured api_key scripted provider.
func NewAPIKeyProvider(id string) *ScriptedProvider {
	return &ScriptedProvider{
		ProviderID: id,
		Kind:       core.AuthKindAPIKey,
		Configured: true,
	}
}

func (p *ScriptedProvider) ID() string { return p.ProviderID }

func (p *ScriptedProvider) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.ProviderID
}

func (p *ScriptedProvider) Category() string { return "testing" }

func (p *ScriptedProvider) AuthKind() core.AuthKind { return p.Kind }

func (p *ScriptedProvider) RequiredSecrets() []string {
	return append([]string(nil), p.Secrets...)
}

func (p *ScriptedProvider) IsConfigured() bool { return p.Configured }

func (p *ScriptedProvider) Initialize(_ context.Context) error { return p.InitializeErr }

func (p *ScriptedProvider) Tools() []core.ToolDefinition {
	out := make([]core.ToolDefinition, 0, len(p.ToolList))
	for _, tool := range p.ToolList {
		tool.ProviderID = p.ProviderID
		out = append(out, tool)
	}
	return out
}

func (p *ScriptedProvider) AuthURL(ctx context.Context, req core.AuthURLRequest) (string, error) {
	if p.AuthURLFunc != nil {
		return p.AuthURLFunc(ctx, req)
	}
	return fmt.Sprintf("https://auth.example.test/authorize?state=%s", req.State), nil
}

func (p *ScriptedProvider) ExchangeCode(ctx context.Context, req core.ExchangeRequest) (core.ExchangeResult, error) {
	p.mu.Lock()
	p.exchangeHits++
	p.mu.Unlock()
	if p.ExchangeFunc != nil {
		return p.ExchangeFunc(ctx, req)
	}
	return core.ExchangeResult{
		AccessToken:  "access-" + req.Code,
		RefreshToken: "refresh-" + req.Code,
		Account:      core.AccountInfo{Label: "user@example.test"},
	}, nil
}

func (p *ScriptedProvider) Refresh(ctx context.Context, cred core.ActiveCredential) (core.RefreshResult, error) {
	p.mu.Lock()
	p.refreshHits++
	p.mu.Unlock()
	if p.RefreshFunc != nil {
		return p.RefreshFunc(ctx, cred)
	}
	return core.RefreshResult{AccessToken: "refreshed-" + cred.AccessToken}, nil
}

func (p *ScriptedProvider) VerifyKey(ctx context.Context, key string) (core.AccountInfo, error) {
	if p.VerifyKeyFunc != nil {
		return p.VerifyKeyFunc(ctx, key)
	}
	if strings.TrimSpace(key) == "" {
		return core.AccountInfo{}, fmt.Errorf("devkit: api key is required")
	}
	return core.AccountInfo{Label: "workspace"}, nil
}

func (p *ScriptedProvider) ExecuteTool(ctx context.Context, name string, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	p.mu.Lock()
	p.executeHits++
	p.mu.Unlock()
	if p.ExecuteToolFunc != nil {
		return p.ExecuteToolFunc(ctx, name, params, cred)
	}
	for _, tool := range p.ToolList {
		if tool.Name == name {
			return core.SuccessResult(map[string]any{"tool": name})
		}
	}
	return core.FailureResult(core.IntegrationErrorBadInput, fmt.Sprintf("Unknown tool: %s", name))
}

// ExchangeCalls reports how many code exchanges the provider served.
func (p *ScriptedProvider) ExchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeHits
}

// RefreshCalls reports how many refreshes the provider served.
func (p *ScriptedProvider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshHits
}

// ExecuteCalls reports how many tool executions the provider served.
func (p *ScriptedProvider) ExecuteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executeHits
}

var (
	_ core.OAuthProvider  = (*ScriptedProvider)(nil)
	_ core.APIKeyProvider = (*ScriptedProvider)(nil)
)
