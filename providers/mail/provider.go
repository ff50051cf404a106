package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID = "mail"
	AuthURL    = "https://accounts.mailhub.dev/oauth2/authorize"
	TokenURL   = "https://accounts.mailhub.dev/oauth2/token"
	APIBaseURL = "https://api.mailhub.dev/v1"
)

// Config carries the OAuth application material and endpoint overrides
// for the hosted mail integration.
type Config struct {
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	APIBaseURL    string
	DefaultScopes []string
	TokenTTL      time.Duration
	HTTPClient    providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		AuthURL:    AuthURL,
		TokenURL:   TokenURL,
		APIBaseURL: APIBaseURL,
		DefaultScopes: []string{
			"mail.read",
			"mail.send",
		},
	}
}

// Provider is the OAuth2 mail integration exposing send, search and
// label tools against the mail REST API.
type Provider struct {
	*providers.Base
	endpoints  providers.OAuth2Endpoints
	apiBaseURL string
	httpClient providers.HTTPDoer
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = defaults.DefaultScopes
	}

	base, err := providers.NewBase(providers.BaseConfig{
		ID:              ProviderID,
		DisplayName:     "Mail",
		Category:        "communication",
		AuthKind:        core.AuthKindOAuth2,
		RequiredSecrets: []string{"MAIL_CLIENT_ID", "MAIL_CLIENT_SECRET"},
	})
	if err != nil {
		return nil, err
	}

	provider := &Provider{
		Base: base,
		endpoints: providers.OAuth2Endpoints{
			AuthURL:       cfg.AuthURL,
			TokenURL:      cfg.TokenURL,
			ClientID:      strings.TrimSpace(cfg.ClientID),
			ClientSecret:  strings.TrimSpace(cfg.ClientSecret),
			DefaultScopes: append([]string(nil), cfg.DefaultScopes...),
			TokenTTL:      cfg.TokenTTL,
			HTTPClient:    cfg.HTTPClient,
		},
		apiBaseURL: strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"),
		httpClient: cfg.HTTPClient,
	}
	provider.registerTools()
	return provider, nil
}

func (p *Provider) Initialize(_ context.Context) error {
	p.MarkConfigured(p.endpoints.Configured())
	return nil
}

func (p *Provider) AuthURL(ctx context.Context, req core.AuthURLRequest) (string, error) {
	return p.endpoints.BuildAuthURL(ctx, req)
}

func (p *Provider) ExchangeCode(ctx context.Context, req core.ExchangeRequest) (core.ExchangeResult, error) {
	result, err := p.endpoints.ExchangeCode(ctx, req)
	if err != nil {
		return core.ExchangeResult{}, err
	}
	account, err := p.fetchAccount(ctx, result.AccessToken)
	if err == nil {
		result.Account = account
	}
	return result, nil
}

func (p *Provider) Refresh(ctx context.Context, cred core.ActiveCredential) (core.RefreshResult, error) {
	return p.endpoints.RefreshToken(ctx, cred.RefreshToken)
}

func (p *Provider) ExecuteTool(ctx context.Context, name string, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	return p.Dispatch(ctx, name, params, cred)
}

// fetchAccount resolves the mailbox address of the connected account so
// the stored credential carries a human-readable label.
func (p *Provider) fetchAccount(ctx context.Context, accessToken string) (core.AccountInfo, error) {
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodGet, p.apiBaseURL+"/profile", accessToken, nil)
	if err != nil {
		return core.AccountInfo{}, err
	}
	label, _ := payload["email"].(string)
	return core.AccountInfo{
		Label:    strings.TrimSpace(label),
		Metadata: payload,
	}, nil
}

func (p *Provider) registerTools() {
	p.MustRegisterTool(core.ToolDefinition{
		Name:        "mail.messages.send",
		Description: "Send an email from the connected mailbox",
		Category:    "communication",
		Parameters: []core.ToolParameter{
			{Name: "to", Type: "string", Description: "Recipient address", Required: true},
			{Name: "subject", Type: "string", Description: "Message subject", Required: true},
			{Name: "body", Type: "string", Description: "Plain text message body", Required: true},
		},
	}, p.sendMessage)

	p.MustRegisterTool(core.ToolDefinition{
		Name:        "mail.messages.search",
		Description: "Search messages in the connected mailbox",
		Category:    "communication",
		Parameters: []core.ToolParameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum messages to return", Default: 20},
		},
	}, p.searchMessages)

	p.MustRegisterTool(core.ToolDefinition{
		Name:        "mail.labels.list",
		Description: "List the labels defined on the connected mailbox",
		Category:    "communication",
	}, p.listLabels)
}

func (p *Provider) sendMessage(ctx context.Context, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	to, err := providers.RequireStringParam(params, "to")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}
	subject, err := providers.RequireStringParam(params, "subject")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}
	body, err := providers.RequireStringParam(params, "body")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}

	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodPost, p.apiBaseURL+"/messages/send", cred.AccessToken, map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

func (p *Provider) searchMessages(ctx context.Context, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	query, err := providers.RequireStringParam(params, "query")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}
	maxResults := providers.OptionalIntParam(params, "max_results", 20)

	endpoint := fmt.Sprintf("%s/messages?q=%s&max_results=%d", p.apiBaseURL, url.QueryEscape(query), maxResults)
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodGet, endpoint, cred.AccessToken, nil)
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

func (p *Provider) listLabels(ctx context.Context, _ map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodGet, p.apiBaseURL+"/labels", cred.AccessToken, nil)
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

var _ core.OAuthProvider = (*Provider)(nil)
