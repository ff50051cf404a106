package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
)

const (
	ProviderID = "crm"
	APIBaseURL = "https://api.pipecrm.dev/v2"
)

// Config carries endpoint overrides for the API-key CRM integration.
// The key itself arrives per tenant through the connect flow, not
// through process configuration.
type Config struct {
	APIBaseURL string
	HTTPClient providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{APIBaseURL: APIBaseURL}
}

// Provider is the API-key CRM integration exposing contact and note
// tools against the CRM REST API.
type Provider struct {
	*providers.APIKeyBase
	apiBaseURL string
	httpClient providers.HTTPDoer
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}

	provider := &Provider{
		apiBaseURL: strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/"),
		httpClient: cfg.HTTPClient,
	}

	base, err := providers.NewAPIKeyBase(providers.BaseConfig{
		ID:          ProviderID,
		DisplayName: "CRM",
		Category:    "sales",
	}, provider.verifyKey)
	if err != nil {
		return nil, err
	}
	provider.APIKeyBase = base
	provider.registerTools()
	return provider, nil
}

func (p *Provider) Initialize(_ context.Context) error {
	// An api_key provider has no process-level secrets; it is usable as
	// soon as it is registered.
	p.MarkConfigured(true)
	return nil
}

func (p *Provider) ExecuteTool(ctx context.Context, name string, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	return p.Dispatch(ctx, name, params, cred)
}

// verifyKey probes the CRM account endpoint with the candidate key and
// labels the credential with the workspace name when one is returned.
func (p *Provider) verifyKey(ctx context.Context, key string) (core.AccountInfo, error) {
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodGet, p.apiBaseURL+"/account", key, nil)
	if err != nil {
		return core.AccountInfo{}, fmt.Errorf("crm: key verification failed: %w", err)
	}
	label, _ := payload["workspace"].(string)
	return core.AccountInfo{
		Label:    strings.TrimSpace(label),
		Metadata: payload,
	}, nil
}

func (p *Provider) registerTools() {
	p.MustRegisterTool(core.ToolDefinition{
		Name:        "crm.contacts.list",
		Description: "List contacts in the connected CRM workspace",
		Category:    "sales",
		Parameters: []core.ToolParameter{
			{Name: "query", Type: "string", Description: "Optional name or email filter"},
			{Name: "limit", Type: "integer", Description: "Maximum contacts to return", Default: 50},
		},
	}, p.listContacts)

	p.MustRegisterTool(core.ToolDefinition{
		Name:        "crm.contacts.create",
		Description: "Create a contact in the connected CRM workspace",
		Category:    "sales",
		Parameters: []core.ToolParameter{
			{Name: "name", Type: "string", Description: "Contact full name", Required: true},
			{Name: "email", Type: "string", Description: "Contact email address", Required: true},
			{Name: "company", Type: "string", Description: "Company name"},
		},
	}, p.createContact)

	p.MustRegisterTool(core.ToolDefinition{
		Name:        "crm.notes.append",
		Description: "Append a note to an existing CRM contact",
		Category:    "sales",
		Parameters: []core.ToolParameter{
			{Name: "contact_id", Type: "string", Description: "Contact identifier", Required: true},
			{Name: "note", Type: "string", Description: "Note body", Required: true},
		},
	}, p.appendNote)
}

func (p *Provider) listContacts(ctx context.Context, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	limit := providers.OptionalIntParam(params, "limit", 50)
	query := providers.OptionalStringParam(params, "query", "")

	endpoint := fmt.Sprintf("%s/contacts?limit=%d", p.apiBaseURL, limit)
	if query != "" {
		endpoint += "&q=" + url.QueryEscape(query)
	}
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodGet, endpoint, cred.AccessToken, nil)
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

func (p *Provider) createContact(ctx context.Context, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	name, err := providers.RequireStringParam(params, "name")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}
	email, err := providers.RequireStringParam(params, "email")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}

	body := map[string]any{"name": name, "email": email}
	if company := providers.OptionalStringParam(params, "company", ""); company != "" {
		body["company"] = company
	}
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodPost, p.apiBaseURL+"/contacts", cred.AccessToken, body)
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

func (p *Provider) appendNote(ctx context.Context, params map[string]any, cred core.ActiveCredential) core.ToolInvocationResult {
	contactID, err := providers.RequireStringParam(params, "contact_id")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}
	note, err := providers.RequireStringParam(params, "note")
	if err != nil {
		return core.FailureResult(core.IntegrationErrorBadInput, err.Error())
	}

	endpoint := fmt.Sprintf("%s/contacts/%s/notes", p.apiBaseURL, url.PathEscape(contactID))
	payload, err := providers.CallJSON(ctx, p.httpClient, http.MethodPost, endpoint, cred.AccessToken, map[string]any{"note": note})
	if err != nil {
		return core.FailureResult(core.IntegrationErrorProviderCall, err.Error())
	}
	return core.SuccessResult(payload)
}

var _ core.APIKeyProvider = (*Provider)(nil)
