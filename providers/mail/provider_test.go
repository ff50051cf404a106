package mail

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/devkit"
)

func newTestProvider(t *testing.T, doer *devkit.FakeDoer) *Provider {
	t.Helper()
	provider, err := New(Config{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		HTTPClient:   doer,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if err := provider.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return provider
}

func TestProvider_Descriptor(t *testing.T) {
	provider := newTestProvider(t, devkit.NewFakeDoer())
	if provider.ID() != "mail" {
		t.Fatalf("expected mail id, got %q", provider.ID())
	}
	if provider.AuthKind() != core.AuthKindOAuth2 {
		t.Fatalf("expected oauth2 kind, got %q", provider.AuthKind())
	}
	if !provider.IsConfigured() {
		t.Fatalf("expected configured provider")
	}
	tools := provider.Tools()
	if len(tools) != 3 {
		t.Fatalf("expected three tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if tool.ProviderID != "mail" {
			t.Fatalf("expected provider id on tool %q", tool.Name)
		}
	}
}

func TestProvider_NotConfiguredWithoutSecret(t *testing.T) {
	provider, err := New(Config{ClientID: "client-123"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if err := provider.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if provider.IsConfigured() {
		t.Fatalf("expected unconfigured provider without client secret")
	}
}

func TestProvider_SendMessage(t *testing.T) {
	doer := devkit.NewFakeDoer(devkit.JSONScript(http.StatusOK, `{"id": "msg_1", "status": "sent"}`))
	provider := newTestProvider(t, doer)

	result := provider.ExecuteTool(context.Background(), "mail.messages.send", map[string]any{
		"to":      "ada@example.test",
		"subject": "hello",
		"body":    "hi there",
	}, core.ActiveCredential{AccessToken: "at-1"})
	if !result.OK {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if result.Data["id"] != "msg_1" {
		t.Fatalf("expected message id in result data")
	}

	requests := doer.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected one request, got %d", len(requests))
	}
	if requests[0].Header.Get("Authorization") != "Bearer at-1" {
		t.Fatalf("expected bearer token header")
	}
	if !strings.HasSuffix(requests[0].URL, "/messages/send") {
		t.Fatalf("unexpected url %q", requests[0].URL)
	}
}

func TestProvider_SendMessageMissingParam(t *testing.T) {
	doer := devkit.NewFakeDoer()
	provider := newTestProvider(t, doer)

	result := provider.ExecuteTool(context.Background(), "mail.messages.send", map[string]any{
		"to": "ada@example.test",
	}, core.ActiveCredential{AccessToken: "at-1"})
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.ErrorKind != core.IntegrationErrorBadInput {
		t.Fatalf("expected bad input kind, got %q", result.ErrorKind)
	}
	if doer.CallCount() != 0 {
		t.Fatalf("expected no provider call for invalid params")
	}
}

func TestProvider_SearchMessages(t *testing.T) {
	doer := devkit.NewFakeDoer(devkit.JSONScript(http.StatusOK, `{"messages": [{"id": "msg_1"}]}`))
	provider := newTestProvider(t, doer)

	result := provider.ExecuteTool(context.Background(), "mail.messages.search", map[string]any{
		"query":       "from:grace",
		"max_results": 5,
	}, core.ActiveCredential{AccessToken: "at-1"})
	if !result.OK {
		t.Fatalf("expected success, got %q", result.Error)
	}

	requestURL := doer.Requests()[0].URL
	if !strings.Contains(requestURL, "q=from%3Agrace") {
		t.Fatalf("expected escaped query in url %q", requestURL)
	}
	if !strings.Contains(requestURL, "max_results=5") {
		t.Fatalf("expected max_results in url %q", requestURL)
	}
}

func TestProvider_UnknownTool(t *testing.T) {
	provider := newTestProvider(t, devkit.NewFakeDoer())
	result := provider.ExecuteTool(context.Background(), "mail.bogus", nil, core.ActiveCredential{})
	if result.OK {
		t.Fatalf("expected failure")
	}
	if result.Error != "Unknown tool: mail.bogus" {
		t.Fatalf("unexpected message %q", result.Error)
	}
}

func TestProvider_ExchangeCodeResolvesAccount(t *testing.T) {
	doer := devkit.NewFakeDoer(
		devkit.JSONScript(http.StatusOK, `{"access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600}`),
		devkit.JSONScript(http.StatusOK, `{"email": "ada@example.test"}`),
	)
	provider := newTestProvider(t, doer)

	result, err := provider.ExchangeCode(context.Background(), core.ExchangeRequest{Code: "abc"})
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if result.Account.Label != "ada@example.test" {
		t.Fatalf("expected mailbox label, got %q", result.Account.Label)
	}
	if doer.CallCount() != 2 {
		t.Fatalf("expected token and profile calls, got %d", doer.CallCount())
	}
}
