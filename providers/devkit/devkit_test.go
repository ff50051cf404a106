package devkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
)

func TestFakeDoer_ScriptOrderAndRepeat(t *testing.T) {
	doer := NewFakeDoer(
		JSONScript(http.StatusOK, `{"step": 1}`),
		JSONScript(http.StatusTeapot, `{"step": 2}`),
	)

	for index, wantStatus := range []int{http.StatusOK, http.StatusTeapot, http.StatusTeapot} {
		request, err := http.NewRequest(http.MethodGet, "https://api.example.test/probe", nil)
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		response, err := doer.Do(request)
		if err != nil {
			t.Fatalf("call %d: %v", index, err)
		}
		if response.StatusCode != wantStatus {
			t.Fatalf("call %d: expected %d, got %d", index, wantStatus, response.StatusCode)
		}
		io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}
	if doer.CallCount() != 3 {
		t.Fatalf("expected three recorded calls, got %d", doer.CallCount())
	}
}

func TestFakeDoer_ScriptedError(t *testing.T) {
	doer := NewFakeDoer(HTTPScript{Err: fmt.Errorf("connection refused")})
	request, err := http.NewRequest(http.MethodGet, "https://api.example.test/probe", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := doer.Do(request); err == nil {
		t.Fatalf("expected scripted error")
	}
}

func TestFakeDoer_RecordsBody(t *testing.T) {
	doer := NewFakeDoer()
	request, err := http.NewRequest(http.MethodPost, "https://api.example.test/items", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if _, err := doer.Do(request); err != nil {
		t.Fatalf("do: %v", err)
	}
	if doer.Requests()[0].Body != "payload" {
		t.Fatalf("expected recorded body, got %q", doer.Requests()[0].Body)
	}
}

func TestScriptedProvider_Defaults(t *testing.T) {
	provider := NewOAuthProvider("demo")
	provider.ToolList = []core.ToolDefinition{{Name: "demo.echo"}}

	exchange, err := provider.ExchangeCode(context.Background(), core.ExchangeRequest{Code: "abc"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if exchange.AccessToken != "access-abc" {
		t.Fatalf("unexpected access token %q", exchange.AccessToken)
	}
	if provider.ExchangeCalls() != 1 {
		t.Fatalf("expected one exchange call")
	}

	result := provider.ExecuteTool(context.Background(), "demo.echo", nil, core.ActiveCredential{})
	if !result.OK {
		t.Fatalf("expected success for registered tool")
	}
	result = provider.ExecuteTool(context.Background(), "demo.missing", nil, core.ActiveCredential{})
	if result.OK || result.Error != "Unknown tool: demo.missing" {
		t.Fatalf("unexpected unknown-tool result %+v", result)
	}

	tools := provider.Tools()
	if len(tools) != 1 || tools[0].ProviderID != "demo" {
		t.Fatalf("expected provider id stamped on tools")
	}
}
