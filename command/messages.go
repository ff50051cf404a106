package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeStartAuth        = "integrations.command.connect"
	TypeCompleteCallback = "integrations.command.callback.complete"
	TypeConnectAPIKey    = "integrations.command.apikey.connect"
	TypeEnsureFresh      = "integrations.command.refresh"
	TypeDisconnect       = "integrations.command.disconnect"
	TypeMarkPrimary      = "integrations.command.primary.mark"
	TypeInvokeTool       = "integrations.command.tool.invoke"
)

type StartAuthMessage struct {
	Request core.StartAuthRequest
}

func (StartAuthMessage) Type() string { return TypeStartAuth }

func (m StartAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state is required")
	}
	return nil
}

type ConnectAPIKeyMessage struct {
	Request core.ConnectAPIKeyRequest
}

func (ConnectAPIKeyMessage) Type() string { return TypeConnectAPIKey }

func (m ConnectAPIKeyMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return commandValidationError("provider_id", "provider id is required")
	}
	if strings.TrimSpace(m.Request.APIKey) == "" {
		return commandValidationError("api_key", "api key is required")
	}
	return nil
}

type EnsureFreshMessage struct {
	TenantID     string
	CredentialID string
}

func (EnsureFreshMessage) Type() string { return TypeEnsureFresh }

func (m EnsureFreshMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.CredentialID) == "" {
		return commandValidationError("credential_id", "credential id is required")
	}
	return nil
}

type DisconnectMessage struct {
	TenantID     string
	CredentialID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.CredentialID) == "" {
		return commandValidationError("credential_id", "credential id is required")
	}
	return nil
}

type MarkPrimaryMessage struct {
	TenantID     string
	CredentialID string
}

func (MarkPrimaryMessage) Type() string { return TypeMarkPrimary }

func (m MarkPrimaryMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.CredentialID) == "" {
		return commandValidationError("credential_id", "credential id is required")
	}
	return nil
}

type InvokeToolMessage struct {
	Request core.InvokeRequest
}

func (InvokeToolMessage) Type() string { return TypeInvokeTool }

// Validate leaves ProviderID optional; the dispatcher routes by tool name
// when it is omitted.
func (m InvokeToolMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.ToolName) == "" {
		return commandValidationError("tool_name", "tool name is required")
	}
	return nil
}
