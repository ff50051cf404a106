package query

import (
	"strings"
)

const (
	TypeListProviders = "integrations.query.providers.list"
	TypeGetStatus     = "integrations.query.status.get"
	TypeListTools     = "integrations.query.tools.list"
)

type ListProvidersMessage struct{}

func (ListProvidersMessage) Type() string { return TypeListProviders }

func (ListProvidersMessage) Validate() error { return nil }

type GetStatusMessage struct {
	TenantID   string
	ProviderID string
}

func (GetStatusMessage) Type() string { return TypeGetStatus }

func (m GetStatusMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return queryValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return queryValidationError("provider_id", "provider id is required")
	}
	return nil
}

type ListToolsMessage struct{}

func (ListToolsMessage) Type() string { return TypeListTools }

func (ListToolsMessage) Validate() error { return nil }
