package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[ListProvidersMessage, []core.ProviderDescriptor] = (*ListProvidersQuery)(nil)
	_ gocmd.Querier[ListToolsMessage, []core.ToolDefinition]         = (*ListToolsQuery)(nil)
	_ gocmd.Querier[GetStatusMessage, core.ProviderStatus]           = (*GetStatusQuery)(nil)
)
