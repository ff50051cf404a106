package integrations

import (
	"fmt"

	integrationscommand "github.com/goliatone/go-integrations/command"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

// CommandQueryService is the service surface the facade wires into
// command and query handlers.
type CommandQueryService interface {
	integrationscommand.MutatingService
	integrationsquery.CatalogReader
	integrationsquery.StatusReader
}

type Commands struct {
	StartAuth        *integrationscommand.StartAuthCommand
	CompleteCallback *integrationscommand.CompleteCallbackCommand
	ConnectAPIKey    *integrationscommand.ConnectAPIKeyCommand
	EnsureFresh      *integrationscommand.EnsureFreshCommand
	Disconnect       *integrationscommand.DisconnectCommand
	MarkPrimary      *integrationscommand.MarkPrimaryCommand
	InvokeTool       *integrationscommand.InvokeToolCommand
}

type Queries struct {
	ListProviders *integrationsquery.ListProvidersQuery
	ListTools     *integrationsquery.ListToolsQuery
	GetStatus     *integrationsquery.GetStatusQuery
}

// Facade bundles the command and query handlers built around one
// service instance.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StartAuth:        integrationscommand.NewStartAuthCommand(service),
		CompleteCallback: integrationscommand.NewCompleteCallbackCommand(service),
		ConnectAPIKey:    integrationscommand.NewConnectAPIKeyCommand(service),
		EnsureFresh:      integrationscommand.NewEnsureFreshCommand(service),
		Disconnect:       integrationscommand.NewDisconnectCommand(service),
		MarkPrimary:      integrationscommand.NewMarkPrimaryCommand(service),
		InvokeTool:       integrationscommand.NewInvokeToolCommand(service),
	}
	facade.queries = Queries{
		ListProviders: integrationsquery.NewListProvidersQuery(service),
		ListTools:     integrationsquery.NewListToolsQuery(service),
		GetStatus:     integrationsquery.NewGetStatusQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
