package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

// MutatingService is the slice of the integrations service commands
// mutate through.
type MutatingService interface {
	StartAuth(ctx context.Context, req core.StartAuthRequest) (core.StartAuthResponse, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackOutcome, error)
	ConnectAPIKey(ctx context.Context, req core.ConnectAPIKeyRequest) (core.Credential, error)
	EnsureFresh(ctx context.Context, tenantID string, credentialID string) (core.ActiveCredential, error)
	Disconnect(ctx context.Context, tenantID string, credentialID string) error
	MarkPrimary(ctx context.Context, tenantID string, credentialID string) error
	Invoke(ctx context.Context, req core.InvokeRequest) (core.ToolInvocationResult, error)
}

type StartAuthCommand struct {
	service MutatingService
}

func NewStartAuthCommand(service MutatingService) *StartAuthCommand {
	return &StartAuthCommand{service: service}
}

func (c *StartAuthCommand) Execute(ctx context.Context, msg StartAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.StartAuth(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConnectAPIKeyCommand struct {
	service MutatingService
}

func NewConnectAPIKeyCommand(service MutatingService) *ConnectAPIKeyCommand {
	return &ConnectAPIKeyCommand{service: service}
}

func (c *ConnectAPIKeyCommand) Execute(ctx context.Context, msg ConnectAPIKeyMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: api key service is required")
	}
	out, err := c.service.ConnectAPIKey(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EnsureFreshCommand struct {
	service MutatingService
}

func NewEnsureFreshCommand(service MutatingService) *EnsureFreshCommand {
	return &EnsureFreshCommand{service: service}
}

func (c *EnsureFreshCommand) Execute(ctx context.Context, msg EnsureFreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.EnsureFresh(ctx, msg.TenantID, msg.CredentialID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.TenantID, msg.CredentialID)
}

type MarkPrimaryCommand struct {
	service MutatingService
}

func NewMarkPrimaryCommand(service MutatingService) *MarkPrimaryCommand {
	return &MarkPrimaryCommand{service: service}
}

func (c *MarkPrimaryCommand) Execute(ctx context.Context, msg MarkPrimaryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: primary service is required")
	}
	return c.service.MarkPrimary(ctx, msg.TenantID, msg.CredentialID)
}

type InvokeToolCommand struct {
	service MutatingService
}

func NewInvokeToolCommand(service MutatingService) *InvokeToolCommand {
	return &InvokeToolCommand{service: service}
}

func (c *InvokeToolCommand) Execute(ctx context.Context, msg InvokeToolMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: invoke service is required")
	}
	out, err := c.service.Invoke(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
